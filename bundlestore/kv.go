// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package bundlestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	leveldbdb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	pebbledb "github.com/ethereum/go-ethereum/ethdb/pebble"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

// Every bundle key starts with this prefix so the database can be shared.
var bundlePrefix = []byte("osp-bundle-")

const (
	plainValue      byte = 0
	compressedValue byte = 1
)

// KVStore keeps RLP encoded bundles in a pebble or leveldb database.
type KVStore struct {
	// Put checks for an existing bundle before writing it.
	lock  sync.Mutex
	db    ethdb.Database
	level int
}

var _ Store = (*KVStore)(nil)

// OpenKVStore opens a database with the given engine in dir. A negative
// level stores bundles uncompressed.
func OpenKVStore(engine, dir string, cache, handles, level int) (*KVStore, error) {
	if engine != EnginePebble && engine != EngineLeveldb {
		return nil, fmt.Errorf("invalid key/value engine %q", engine)
	}
	var (
		kv  ethdb.KeyValueStore
		err error
	)
	if engine == EnginePebble {
		kv, err = pebbledb.New(dir, cache, handles, "bundlestore/", false, true) // ephemeral=true keeps v1.14.12 semantics (Sync: false)
	} else {
		kv, err = leveldbdb.New(dir, cache, handles, "bundlestore/", false)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s bundle store at %s: %w", engine, dir, err)
	}
	log.Info("Opened bundle store", "engine", engine, "dir", dir, "cache", cache, "handles", handles)
	return NewKVStore(rawdb.NewDatabase(kv), level), nil
}

func NewKVStore(db ethdb.Database, level int) *KVStore {
	return &KVStore{db: db, level: level}
}

func rootPrefix(root common.Hash) []byte {
	key := make([]byte, 0, len(bundlePrefix)+common.HashLength)
	key = append(key, bundlePrefix...)
	return append(key, root.Bytes()...)
}

func dbKey(key *Key) []byte {
	k := rootPrefix(key.ProgramRoot)
	k = binary.BigEndian.AppendUint64(k, key.Step)
	return binary.BigEndian.AppendUint64(k, key.PC)
}

func isNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound) || errors.Is(err, leveldb.ErrNotFound)
}

func (s *KVStore) encode(bundle *Bundle) ([]byte, error) {
	enc, err := rlp.EncodeToBytes(bundle)
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	if s.level < 0 {
		return append([]byte{plainValue}, enc...), nil
	}
	compressed, err := compress(enc, s.level)
	if err != nil {
		return nil, fmt.Errorf("compressing bundle: %w", err)
	}
	return append([]byte{compressedValue}, compressed...), nil
}

func decodeBundle(data []byte) (*Bundle, error) {
	if len(data) == 0 {
		return nil, errors.New("empty bundle value")
	}
	payload := data[1:]
	switch data[0] {
	case plainValue:
	case compressedValue:
		var err error
		if payload, err = decompress(payload); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown bundle value kind %d", data[0])
	}
	var bundle Bundle
	if err := rlp.DecodeBytes(payload, &bundle); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	return &bundle, nil
}

func (s *KVStore) Get(_ context.Context, key *Key) (*Bundle, error) {
	val, err := s.db.Get(dbKey(key))
	if err != nil {
		if isNotFound(err) {
			log.Debug("Bundle store miss", "key", key)
			return nil, fmt.Errorf("%w: %v", ErrNotFound, key)
		}
		return nil, err
	}
	log.Debug("Bundle store hit", "key", key)
	return decodeBundle(val)
}

func (s *KVStore) Put(_ context.Context, key *Key, bundle *Bundle) error {
	if err := bundle.validate(); err != nil {
		return err
	}
	val, err := s.encode(bundle)
	if err != nil {
		return err
	}
	k := dbKey(key)

	s.lock.Lock()
	defer s.lock.Unlock()
	has, err := s.db.Has(k)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, key)
	}
	return s.db.Put(k, val)
}

func (s *KVStore) Prune(_ context.Context, programRoot common.Hash, step uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	prefix := rootPrefix(programRoot)
	it := s.db.NewIterator(prefix, nil)
	defer it.Release()
	b := s.db.NewBatch()
	numPruned := 0
	for it.Next() {
		key := it.Key()
		if len(key) != len(prefix)+16 {
			continue
		}
		if binary.BigEndian.Uint64(key[len(prefix):]) > step {
			// Keys are sorted by step within a program root.
			break
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("deleting key: %w", err)
		}
		numPruned++
	}
	if err := it.Error(); err != nil {
		return err
	}
	if err := b.Write(); err != nil {
		return err
	}
	log.Info("Pruned bundle store", "numPruned", numPruned, "programRoot", programRoot, "step", step)
	return nil
}

func (s *KVStore) Close() error {
	return s.db.Close()
}
