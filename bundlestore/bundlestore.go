// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

/*
* Package bundlestore persists the three blobs of a one-step dispute: the
encoded OSP, the encoded code proof and the claimed post-state hash. Bundles
are namespaced by program root and then by the step at which the host was
suspended, so a verifier can fetch the bundle for any disputed step.

The directory engine lays bundles out as follows:

	  program-root-0xab.../
		step-10-pc-10/
			osp.bin
			code.bin
			post-hash.bin

The key/value engines (pebble, leveldb) store the same bundle RLP encoded
under a key built from the same three coordinates.
*/
package bundlestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
)

var (
	ErrNotFound      = errors.New("bundle not found")
	ErrAlreadyExists = errors.New("bundle already exists")
	ErrEmptyBundle   = errors.New("bundle has no proof data")
	ErrNotReady      = errors.New("bundle store not initialized by calling .Init(ctx)")
)

// Key locates a bundle.
type Key struct {
	ProgramRoot common.Hash
	Step        uint64
	PC          uint64
}

func (k *Key) String() string {
	return fmt.Sprintf("%v/step-%d/pc-%d", k.ProgramRoot, k.Step, k.PC)
}

type Bundle struct {
	Osp           []byte
	CodeProof     []byte
	PostStateHash common.Hash
}

func (b *Bundle) validate() error {
	if len(b.Osp) == 0 || len(b.CodeProof) == 0 {
		return ErrEmptyBundle
	}
	return nil
}

// Store reads and writes dispute bundles. A bundle is written at most once.
type Store interface {
	Get(ctx context.Context, key *Key) (*Bundle, error)
	Put(ctx context.Context, key *Key, bundle *Bundle) error
	// Prune deletes every bundle of programRoot whose step is <= step.
	Prune(ctx context.Context, programRoot common.Hash, step uint64) error
	Close() error
}

const (
	EngineDir     = "dir"
	EnginePebble  = "pebble"
	EngineLeveldb = "leveldb"
)

type Config struct {
	Engine           string `koanf:"engine"`
	Dir              string `koanf:"dir"`
	Compress         bool   `koanf:"compress"`
	CompressionLevel int    `koanf:"compression-level"`
	Cache            int    `koanf:"cache"`
	Handles          int    `koanf:"handles"`
}

var DefaultConfig = Config{
	Engine:           EngineDir,
	Dir:              "bundles",
	Compress:         false,
	CompressionLevel: defaultCompressionLevel,
	Cache:            16,
	Handles:          16,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".engine", DefaultConfig.Engine, "bundle store engine (dir, pebble or leveldb)")
	f.String(prefix+".dir", DefaultConfig.Dir, "directory holding the bundle store")
	f.Bool(prefix+".compress", DefaultConfig.Compress, "brotli compress stored blobs")
	f.Int(prefix+".compression-level", DefaultConfig.CompressionLevel, "brotli compression level (0-11)")
	f.Int(prefix+".cache", DefaultConfig.Cache, "database cache in megabytes (pebble and leveldb)")
	f.Int(prefix+".handles", DefaultConfig.Handles, "number of open file handles (pebble and leveldb)")
}

func (c *Config) Validate() error {
	switch c.Engine {
	case EngineDir, EnginePebble, EngineLeveldb:
	default:
		return fmt.Errorf("invalid bundle store engine %q", c.Engine)
	}
	if c.Dir == "" {
		return errors.New("bundle store directory must be set")
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > bestCompressionLevel {
		return fmt.Errorf("invalid compression level %d", c.CompressionLevel)
	}
	return nil
}

// Open creates or opens the store described by config.
func Open(ctx context.Context, config *Config) (Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	level := -1
	if config.Compress {
		level = config.CompressionLevel
	}
	switch config.Engine {
	case EngineDir:
		s := NewDirStore(config.Dir, level)
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return OpenKVStore(config.Engine, config.Dir, config.Cache, config.Handles, level)
	}
}
