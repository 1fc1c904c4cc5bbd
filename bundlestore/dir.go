// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package bundlestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

var (
	ospFileName       = "osp.bin"
	codeFileName      = "code.bin"
	postHashFileName  = "post-hash.bin"
	compressedSuffix  = ".br"
	programRootPrefix = "program-root"
	stepPrefix        = "step"
	pcPrefix          = "pc"
	stepDirPattern    = regexp.MustCompile(fmt.Sprintf(`^%s-(\d+)-%s-\d+$`, stepPrefix, pcPrefix))
)

// DirStore keeps bundles in a directory hierarchy on disk.
type DirStore struct {
	baseDir       string
	tempWritesDir string
	level         int
}

var _ Store = (*DirStore)(nil)

// NewDirStore returns a store rooted at baseDir. A negative level stores
// blobs uncompressed.
func NewDirStore(baseDir string, level int) *DirStore {
	return &DirStore{
		baseDir: baseDir,
		level:   level,
	}
}

// Init makes sure the base directory exists and creates the directory that
// bundles are staged in before being moved into place.
func (s *DirStore) Init(_ context.Context) error {
	if _, err := os.Stat(s.baseDir); err != nil {
		if err := os.MkdirAll(s.baseDir, os.ModePerm); err != nil {
			return fmt.Errorf("could not initialize bundle store directory %s: %w", s.baseDir, err)
		}
	}
	tempWritesDir, err := os.MkdirTemp(s.baseDir, "temp")
	if err != nil {
		return err
	}
	s.tempWritesDir = tempWritesDir
	return nil
}

func (s *DirStore) Get(_ context.Context, key *Key) (*Bundle, error) {
	dir := bundleDir(s.baseDir, key)
	if _, err := os.Stat(dir); err != nil {
		log.Debug("Bundle store miss", "dir", dir)
		return nil, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	log.Debug("Bundle store hit", "dir", dir)
	ospBytes, err := readBlob(dir, ospFileName)
	if err != nil {
		return nil, err
	}
	codeBytes, err := readBlob(dir, codeFileName)
	if err != nil {
		return nil, err
	}
	post, err := readBlob(dir, postHashFileName)
	if err != nil {
		return nil, err
	}
	if len(post) != common.HashLength {
		return nil, fmt.Errorf("expected %d byte post-state hash in %s, got %d bytes", common.HashLength, dir, len(post))
	}
	return &Bundle{
		Osp:           ospBytes,
		CodeProof:     codeBytes,
		PostStateHash: common.BytesToHash(post),
	}, nil
}

// Put writes the three blobs into a staging directory and renames it into
// place, so readers never observe a partially written bundle.
func (s *DirStore) Put(_ context.Context, key *Key, bundle *Bundle) error {
	if err := bundle.validate(); err != nil {
		return err
	}
	if s.tempWritesDir == "" {
		return ErrNotReady
	}
	dir := bundleDir(s.baseDir, key)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, key)
	}
	staging, err := os.MkdirTemp(s.tempWritesDir, "bundle-*")
	if err != nil {
		return err
	}
	blobs := []struct {
		name string
		data []byte
	}{
		{ospFileName, bundle.Osp},
		{codeFileName, bundle.CodeProof},
		{postHashFileName, bundle.PostStateHash.Bytes()},
	}
	for _, blob := range blobs {
		if err := s.writeBlob(staging, blob.name, blob.data); err != nil {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				log.Error("Could not remove staging directory", "err", rmErr, "dir", staging)
			}
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dir), os.ModePerm); err != nil {
		return fmt.Errorf("could not make bundle directory %s: %w", dir, err)
	}
	return os.Rename(staging, dir)
}

// Prune removes all bundles of a program root at or below a step.
func (s *DirStore) Prune(_ context.Context, programRoot common.Hash, step uint64) error {
	rootDir := filepath.Join(s.baseDir, programRootDirName(programRoot))
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	numPruned := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		matches := stepDirPattern.FindStringSubmatch(entry.Name())
		if len(matches) < 2 {
			continue
		}
		dirStep, err := strconv.ParseUint(matches[1], 10, 64)
		if err != nil {
			return err
		}
		if dirStep > step {
			continue
		}
		path := filepath.Join(rootDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("could not prune directory with path %s: %w", path, err)
		}
		numPruned++
	}
	log.Info("Pruned bundle store", "numDirsPruned", numPruned, "programRoot", programRoot, "step", step)
	return nil
}

func (s *DirStore) Close() error {
	if s.tempWritesDir == "" {
		return nil
	}
	err := os.RemoveAll(s.tempWritesDir)
	s.tempWritesDir = ""
	return err
}

func (s *DirStore) writeBlob(dir, name string, data []byte) error {
	if s.level >= 0 {
		compressed, err := compress(data, s.level)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", name, err)
		}
		data = compressed
		name += compressedSuffix
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o600)
}

// readBlob prefers the compressed file and falls back to the plain one, so
// a store can be reopened with a different compression setting.
func readBlob(dir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+compressedSuffix))
	if err == nil {
		return decompress(data)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return os.ReadFile(filepath.Join(dir, name))
}

func programRootDirName(root common.Hash) string {
	return fmt.Sprintf("%s-%s", programRootPrefix, root.Hex())
}

func bundleDir(baseDir string, key *Key) string {
	return filepath.Join(
		baseDir,
		programRootDirName(key.ProgramRoot),
		fmt.Sprintf("%s-%d-%s-%d", stepPrefix, key.Step, pcPrefix, key.PC),
	)
}
