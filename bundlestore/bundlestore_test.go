// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package bundlestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alt-research/osp/util/testhelpers"
	"github.com/alt-research/osp/util/testhelpers/env"
)

func testBundle(t *testing.T, seed uint64) *Bundle {
	t.Helper()
	rand := testhelpers.NewPseudoRandomDataSource(t, seed)
	return &Bundle{
		Osp:           rand.GetData(300),
		CodeProof:     rand.GetData(120),
		PostStateHash: rand.GetHash(),
	}
}

func openTestStore(t *testing.T, engine string, compress bool) Store {
	t.Helper()
	config := DefaultConfig
	config.Engine = engine
	config.Dir = filepath.Join(t.TempDir(), "bundles")
	config.Compress = compress
	s, err := Open(context.Background(), &config)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	root := common.BytesToHash([]byte("foo"))
	key := &Key{ProgramRoot: root, Step: 10, PC: 10}

	t.Run("Not found", func(t *testing.T) {
		_, err := s.Get(ctx, key)
		require.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("Putting empty bundle fails", func(t *testing.T) {
		err := s.Put(ctx, key, &Bundle{PostStateHash: root})
		require.ErrorIs(t, err, ErrEmptyBundle)
	})

	want := testBundle(t, 1)
	require.NoError(t, s.Put(ctx, key, want))

	t.Run("Can only write once under same key", func(t *testing.T) {
		err := s.Put(ctx, key, testBundle(t, 2))
		require.ErrorIs(t, err, ErrAlreadyExists)
	})
	t.Run("Round trip", func(t *testing.T) {
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, want, got)
	})
	t.Run("Keys are distinct", func(t *testing.T) {
		_, err := s.Get(ctx, &Key{ProgramRoot: root, Step: 10, PC: 11})
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, &Key{ProgramRoot: common.BytesToHash([]byte("bar")), Step: 10, PC: 10})
		require.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("Prune", func(t *testing.T) {
		other := common.BytesToHash([]byte("bar"))
		keys := []*Key{
			{ProgramRoot: root, Step: 2, PC: 7},
			{ProgramRoot: root, Step: 11, PC: 3},
			{ProgramRoot: root, Step: 300, PC: 0},
			{ProgramRoot: other, Step: 2, PC: 7},
		}
		for i, k := range keys {
			require.NoError(t, s.Put(ctx, k, testBundle(t, uint64(10+i))))
		}
		require.NoError(t, s.Prune(ctx, root, 10))

		for _, k := range []*Key{key, keys[0]} {
			_, err := s.Get(ctx, k)
			require.ErrorIs(t, err, ErrNotFound, "key %v", k)
		}
		for _, k := range keys[1:] {
			_, err := s.Get(ctx, k)
			require.NoError(t, err, "key %v", k)
		}
		require.NoError(t, s.Prune(ctx, common.BytesToHash([]byte("unknown")), 1000))
	})
}

func TestStore(t *testing.T) {
	for _, engine := range []string{EngineDir, EnginePebble, EngineLeveldb} {
		for _, compress := range []bool{false, true} {
			name := engine
			if compress {
				name += "-brotli"
			}
			t.Run(name, func(t *testing.T) {
				testStore(t, openTestStore(t, engine, compress))
			})
		}
	}
}

func TestFlagSelectedEngine(t *testing.T) {
	testStore(t, openTestStore(t, env.GetTestBundleEngine(), false))
}

func TestDirLayout(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s := NewDirStore(base, -1)
	key := &Key{Step: 42, PC: 7}
	require.ErrorIs(t, s.Put(ctx, key, testBundle(t, 3)), ErrNotReady)
	require.NoError(t, s.Init(ctx))
	defer func() { require.NoError(t, s.Close()) }()

	want := testBundle(t, 3)
	require.NoError(t, s.Put(ctx, key, want))
	dir := filepath.Join(
		base,
		"program-root-0x0000000000000000000000000000000000000000000000000000000000000000",
		"step-42-pc-7",
	)
	ospBytes, err := os.ReadFile(filepath.Join(dir, "osp.bin"))
	require.NoError(t, err)
	require.Equal(t, want.Osp, ospBytes)
	post, err := os.ReadFile(filepath.Join(dir, "post-hash.bin"))
	require.NoError(t, err)
	require.Equal(t, want.PostStateHash.Bytes(), post)

	// Nothing is left behind in the staging directory.
	staged, err := os.ReadDir(s.tempWritesDir)
	require.NoError(t, err)
	require.Empty(t, staged)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "post-hash.bin"), []byte{1, 2, 3}, 0o600))
	_, err = s.Get(ctx, key)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "expected 32 byte post-state hash"), err.Error())
}

func TestDirReopenWithOtherCompression(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	compressed := NewDirStore(base, bestCompressionLevel)
	require.NoError(t, compressed.Init(ctx))
	key := &Key{ProgramRoot: common.HexToHash("0xab"), Step: 1, PC: 2}
	want := testBundle(t, 4)
	require.NoError(t, compressed.Put(ctx, key, want))
	require.NoError(t, compressed.Close())

	plain := NewDirStore(base, -1)
	require.NoError(t, plain.Init(ctx))
	defer func() { require.NoError(t, plain.Close()) }()
	got, err := plain.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestKVReopen(t *testing.T) {
	for _, engine := range []string{EnginePebble, EngineLeveldb} {
		t.Run(engine, func(t *testing.T) {
			ctx := context.Background()
			dir := filepath.Join(t.TempDir(), engine)
			key := &Key{ProgramRoot: common.HexToHash("0xcd"), Step: 3, PC: 7}
			want := testBundle(t, 5)

			s, err := OpenKVStore(engine, dir, 16, 16, defaultCompressionLevel)
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, key, want))
			require.NoError(t, s.Close())

			s, err = OpenKVStore(engine, dir, 16, 16, -1)
			require.NoError(t, err)
			defer func() { require.NoError(t, s.Close()) }()
			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			require.Equal(t, want, got)
			require.ErrorIs(t, s.Put(ctx, key, want), ErrAlreadyExists)
		})
	}
	_, err := OpenKVStore(EngineDir, t.TempDir(), 16, 16, -1)
	require.Error(t, err)
}

func TestCompression(t *testing.T) {
	data := []byte(strings.Repeat("one step proof ", 200))
	for _, level := range []int{0, defaultCompressionLevel, bestCompressionLevel} {
		enc, err := compress(data, level)
		require.NoError(t, err)
		require.Less(t, len(enc), len(data))
		dec, err := decompress(enc)
		require.NoError(t, err)
		require.Equal(t, data, dec)
	}
	same, err := compress(data, -1)
	require.NoError(t, err)
	require.Equal(t, data, same)

	_, err = decodeBundle([]byte{7, 1, 2})
	require.Error(t, err)
	_, err = decodeBundle(nil)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig
	require.NoError(t, config.Validate())
	config.Engine = "rocksdb"
	require.Error(t, config.Validate())
	config = DefaultConfig
	config.Dir = ""
	require.Error(t, config.Validate())
	config = DefaultConfig
	config.CompressionLevel = 12
	require.Error(t, config.Validate())
}
