// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alt-research/osp/bundlestore"
	"github.com/alt-research/osp/host"
	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/verifier"
	"github.com/alt-research/osp/wavm"
)

func proveToStore(t *testing.T, storeConfig *bundlestore.Config, req *host.Request) *host.Dispute {
	t.Helper()
	ctx := context.Background()
	store, err := bundlestore.Open(ctx, storeConfig)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()
	hostConfig := host.TestConfig
	h, err := host.New(&hostConfig, store)
	require.NoError(t, err)
	dispute, err := h.Prove(ctx, req)
	require.NoError(t, err)
	return dispute
}

func TestVerifyFromStore(t *testing.T) {
	for _, engine := range []string{bundlestore.EngineDir, bundlestore.EngineLeveldb} {
		t.Run(engine, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "bundles")
			dispute := proveToStore(t, &bundlestore.Config{
				Engine:           engine,
				Dir:              dir,
				CompressionLevel: bundlestore.DefaultConfig.CompressionLevel,
				Cache:            16,
				Handles:          16,
			}, &host.Request{
				Program: wavm.FibProgram(),
				Entry:   wavm.FibFunction,
				Args:    []wavm.Value{10},
				Steps:   10,
			})

			config, err := ParseVerifyCLI([]string{
				"--store.engine", engine,
				"--store.dir", dir,
				"--program-root", dispute.Key.ProgramRoot.Hex(),
				"--step", "10",
				"--pc", "10",
			})
			require.NoError(t, err)
			res, err := verifyBundle(context.Background(), config, hashing.Default)
			require.NoError(t, err)
			require.True(t, res.Accepted)
			require.Equal(t, dispute.PostStateHash, res.PostStateHash)

			config.Step = 11
			_, err = verifyBundle(context.Background(), config, hashing.Default)
			require.ErrorIs(t, err, bundlestore.ErrNotFound)
		})
	}
}

func TestVerifyStream(t *testing.T) {
	dispute := proveToStore(t, &bundlestore.Config{
		Engine:           bundlestore.EngineDir,
		Dir:              t.TempDir(),
		CompressionLevel: bundlestore.DefaultConfig.CompressionLevel,
	}, &host.Request{
		Program: wavm.OutOfBoundsProgram(),
		Entry:   wavm.OutOfBoundsFunction,
		Steps:   1,
	})
	stream, err := dispute.Inputs()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "inputs.rlp")
	require.NoError(t, os.WriteFile(path, stream, 0o600))

	config, err := ParseVerifyCLI([]string{"--stream", path})
	require.NoError(t, err)
	res, err := verifyBundle(context.Background(), config, hashing.Default)
	require.NoError(t, err)
	require.True(t, res.Trapped)

	stream[len(stream)-1] ^= 1
	require.NoError(t, os.WriteFile(path, stream, 0o600))
	_, err = verifyBundle(context.Background(), config, hashing.Default)
	require.ErrorIs(t, err, verifier.ErrHashMismatch)
}

func TestInvalidVerifyConfig(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"--program-root", "0x1234"},
		{"--program-root", "not-hex"},
		{"--stream", "x", "--hasher", "md5"},
	} {
		_, err := ParseVerifyCLI(args)
		require.Error(t, err, args)
	}
}
