// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alt-research/osp/bundlestore"
	"github.com/alt-research/osp/util/testhelpers"
	"github.com/alt-research/osp/wavm"
)

func Require(t *testing.T, err error, text ...interface{}) {
	t.Helper()
	testhelpers.RequireImpl(t, err, text...)
}

func TestDefaultConfig(t *testing.T) {
	config, err := ParseHostCLI(nil)
	Require(t, err)
	req, err := config.request()
	Require(t, err)
	require.Equal(t, wavm.FibFunction, req.Entry)
	require.Equal(t, []wavm.Value{10}, req.Args)
	require.Equal(t, uint64(10), req.Steps)
	require.Equal(t, bundlestore.EngineDir, config.Store.Engine)
}

func TestBuiltinConfig(t *testing.T) {
	args := strings.Split("--program sum_squares --args 0x3 --steps 4 --store.engine pebble --store.compress --host.hasher blake3 --host.cross-check=false", " ")
	config, err := ParseHostCLI(args)
	Require(t, err)
	require.Equal(t, bundlestore.EnginePebble, config.Store.Engine)
	require.True(t, config.Store.Compress)
	require.Equal(t, "blake3", config.Host.Hasher)
	require.False(t, config.Host.CrossCheck)
	req, err := config.request()
	Require(t, err)
	require.Equal(t, wavm.SumSquaresFunction, req.Entry)
	require.Equal(t, []wavm.Value{3}, req.Args)
}

func TestProgramFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "double.json")
	Require(t, os.WriteFile(path, []byte(`{
  "functions": [{
    "name": "double", "params": 1, "locals": 1, "results": 1,
    "code": [{"op": "local.get", "arg": 0}, {"op": "local.get", "arg": 0}, {"op": "i64.add"}, {"op": "return"}]
  }]
}`), 0o600))

	config, err := ParseHostCLI([]string{"--program", path, "--args", "21", "--steps", "2"})
	Require(t, err)
	_, err = config.request()
	require.ErrorContains(t, err, "--entry is required")

	config, err = ParseHostCLI([]string{"--program", path, "--entry", "double", "--args", "21", "--steps", "2"})
	Require(t, err)
	req, err := config.request()
	Require(t, err)
	require.Equal(t, "double", req.Entry)
	require.Len(t, req.Program.Code, 4)
}

func TestInvalidConfig(t *testing.T) {
	for _, args := range []string{
		"--program",
		"--host.hasher md5",
		"--store.engine rocksdb",
		"--host.concurrency 0",
		"--steps many",
	} {
		_, err := ParseHostCLI(strings.Split(args, " "))
		require.Error(t, err, args)
	}

	config, err := ParseHostCLI([]string{"--program", "missing.json"})
	Require(t, err)
	_, err = config.request()
	require.Error(t, err)

	config, err = ParseHostCLI([]string{"--args", "-1"})
	Require(t, err)
	_, err = config.request()
	require.Error(t, err)
}
