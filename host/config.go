// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package host

import (
	"errors"
	"runtime"

	flag "github.com/spf13/pflag"

	"github.com/alt-research/osp/util/hashing"
)

type Config struct {
	MaxSteps          uint64 `koanf:"max-steps"`
	Hasher            string `koanf:"hasher"`
	CrossCheck        bool   `koanf:"cross-check"`
	CodeTreeCacheSize int    `koanf:"code-tree-cache-size"`
	Concurrency       int    `koanf:"concurrency"`
}

var DefaultConfig = Config{
	MaxSteps:          1 << 32,
	Hasher:            hashing.Default.Name(),
	CrossCheck:        true,
	CodeTreeCacheSize: 16,
	Concurrency:       runtime.NumCPU(),
}

// TestConfig keeps the batch small and always cross-checks.
var TestConfig = Config{
	MaxSteps:          1 << 20,
	Hasher:            hashing.Default.Name(),
	CrossCheck:        true,
	CodeTreeCacheSize: 4,
	Concurrency:       2,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Uint64(prefix+".max-steps", DefaultConfig.MaxSteps, "largest step budget a dispute may request")
	f.String(prefix+".hasher", DefaultConfig.Hasher, "commitment hash function (keccak256, sha256, sha3-256 or blake3)")
	f.Bool(prefix+".cross-check", DefaultConfig.CrossCheck, "step the real machine and compare its commitment with the proven post-state")
	f.Int(prefix+".code-tree-cache-size", DefaultConfig.CodeTreeCacheSize, "number of program code trees to keep cached")
	f.Int(prefix+".concurrency", DefaultConfig.Concurrency, "disputes proven in parallel by a batch")
}

func (c *Config) Validate() error {
	if _, err := hashing.FromName(c.Hasher); err != nil {
		return err
	}
	if c.MaxSteps == 0 {
		return errors.New("max-steps must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	return nil
}
