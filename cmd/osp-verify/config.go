// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	flag "github.com/spf13/pflag"

	"github.com/alt-research/osp/bundlestore"
	"github.com/alt-research/osp/cmd/genericconf"
	"github.com/alt-research/osp/cmd/util/confighelpers"
	"github.com/alt-research/osp/util/hashing"
)

type VerifyCLIConfig struct {
	Conf        genericconf.ConfConfig `koanf:"conf"`
	LogLevel    string                 `koanf:"log-level"`
	LogType     string                 `koanf:"log-type"`
	Hasher      string                 `koanf:"hasher"`
	Stream      string                 `koanf:"stream"`
	ProgramRoot string                 `koanf:"program-root"`
	Step        uint64                 `koanf:"step"`
	PC          uint64                 `koanf:"pc"`
	Store       bundlestore.Config     `koanf:"store"`
}

var VerifyCLIConfigDefault = VerifyCLIConfig{
	Conf:        genericconf.ConfConfigDefault,
	LogLevel:    "warn",
	LogType:     "plaintext",
	Hasher:      hashing.Default.Name(),
	Stream:      "",
	ProgramRoot: "",
	Step:        0,
	PC:          0,
	Store:       bundlestore.DefaultConfig,
}

func VerifyCLIConfigAddOptions(f *flag.FlagSet) {
	genericconf.ConfConfigAddOptions("conf", f)
	f.String("log-level", VerifyCLIConfigDefault.LogLevel, "log level (trace, debug, info, warn, error or crit)")
	f.String("log-type", VerifyCLIConfigDefault.LogType, "log type (plaintext or json)")
	f.String("hasher", VerifyCLIConfigDefault.Hasher, "commitment hash function (keccak256, sha256, sha3-256 or blake3)")
	f.String("stream", VerifyCLIConfigDefault.Stream, "combined verifier input stream file; if unset the bundle is read from the store")
	f.String("program-root", VerifyCLIConfigDefault.ProgramRoot, "program root of the bundle to verify")
	f.Uint64("step", VerifyCLIConfigDefault.Step, "step of the bundle to verify")
	f.Uint64("pc", VerifyCLIConfigDefault.PC, "pc of the bundle to verify")
	bundlestore.ConfigAddOptions("store", f)
}

func (c *VerifyCLIConfig) Validate() error {
	if _, err := hashing.FromName(c.Hasher); err != nil {
		return err
	}
	if c.Stream != "" {
		return nil
	}
	if c.ProgramRoot == "" {
		return errors.New("either --stream or --program-root is required")
	}
	if b, err := hexutil.Decode(c.ProgramRoot); err != nil || len(b) != common.HashLength {
		return fmt.Errorf("invalid --program-root %q", c.ProgramRoot)
	}
	return c.Store.Validate()
}

func (c *VerifyCLIConfig) key() *bundlestore.Key {
	return &bundlestore.Key{
		ProgramRoot: common.HexToHash(c.ProgramRoot),
		Step:        c.Step,
		PC:          c.PC,
	}
}

func ParseVerifyCLI(args []string) (*VerifyCLIConfig, error) {
	f := flag.NewFlagSet("osp-verify", flag.ContinueOnError)
	VerifyCLIConfigAddOptions(f)

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}
	var config VerifyCLIConfig
	if err := confighelpers.EndCommonParse(k, &config); err != nil {
		return nil, err
	}
	if config.Conf.Dump {
		if err := confighelpers.DumpConfig(k); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
