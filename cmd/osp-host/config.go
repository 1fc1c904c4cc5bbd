// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"errors"
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/alt-research/osp/bundlestore"
	"github.com/alt-research/osp/cmd/genericconf"
	"github.com/alt-research/osp/cmd/util/confighelpers"
	"github.com/alt-research/osp/host"
	"github.com/alt-research/osp/wavm"
)

type HostCLIConfig struct {
	Conf          genericconf.ConfConfig          `koanf:"conf"`
	LogLevel      string                          `koanf:"log-level"`
	LogType       string                          `koanf:"log-type"`
	FileLogging   genericconf.FileLoggingConfig   `koanf:"file-logging"`
	Metrics       bool                            `koanf:"metrics"`
	MetricsServer genericconf.MetricsServerConfig `koanf:"metrics-server"`
	Program       string                          `koanf:"program"`
	Entry         string                          `koanf:"entry"`
	Args          []string                        `koanf:"args"`
	Steps         uint64                          `koanf:"steps"`
	Stream        string                          `koanf:"stream"`
	Host          host.Config                     `koanf:"host"`
	Store         bundlestore.Config              `koanf:"store"`
}

var HostCLIConfigDefault = HostCLIConfig{
	Conf:          genericconf.ConfConfigDefault,
	LogLevel:      "info",
	LogType:       "plaintext",
	FileLogging:   genericconf.DefaultFileLoggingConfig,
	Metrics:       false,
	MetricsServer: genericconf.MetricsServerConfigDefault,
	Program:       wavm.FibFunction,
	Entry:         "",
	Args:          []string{"10"},
	Steps:         10,
	Stream:        "",
	Host:          host.DefaultConfig,
	Store:         bundlestore.DefaultConfig,
}

func HostCLIConfigAddOptions(f *flag.FlagSet) {
	genericconf.ConfConfigAddOptions("conf", f)
	f.String("log-level", HostCLIConfigDefault.LogLevel, "log level (trace, debug, info, warn, error or crit)")
	f.String("log-type", HostCLIConfigDefault.LogType, "log type (plaintext or json)")
	genericconf.FileLoggingConfigAddOptions("file-logging", f)
	f.Bool("metrics", HostCLIConfigDefault.Metrics, "enable metrics")
	genericconf.MetricsServerAddOptions("metrics-server", f)
	f.String("program", HostCLIConfigDefault.Program, "builtin program name (fib, sum_squares or oob) or path to a JSON program file")
	f.String("entry", HostCLIConfigDefault.Entry, "function to enter (defaults to the builtin's own entry)")
	f.StringSlice("args", HostCLIConfigDefault.Args, "entry function arguments")
	f.Uint64("steps", HostCLIConfigDefault.Steps, "steps to run before the disputed instruction")
	f.String("stream", HostCLIConfigDefault.Stream, "also write the combined verifier input stream to this file")
	host.ConfigAddOptions("host", f)
	bundlestore.ConfigAddOptions("store", f)
}

func (c *HostCLIConfig) Validate() error {
	if c.Program == "" {
		return errors.New("--program is required")
	}
	if err := c.Host.Validate(); err != nil {
		return err
	}
	return c.Store.Validate()
}

// request resolves the program and parses the arguments.
func (c *HostCLIConfig) request() (*host.Request, error) {
	prog, entry, err := wavm.Builtin(c.Program)
	if err != nil {
		if prog, err = wavm.LoadProgram(c.Program); err != nil {
			return nil, fmt.Errorf("loading program %q: %w", c.Program, err)
		}
	}
	if c.Entry != "" {
		entry = c.Entry
	}
	if entry == "" {
		return nil, errors.New("--entry is required for program files")
	}
	args := make([]wavm.Value, len(c.Args))
	for i, arg := range c.Args {
		v, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return &host.Request{
		Program: prog,
		Entry:   entry,
		Args:    args,
		Steps:   c.Steps,
	}, nil
}

func ParseHostCLI(args []string) (*HostCLIConfig, error) {
	f := flag.NewFlagSet("osp-host", flag.ContinueOnError)
	HostCLIConfigAddOptions(f)

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}
	var config HostCLIConfig
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
