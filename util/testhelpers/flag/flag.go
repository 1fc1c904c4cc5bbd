// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package testflag

import (
	"flag"
	"log"
	"os"
)

var (
	fs               = flag.NewFlagSet("test", flag.ExitOnError)
	HasherFlag       = fs.String("test_hasher", "", "Hash function to commit with in tests")
	BundleEngineFlag = fs.String("test_bundle_engine", "", "Bundle store engine to use for tests")
	LogLevelFlag     = fs.String("test_loglevel", "", "Log level for tests")
)

// This is a workaround for the fact that we can only pass flags to the package in which they are defined.
// So to avoid doing that we pass the flags after adding a delimiter "--" to the command line.
// We then parse the arguments only after the delimiter to the flagset.
func init() {
	var args []string
	foundDelimiter := false
	for _, arg := range os.Args {
		if foundDelimiter {
			args = append(args, arg)
		}
		if arg == "--" {
			foundDelimiter = true
		}
	}
	if err := fs.Parse(args); err != nil {
		log.Fatal(err)
	}
}
