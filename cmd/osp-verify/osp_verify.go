// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// osp-verify checks a dispute bundle. It exits 0 if the claimed post-state
// holds and 1 otherwise.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"

	"github.com/alt-research/osp/bundlestore"
	"github.com/alt-research/osp/cmd/util"
	"github.com/alt-research/osp/cmd/util/confighelpers"
	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/verifier"
)

func printSampleUsage(name string) {
	fmt.Printf("Sample usage: %s --stream inputs.rlp\n", name)
	fmt.Printf("              %s --store.dir bundles --program-root 0x... --step 10 --pc 10\n", name)
}

func main() {
	os.Exit(mainImpl())
}

func verifyBundle(ctx context.Context, config *VerifyCLIConfig, h hashing.Hasher) (*verifier.Result, error) {
	if config.Stream != "" {
		data, err := os.ReadFile(config.Stream)
		if err != nil {
			return nil, err
		}
		return verifier.VerifyInputs(h, data)
	}
	store, err := bundlestore.Open(ctx, &config.Store)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing bundle store", "err", err)
		}
	}()
	bundle, err := store.Get(ctx, config.key())
	if err != nil {
		return nil, err
	}
	return verifier.Verify(h, bundle.Osp, bundle.CodeProof, bundle.PostStateHash.Bytes())
}

// Returns the exit code
func mainImpl() int {
	config, err := ParseVerifyCLI(os.Args[1:])
	if err != nil {
		confighelpers.PrintErrorAndExit(err, printSampleUsage)
	}
	if err := util.SetLogger(config.LogLevel, config.LogType); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return 1
	}
	h, err := hashing.FromName(config.Hasher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	res, err := verifyBundle(context.Background(), config, h)
	if err != nil {
		fmt.Printf("rejected: %v\n", err)
		return 1
	}
	if res.Trapped {
		fmt.Printf("accepted (trapped): post-state %v\n", res.PostStateHash)
	} else {
		fmt.Printf("accepted: post-state %v\n", res.PostStateHash)
	}
	return 0
}
