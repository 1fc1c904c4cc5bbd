// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// osp-host runs a program up to a step budget, proves the next instruction
// and stores the resulting dispute bundle.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"github.com/alt-research/osp/bundlestore"
	"github.com/alt-research/osp/cmd/genericconf"
	"github.com/alt-research/osp/cmd/util"
	"github.com/alt-research/osp/cmd/util/confighelpers"
	"github.com/alt-research/osp/host"
)

func printSampleUsage(name string) {
	fmt.Printf("Sample usage: %s --program fib --args 10 --steps 10 --store.dir bundles\n", name)
}

func main() {
	os.Exit(mainImpl())
}

// Returns the exit code
func mainImpl() int {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	config, err := ParseHostCLI(os.Args[1:])
	if err != nil {
		confighelpers.PrintErrorAndExit(err, printSampleUsage)
	}
	pathResolver := genericconf.DefaultPathResolver("")
	if err := genericconf.InitLog(config.LogType, config.LogLevel, &config.FileLogging, pathResolver); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return 1
	}
	defer func() {
		if err := genericconf.CloseFileLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing file logger: %v\n", err)
		}
	}()
	if err := util.StartMetrics(&util.MetricsOpts{Metrics: config.Metrics, MetricsServer: config.MetricsServer}); err != nil {
		log.Error("Error starting metrics", "err", err)
		return 1
	}

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigint
		log.Info("shutting down because of sigint")
		cancelFunc()
	}()

	req, err := config.request()
	if err != nil {
		log.Error("Invalid request", "err", err)
		return 1
	}
	config.Store.Dir = pathResolver(config.Store.Dir)
	store, err := bundlestore.Open(ctx, &config.Store)
	if err != nil {
		log.Error("Error opening bundle store", "err", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing bundle store", "err", err)
		}
	}()

	h, err := host.New(&config.Host, store)
	if err != nil {
		log.Error("Error creating host", "err", err)
		return 1
	}
	dispute, err := h.Prove(ctx, req)
	if err != nil {
		log.Error("Error proving step", "program", config.Program, "steps", config.Steps, "err", err)
		return 1
	}

	if config.Stream != "" {
		stream, err := dispute.Inputs()
		if err != nil {
			log.Error("Error encoding input stream", "err", err)
			return 1
		}
		if err := os.WriteFile(pathResolver(config.Stream), stream, 0o600); err != nil {
			log.Error("Error writing input stream", "file", config.Stream, "err", err)
			return 1
		}
	}

	fmt.Println(dispute.Audit)
	fmt.Printf("bundle %v\n", &dispute.Key)
	fmt.Printf("prove time: %v\n", dispute.ProveTime)
	fmt.Printf("verify time: %v\n", dispute.VerifyTime)
	return 0
}
