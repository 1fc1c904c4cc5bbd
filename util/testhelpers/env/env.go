// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package env

import (
	"log/slog"

	"github.com/ethereum/go-ethereum/log"

	"github.com/alt-research/osp/util/hashing"
	testflag "github.com/alt-research/osp/util/testhelpers/flag"
)

const (
	EngineDir     = "dir"
	EnginePebble  = "pebble"
	EngineLeveldb = "leveldb"
)

// GetTestHasher lets a CI step run the proof tests under a different hash
// function.
func GetTestHasher() hashing.Hasher {
	if *testflag.HasherFlag == "" {
		return hashing.Default
	}
	h, err := hashing.FromName(*testflag.HasherFlag)
	if err != nil {
		log.Warn("invalid test hasher flag; using default",
			"provided", *testflag.HasherFlag,
			"default", hashing.Default.Name(),
		)
		return hashing.Default
	}
	log.Debug("test hasher", "hasher", h.Name())
	return h
}

func GetTestBundleEngine() string {
	engineFlag := *testflag.BundleEngineFlag
	engine := EngineDir

	switch engineFlag {
	case EngineDir, EnginePebble, EngineLeveldb:
		engine = engineFlag
	case "":
	default:
		log.Warn("invalid test bundle engine flag; using default",
			"provided", engineFlag,
			"default", EngineDir,
		)
	}

	log.Debug("test bundle engine", "testBundleEngine", engine)
	return engine
}

func GetTestLogLevel() slog.Level {
	switch *testflag.LogLevelFlag {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
