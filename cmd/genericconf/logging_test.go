// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package genericconf

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

func TestToSlogLevel(t *testing.T) {
	for str, want := range map[string]slog.Level{
		"trace": log.LevelTrace,
		"DEBUG": log.LevelDebug,
		"info":  log.LevelInfo,
		"warn":  log.LevelWarn,
		"error": log.LevelError,
		"crit":  log.LevelCrit,
	} {
		got, err := ToSlogLevel(str)
		require.NoError(t, err, str)
		require.Equal(t, want, got, str)
	}
	_, err := ToSlogLevel("verbose")
	require.Error(t, err)
}

func TestHandlerFromLogType(t *testing.T) {
	var buf bytes.Buffer
	handler, err := HandlerFromLogType("json", &buf)
	require.NoError(t, err)
	log.NewLogger(handler).Info("hello", "pc", 10)
	require.Contains(t, buf.String(), `"msg":"hello"`)
	require.Contains(t, buf.String(), `"pc":10`)

	buf.Reset()
	handler, err = HandlerFromLogType("plaintext", &buf)
	require.NoError(t, err)
	log.NewLogger(handler).Info("hello", "pc", 10)
	require.Contains(t, buf.String(), "INFO")
	require.Contains(t, buf.String(), "pc=10")

	_, err = HandlerFromLogType("xml", &buf)
	require.Error(t, err)
}

func TestInitLogToFile(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, InitLog("yaml", "info", &DefaultFileLoggingConfig, DefaultPathResolver(dir)))
	require.Error(t, InitLog("plaintext", "loud", &DefaultFileLoggingConfig, DefaultPathResolver(dir)))

	config := DefaultFileLoggingConfig
	config.Enable = true
	config.Compress = false
	require.NoError(t, InitLog("plaintext", "info", &config, DefaultPathResolver(dir)))
	t.Cleanup(func() {
		disabled := DefaultFileLoggingConfig
		require.NoError(t, InitLog("plaintext", "info", &disabled, DefaultPathResolver(dir)))
	})

	log.Info("written to file", "step", 11)
	log.Debug("filtered out")
	require.NoError(t, CloseFileLogger())

	data, err := os.ReadFile(filepath.Join(dir, config.File))
	require.NoError(t, err)
	require.Contains(t, string(data), "written to file")
	require.NotContains(t, string(data), "filtered out")
}
