package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirPathEnv, dir)
	// godotenv does not override variables that are already set.
	for _, key := range []string{"DOCVAULT_PRIVATE_KEY", "DOCVAULT_KDS_URL", "DOCVAULT_STATE_DRIVER", "DOCVAULT_RPC_LISTEN_ADDR", kdsServiceIDEnv} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	dotEnv := "DOCVAULT_PRIVATE_KEY=4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318\n" +
		"DOCVAULT_KDS_URL=ws://localhost:9000/ws\n" +
		"DOCVAULT_STATE_DRIVER=sqlite\n" +
		"DOCVAULT_KDS_SERVICE_ID=" + testServiceID + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(dotEnv), 0o600))
	t.Cleanup(func() {
		for _, key := range []string{"DOCVAULT_PRIVATE_KEY", "DOCVAULT_KDS_URL", "DOCVAULT_STATE_DRIVER", kdsServiceIDEnv} {
			os.Unsetenv(key)
		}
	})

	cfg, err := LoadConfig(testLogger())
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:9000/ws", cfg.KDSURL)
	assert.Equal(t, StateDriverSqlite, cfg.State.Driver)
	assert.Equal(t, ":8000", cfg.RPCListenAddr)
	assert.Equal(t, ":4242", cfg.MetricsListenAddr)
	assert.Empty(t, cfg.OtelEndpoint)
	assert.Equal(t, testServiceID, cfg.VetKD.ServiceAddress().String())
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv(configDirPathEnv, t.TempDir())
	for _, key := range []string{"DOCVAULT_PRIVATE_KEY", "DOCVAULT_KDS_URL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	_, err := LoadConfig(testLogger())
	require.Error(t, err)
}
