package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humblenginr/astros_dag/astros"
	"github.com/humblenginr/astros_dag/xcom"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"ASTROS_URL", "ASTROS_TIMEOUT", "TASK_TIMEOUT", "FETCH_RETRIES", "PRINT_RETRIES", "WORKERS", "XCOM_PG_DSN", "XCOM_MAX_RUNS", "GREETING"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, astros.DefaultURL, cfg.URL)
	assert.Zero(t, cfg.Timeout)
	assert.Zero(t, cfg.TaskTimeout)
	assert.Equal(t, "Hello!", cfg.Greeting)
	assert.Zero(t, cfg.FetchRetries)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, xcom.DefaultMaxRuns, cfg.XComMaxRuns)
	assert.Empty(t, cfg.XComDSN)
}

func TestLoadEnvAndFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASTROS_URL", "http://example.test/astros.json")
	t.Setenv("ASTROS_TIMEOUT", "5s")
	t.Setenv("FETCH_RETRIES", "2")
	t.Setenv("WORKERS", "not-a-number")
	t.Setenv("GREETING", "Hi")

	t.Setenv("TASK_TIMEOUT", "30s")

	cfg, err := Load([]string{"-workers", "8"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.test/astros.json", cfg.URL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(2), cfg.FetchRetries)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "Hi", cfg.Greeting)
	assert.Equal(t, 30*time.Second, cfg.TaskTimeout)
}

func TestLoadTaskTimeoutFlag(t *testing.T) {
	clearEnv(t)

	cfg, err := Load([]string{"-task-timeout", "2m"})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.TaskTimeout)
}

func TestLoadBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASTROS_TIMEOUT", "soon")

	_, err := Load(nil)
	assert.Error(t, err)
}
