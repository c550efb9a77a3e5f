package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReadOrDefault(t *testing.T) {
	t.Setenv("SOME_STRING", "value")
	t.Setenv("EMPTY_STRING", "")
	t.Setenv("SOME_INT", "42")
	t.Setenv("BAD_INT", "forty-two")

	assert.Equal(t, "value", ReadOrDefault("SOME_STRING", "default"))
	assert.Equal(t, "default", ReadOrDefault("EMPTY_STRING", "default"))
	assert.Equal(t, "default", ReadOrDefault("NOT_HERE", "default"))

	assert.Equal(t, 42, ReadIntOrDefault("SOME_INT", 1))
	assert.Equal(t, 1, ReadIntOrDefault("BAD_INT", 1))
	assert.Equal(t, 1, ReadIntOrDefault("NOT_HERE", 1))
}

func TestReadDurationOrDefault(t *testing.T) {
	t.Setenv("PROBE_TIMEOUT", "1500ms")
	t.Setenv("BAD_TIMEOUT", "soon")

	assert.Equal(t, 1500*time.Millisecond, ReadDurationOrDefault("PROBE_TIMEOUT", time.Second))
	assert.Equal(t, time.Second, ReadDurationOrDefault("BAD_TIMEOUT", time.Second))
	assert.Equal(t, time.Second, ReadDurationOrDefault("NOT_HERE", time.Second))
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("DOTENV_ONLY=from-file\nDOTENV_BOTH=from-file\n"), 0o600))

	t.Setenv("DOTENV_BOTH", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("DOTENV_ONLY") })

	require.NoError(t, LoadDotEnv(file))

	assert.Equal(t, "from-file", os.Getenv("DOTENV_ONLY"))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_BOTH"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestPrintWithPrefix(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	t.Setenv("HEALTH_POLL_INTERVAL", "2s")
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("UNRELATED_SECRET", "hunter2")

	PrintWithPrefix([]string{"API_", "HEALTH_"})

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, "Environment variables:", messages[0])
	assert.Contains(t, messages, "API_ADDR=:9000")
	assert.Contains(t, messages, "HEALTH_POLL_INTERVAL=2s")
	assert.NotContains(t, messages, "UNRELATED_SECRET=hunter2")
}
