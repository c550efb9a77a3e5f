package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb/mongodb-dc-topology/pkg/util"
	"github.com/mongodb/mongodb-dc-topology/pkg/wait"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{util.OmOperatorEnv, util.PprofEnabledEnv, util.TopologyFileEnv, util.HealthWaitTimeoutEnv, util.HealthPollIntervalEnv, util.ApiAddrEnv} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, util.OperatorEnvironmentProd, cfg.Environment)
	assert.Equal(t, "topology.yaml", cfg.TopologyFile)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.WaitTimeout)
	assert.Equal(t, ":8000", cfg.ApiAddr)
	assert.False(t, cfg.Pprof)
	assert.Equal(t, wait.Forever(wait.Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2}), cfg.WaitOptions())
}

func TestLoadConfigFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HEALTH_WAIT_TIMEOUT=3m\nAPI_ADDR=:9000\n"), 0o600))
	t.Setenv(util.ApiAddrEnv, ":9100")
	t.Setenv(util.OmOperatorEnv, "dev")
	t.Setenv(util.PprofEnabledEnv, "")
	// make sure the .env value is not left over for other tests
	t.Setenv(util.HealthWaitTimeoutEnv, "")
	require.NoError(t, os.Unsetenv(util.HealthWaitTimeoutEnv))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, cfg.WaitTimeout)
	// the real environment wins over .env
	assert.Equal(t, ":9100", cfg.ApiAddr)
	assert.True(t, cfg.Pprof)
	assert.Equal(t, 3*time.Minute, cfg.WaitOptions().Timeout)
}

func TestLoadConfigRejectsBadPprofFlag(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(util.PprofEnabledEnv, "sometimes")
	_, err := LoadConfig()
	assert.Error(t, err)
}
