package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb/mongodb-dc-topology/pkg/util"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv(util.OmOperatorEnv, "DEV")
	t.Setenv(util.LogFileEnv, "/tmp/topology.log")
	t.Setenv(util.LogMaxSizeMBEnv, "5")

	opts := OptionsFromEnv()
	assert.Equal(t, util.OperatorEnvironmentDev, opts.Environment)
	assert.Equal(t, "/tmp/topology.log", opts.File)
	assert.Equal(t, 5, opts.MaxSizeMB)
	assert.Equal(t, util.DefaultLogMaxBackups, opts.MaxBackups)
	assert.Equal(t, util.DefaultLogMaxAgeDays, opts.MaxAgeDays)
}

func TestNewRejectsUnknownEnvironment(t *testing.T) {
	_, _, err := New(Options{Environment: "staging"})
	assert.Error(t, err)
}

func TestNewTeesIntoFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "topology.log")
	logger, closeFn, err := New(Options{Environment: util.OperatorEnvironmentProd, File: file, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Sugar().Infow("Topology applied", "run", "abc")
	logger.Sugar().Debug("below the production level")
	closeFn()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Topology applied"`)
	assert.Contains(t, string(data), `"run":"abc"`)
	assert.NotContains(t, string(data), "below the production level")
}
