package common

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/pprof"
	"github.com/mongodb/mongodb-dc-topology/pkg/util"
	"github.com/mongodb/mongodb-dc-topology/pkg/util/env"
	"github.com/mongodb/mongodb-dc-topology/pkg/wait"
)

// Config is the process configuration. It is read from the environment after a .env file in the working
// directory, if any, has been loaded.
type Config struct {
	Environment  util.OperatorEnvironment
	TopologyFile string
	ExternalHost string
	// ProbeTimeout bounds a single health probe
	ProbeTimeout time.Duration
	// PollInterval is the longest sleep between health probes
	PollInterval time.Duration
	// WaitTimeout bounds every health wait, 0 waits until interrupted
	WaitTimeout     time.Duration
	AdminTimeout    time.Duration
	ApiAddr         string
	ApiUrl          string
	RouterCacheSize int
	OtelEndpoint    string
	Pprof           bool
}

// LoadConfig reads the configuration. Invalid durations fall back to their defaults.
func LoadConfig() (Config, error) {
	if err := env.LoadDotEnv(); err != nil {
		return Config{}, xerrors.Errorf("failed to load .env file: %w", err)
	}
	operatorEnv := util.OperatorEnvironment(env.ReadOrDefault(util.OmOperatorEnv, util.OperatorEnvironmentProd.String()))
	pprofEnabled, err := pprof.IsPprofEnabled(env.ReadOrDefault(util.PprofEnabledEnv, ""), operatorEnv)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Environment:     operatorEnv,
		TopologyFile:    env.ReadOrDefault(util.TopologyFileEnv, util.DefaultTopologyFile),
		ExternalHost:    env.ReadOrDefault(util.ExternalHostEnv, util.DefaultExternalHost),
		ProbeTimeout:    env.ReadDurationOrDefault(util.HealthProbeTimeoutEnv, mustDuration(util.DefaultHealthProbeTimeout)),
		PollInterval:    env.ReadDurationOrDefault(util.HealthPollIntervalEnv, mustDuration(util.DefaultHealthPollInterval)),
		WaitTimeout:     env.ReadDurationOrDefault(util.HealthWaitTimeoutEnv, 0),
		AdminTimeout:    env.ReadDurationOrDefault(util.AdminCommandTimeoutEnv, mustDuration(util.DefaultAdminCommandTimeout)),
		ApiAddr:         env.ReadOrDefault(util.ApiAddrEnv, util.DefaultApiAddr),
		ApiUrl:          env.ReadOrDefault(util.ApiUrlEnv, util.DefaultApiUrl),
		RouterCacheSize: env.ReadIntOrDefault(util.RouterCacheSizeEnv, util.DefaultRouterCacheSize),
		OtelEndpoint:    env.ReadOrDefault(util.OtelEndpointEnv, ""),
		Pprof:           pprofEnabled,
	}
	if cfg.PollInterval <= 0 {
		return Config{}, xerrors.Errorf("%s must be positive, got %s", util.HealthPollIntervalEnv, cfg.PollInterval)
	}
	return cfg, nil
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

// WaitOptions turns the health settings into wait options: probes back off exponentially from a tenth of the
// poll interval up to the poll interval.
func (c Config) WaitOptions() wait.Options {
	backoff := wait.Backoff{Initial: c.PollInterval / 10, Max: c.PollInterval, Factor: 2}
	if backoff.Initial <= 0 {
		backoff = wait.Fixed(c.PollInterval)
	}
	if c.WaitTimeout <= 0 {
		return wait.Forever(backoff)
	}
	return wait.WithTimeout(backoff, c.WaitTimeout)
}
