package common

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	topologyv1 "github.com/mongodb/mongodb-dc-topology/api/v1/topology"
	"github.com/mongodb/mongodb-dc-topology/controllers/process"
	"github.com/mongodb/mongodb-dc-topology/controllers/topology"
	"github.com/mongodb/mongodb-dc-topology/pkg/admin"
	"github.com/mongodb/mongodb-dc-topology/pkg/container"
	"github.com/mongodb/mongodb-dc-topology/pkg/logging"
	"github.com/mongodb/mongodb-dc-topology/pkg/telemetry"
	"github.com/mongodb/mongodb-dc-topology/pkg/util/env"
)

// TopologyFile is bound to the --file flag of the root command, it overrides TOPOLOGY_FILE.
var TopologyFile string

// printableEnvPrefixes are the environment variables logged when a session starts.
var printableEnvPrefixes = []string{
	"OPERATOR_ENV",
	"LOG_",
	"TOPOLOGY_",
	"HEALTH_",
	"ADMIN_",
	"API_",
	"EXTERNAL_HOST",
	"OTEL_",
	"PPROF_",
	"ROUTER_",
}

// Session holds everything a command needs. Close releases it in reverse order of acquisition.
type Session struct {
	Config       Config
	Log          *zap.SugaredLogger
	Topology     topologyv1.Topology
	Runtime      container.Runtime
	Orchestrator *topology.Orchestrator
	closers      []func()
}

// NewSession configures logging and tracing, loads the topology and connects to the container runtime. With
// attachOnly set the Orchestrator never creates servers.
func NewSession(ctx context.Context, attachOnly bool) (*Session, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if TopologyFile != "" {
		cfg.TopologyFile = TopologyFile
	}

	log, closeLog, err := logging.Setup()
	if err != nil {
		return nil, err
	}
	s := &Session{Config: cfg, Log: log, closers: []func(){closeLog}}
	env.PrintWithPrefix(printableEnvPrefixes)

	tp, err := telemetry.SetupTracing(ctx, cfg.OtelEndpoint, log)
	if err != nil {
		log.Warnf("Tracing disabled: %v", err)
	} else if tp != nil {
		s.closers = append(s.closers, func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Debugw("Failed to shut down tracing", "error", err)
			}
		})
	}

	s.Topology, err = topologyv1.Load(cfg.TopologyFile)
	if err != nil {
		s.Close()
		return nil, err
	}

	docker, err := container.NewDockerSession(ctx, s.Topology.Network, log)
	if err != nil {
		s.Close()
		return nil, xerrors.Errorf("failed to connect to the container runtime: %w", err)
	}
	s.Runtime = docker
	s.closers = append(s.closers, func() {
		if err := docker.Close(); err != nil {
			log.Debugw("Failed to close the container runtime session", "error", err)
		}
	})

	procEnv := process.Environment{
		Runtime:      docker,
		Connector:    admin.NewMongoConnector(cfg.AdminTimeout, log),
		Image:        s.Topology.Image,
		ExternalHost: cfg.ExternalHost,
		ProbeTimeout: cfg.ProbeTimeout,
		AttachOnly:   attachOnly,
		Log:          log,
	}
	s.Orchestrator = topology.New(s.Topology, procEnv, cfg.WaitOptions(), log)
	return s, nil
}

// NewBuiltSession returns an attach-only session whose Orchestrator already resolved every server of the topology.
func NewBuiltSession(ctx context.Context) (*Session, error) {
	s, err := NewSession(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := s.Orchestrator.Build(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
