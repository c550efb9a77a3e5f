// Package process models a single database node bound to one runtime instance, and the role specific
// behaviour of routers, config servers and shard servers.
package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/admin"
	"github.com/mongodb/mongodb-dc-topology/pkg/container"
	"github.com/mongodb/mongodb-dc-topology/pkg/telemetry"
	"github.com/mongodb/mongodb-dc-topology/pkg/util"
)

// ErrInvalidConfiguration marks errors caused by a topology that can never work as requested, as opposed to
// transient failures.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Role is the function a node serves in the sharded cluster. The value doubles as the role tag in server names.
type Role string

const (
	RoleRouter       Role = "ROUTER"
	RoleConfigServer Role = "CONFIG"
	RoleShardServer  Role = "SHARD"
)

// Environment holds the collaborators shared by every process of a run.
type Environment struct {
	Runtime   container.Runtime
	Connector admin.Connector
	// Image the instances are created from
	Image string
	// ExternalHost is where published ports are reachable from the orchestrator
	ExternalHost string
	// ProbeTimeout bounds the database part of the health probe
	ProbeTimeout time.Duration
	// AttachOnly prevents instances from being created: processes only attach to what already exists
	AttachOnly bool
	Log        *zap.SugaredLogger
}

func (e Environment) probeTimeout() time.Duration {
	if e.ProbeTimeout <= 0 {
		return 2 * time.Second
	}
	return e.ProbeTimeout
}

func (e Environment) externalHost() string {
	if e.ExternalHost == "" {
		return util.DefaultExternalHost
	}
	return e.ExternalHost
}

// Server is the role independent surface of a node.
type Server interface {
	Name() string
	Role() Role
	ExternalPort() int
	Address() admin.Address
	Ensure(ctx context.Context) error
	Startup(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Destroy(ctx context.Context) error
	RuntimeStatus(ctx context.Context) (container.Status, error)
	Healthy(ctx context.Context) bool
	Connect(ctx context.Context, direct bool) (admin.Client, error)
}

// Process is a database node. Its name is stable across runs and is what makes Ensure attach to an instance
// created by an earlier run instead of creating a second one.
type Process struct {
	name          string
	role          Role
	externalPort  int
	hasDataVolume bool
	args          []string
	env           Environment
	log           *zap.SugaredLogger

	mu       sync.Mutex
	instance *container.Instance
}

var _ Server = &Process{}

func newProcess(env Environment, name string, role Role, externalPort int, hasDataVolume bool, args []string) *Process {
	log := env.Log
	if log == nil {
		log = zap.S()
	}
	return &Process{
		name:          name,
		role:          role,
		externalPort:  externalPort,
		hasDataVolume: hasDataVolume,
		args:          args,
		env:           env,
		log:           log.With("server", name),
	}
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) Role() Role {
	return p.role
}

func (p *Process) ExternalPort() int {
	return p.externalPort
}

func (p *Process) InternalPort() int {
	return util.MongoDbDefaultPort
}

// InternalHost is how other nodes on the shared network reach this one.
func (p *Process) InternalHost() string {
	return fmt.Sprintf("%s:%d", p.name, p.InternalPort())
}

// Address is how the orchestrator reaches this node.
func (p *Process) Address() admin.Address {
	return admin.Address{Host: p.env.externalHost(), Port: p.externalPort}
}

func (p *Process) HasDataVolume() bool {
	return p.hasDataVolume
}

// DataVolumeName is the persistent volume owned by the node, empty if it has none.
func (p *Process) DataVolumeName() string {
	if !p.hasDataVolume {
		return ""
	}
	return p.name
}

// Args returns the startup command of the node.
func (p *Process) Args() []string {
	return append([]string(nil), p.args...)
}

// Spec is the runtime instance definition used when the node has to be created.
func (p *Process) Spec() container.Spec {
	mounts := []container.Mount{
		{Source: "/etc/localtime", Target: "/etc/localtime", ReadOnly: true},
	}
	if p.hasDataVolume {
		mounts = append(mounts, container.Mount{Source: p.DataVolumeName(), Target: util.DataVolumePath})
	}
	return container.Spec{
		Name:    p.name,
		Image:   p.env.Image,
		Command: p.Args(),
		Network: p.env.Runtime.Network(),
		Env:     map[string]string{"TERM": "xterm"},
		Ports:   []container.PortMapping{{Internal: p.InternalPort(), External: p.externalPort}},
		Mounts:  mounts,
	}
}

// Ensure attaches to the instance named after the node, creating it if there is none, and starts it. Calling it on
// a running node only re-issues the start.
func (p *Process) Ensure(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.instance == nil {
		inst, err := p.env.Runtime.Lookup(ctx, p.name)
		switch {
		case err == nil:
			p.log.Debug("Attached to existing instance")
		case container.IsNotFound(err):
			if p.env.AttachOnly {
				return xerrors.Errorf("server %s does not exist: %w", p.name, err)
			}
			inst, err = p.env.Runtime.Create(ctx, p.Spec())
			if err != nil {
				return xerrors.Errorf("failed to create server %s: %w", p.name, err)
			}
			p.log.Infow("Created instance", "port", p.externalPort, "args", p.args)
		default:
			return xerrors.Errorf("failed to look up server %s: %w", p.name, err)
		}
		p.instance = &inst
	}

	if err := p.env.Runtime.Start(ctx, p.instance.ID); err != nil {
		return xerrors.Errorf("failed to start server %s: %w", p.name, err)
	}
	return nil
}

// handle returns the instance, looking it up by name if this process has not seen it yet.
func (p *Process) handle(ctx context.Context) (container.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.instance != nil {
		return *p.instance, nil
	}
	inst, err := p.env.Runtime.Lookup(ctx, p.name)
	if err != nil {
		return container.Instance{}, err
	}
	p.instance = &inst
	return inst, nil
}

// Startup starts a stopped node. Data volumes survive stop/start.
func (p *Process) Startup(ctx context.Context) error {
	inst, err := p.handle(ctx)
	if err != nil {
		return xerrors.Errorf("failed to start server %s: %w", p.name, err)
	}
	if err := p.env.Runtime.Start(ctx, inst.ID); err != nil {
		return xerrors.Errorf("failed to start server %s: %w", p.name, err)
	}
	p.log.Info("Server started")
	return nil
}

// Shutdown stops the node without destroying it.
func (p *Process) Shutdown(ctx context.Context) error {
	inst, err := p.handle(ctx)
	if err != nil {
		return xerrors.Errorf("failed to stop server %s: %w", p.name, err)
	}
	if err := p.env.Runtime.Stop(ctx, inst.ID); err != nil {
		return xerrors.Errorf("failed to stop server %s: %w", p.name, err)
	}
	p.log.Info("Server stopped")
	return nil
}

// Destroy force-removes the instance and its data volume. It cannot be undone.
func (p *Process) Destroy(ctx context.Context) error {
	inst, err := p.handle(ctx)
	switch {
	case err == nil:
		if err := p.env.Runtime.Remove(ctx, inst.ID, true); err != nil && !container.IsNotFound(err) {
			return xerrors.Errorf("failed to destroy server %s: %w", p.name, err)
		}
	case container.IsNotFound(err):
		p.log.Debug("Instance already gone")
	default:
		return xerrors.Errorf("failed to destroy server %s: %w", p.name, err)
	}

	p.mu.Lock()
	p.instance = nil
	p.mu.Unlock()

	if p.hasDataVolume {
		if err := p.env.Runtime.RemoveVolume(ctx, p.DataVolumeName()); err != nil && !container.IsNotFound(err) {
			return xerrors.Errorf("failed to remove data volume of server %s: %w", p.name, err)
		}
	}
	p.log.Info("Server destroyed")
	return nil
}

// RuntimeStatus is the status of the instance as the runtime sees it.
func (p *Process) RuntimeStatus(ctx context.Context) (container.Status, error) {
	inst, err := p.handle(ctx)
	if err != nil {
		return container.StatusUnknown, err
	}
	return p.env.Runtime.Inspect(ctx, inst.ID)
}

// Healthy probes the instance first and, only if the runtime reports it running or created, pings the database
// over a short-lived direct connection. Any failure is reported as false.
func (p *Process) Healthy(ctx context.Context) bool {
	healthy := p.probe(ctx)
	telemetry.HealthProbes.WithLabelValues(string(p.role), telemetry.BoolResult(healthy)).Inc()
	return healthy
}

func (p *Process) probe(ctx context.Context) bool {
	status, err := p.RuntimeStatus(ctx)
	if err != nil {
		p.log.Debugw("Runtime status unavailable", "error", err)
		return false
	}
	if !status.Live() {
		p.log.Debugw("Instance is not live", "status", status)
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.env.probeTimeout())
	defer cancel()

	client, err := p.Connect(probeCtx, true)
	if err != nil {
		p.log.Debugw("Failed to connect", "error", err)
		return false
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), p.env.probeTimeout())
		defer closeCancel()
		_ = client.Close(closeCtx)
	}()

	if err := client.Ping(probeCtx); err != nil {
		p.log.Debugw("Ping failed", "error", err)
		return false
	}
	return true
}

// Connect opens a client connection to this node. With direct=true topology discovery is bypassed and every
// command reaches exactly this node.
func (p *Process) Connect(ctx context.Context, direct bool) (admin.Client, error) {
	return p.env.Connector.Connect(ctx, p.Address(), direct)
}

func (p *Process) String() string {
	return fmt.Sprintf("%s (%s, port %d)", p.name, p.role, p.externalPort)
}
