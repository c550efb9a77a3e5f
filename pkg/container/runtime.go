// Package container is the boundary to the runtime that hosts every database node. Implementations provide
// create/start/stop/remove/inspect primitives for isolated server instances plus the shared network they join.
package container

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Runtime.Lookup when no instance with the requested name exists. Callers use it to
// tell "create me" apart from every other failure.
var ErrNotFound = errors.New("container not found")

// Status is the runtime-level state of an instance as reported by inspect.
type Status string

const (
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusRestarting Status = "restarting"
	StatusRemoving   Status = "removing"
	StatusExited     Status = "exited"
	StatusDead       Status = "dead"
	StatusUnknown    Status = "unknown"
)

// Live reports whether the runtime considers the instance able to host a database process. Only "running" and
// "created" qualify; everything else short-circuits the database probe.
func (s Status) Live() bool {
	return s == StatusRunning || s == StatusCreated
}

// PortMapping publishes an internal port on an externally reachable one.
type PortMapping struct {
	Internal int
	External int
}

func (p PortMapping) String() string {
	return fmt.Sprintf("%d->%d", p.External, p.Internal)
}

// Mount is either a host bind mount (Source is an absolute path) or a named volume.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Bind renders the mount in "source:target[:ro]" form.
func (m Mount) Bind() string {
	if m.ReadOnly {
		return fmt.Sprintf("%s:%s:ro", m.Source, m.Target)
	}
	return fmt.Sprintf("%s:%s", m.Source, m.Target)
}

// Spec describes an instance to create.
type Spec struct {
	Name    string
	Image   string
	Command []string
	Network string
	Env     map[string]string
	Ports   []PortMapping
	Mounts  []Mount
}

// Instance is the handle of a created instance.
type Instance struct {
	ID   string
	Name string
}

// Runtime is everything the orchestrator needs from the container runtime.
type Runtime interface {
	// Lookup finds an instance by name, returning ErrNotFound (possibly wrapped) if there is none.
	Lookup(ctx context.Context, name string) (Instance, error)
	Create(ctx context.Context, spec Spec) (Instance, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Remove(ctx context.Context, id string, force bool) error
	Inspect(ctx context.Context, id string) (Status, error)
	RemoveVolume(ctx context.Context, name string) error
	// Network is the name of the shared network every instance joins.
	Network() string
}

// IsNotFound returns true if the error signals a missing instance.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
