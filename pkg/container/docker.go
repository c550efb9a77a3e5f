package container

import (
	"context"
	"sort"
	"strconv"

	cerrdefs "github.com/containerd/errdefs"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// DockerSession is a Runtime backed by the local Docker engine. It is constructed explicitly, owns its API client
// and must be closed by the caller.
type DockerSession struct {
	cli     *client.Client
	network string
	log     *zap.SugaredLogger
}

var _ Runtime = &DockerSession{}

// NewDockerSession connects to the engine configured through the standard DOCKER_* environment variables and
// makes sure the shared network exists, attaching to it if another run already created it.
func NewDockerSession(ctx context.Context, networkName string, log *zap.SugaredLogger) (*DockerSession, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, xerrors.Errorf("failed to create docker client: %w", err)
	}
	s := &DockerSession{cli: cli, network: networkName, log: log}
	if err := s.ensureNetwork(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return s, nil
}

func (s *DockerSession) ensureNetwork(ctx context.Context) error {
	if _, err := s.cli.NetworkInspect(ctx, s.network, network.InspectOptions{}); err == nil {
		s.log.Debugw("Attached to existing network", "network", s.network)
		return nil
	} else if !cerrdefs.IsNotFound(err) {
		return xerrors.Errorf("failed to inspect network %s: %w", s.network, err)
	}

	_, err := s.cli.NetworkCreate(ctx, s.network, network.CreateOptions{})
	if err != nil {
		// another run may have won the race
		if cerrdefs.IsConflict(err) {
			s.log.Debugw("Network created concurrently, attaching", "network", s.network)
			return nil
		}
		return xerrors.Errorf("failed to create network %s: %w", s.network, err)
	}
	s.log.Infow("Created network", "network", s.network)
	return nil
}

func (s *DockerSession) Network() string {
	return s.network
}

func (s *DockerSession) Lookup(ctx context.Context, name string) (Instance, error) {
	resp, err := s.cli.ContainerInspect(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return Instance{}, xerrors.Errorf("%s: %w", name, ErrNotFound)
		}
		return Instance{}, xerrors.Errorf("failed to inspect container %s: %w", name, err)
	}
	return Instance{ID: resp.ID, Name: name}, nil
}

func (s *DockerSession) Create(ctx context.Context, spec Spec) (Instance, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range spec.Ports {
		port := nat.Port(strconv.Itoa(p.Internal) + "/tcp")
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{HostPort: strconv.Itoa(p.External)})
	}

	binds := make([]string, len(spec.Mounts))
	for i, m := range spec.Mounts {
		binds[i] = m.Bind()
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	cfg := &dockercontainer.Config{
		Image:        spec.Image,
		Cmd:          spec.Command,
		Env:          env,
		ExposedPorts: exposed,
	}
	hostCfg := &dockercontainer.HostConfig{
		Binds:        binds,
		PortBindings: bindings,
		NetworkMode:  dockercontainer.NetworkMode(spec.Network),
	}
	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			spec.Network: {},
		},
	}

	resp, err := s.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, spec.Name)
	if err != nil {
		return Instance{}, xerrors.Errorf("failed to create container %s: %w", spec.Name, err)
	}
	for _, w := range resp.Warnings {
		s.log.Warnw("Container created with warnings", "container", spec.Name, "warning", w)
	}
	return Instance{ID: resp.ID, Name: spec.Name}, nil
}

func (s *DockerSession) Start(ctx context.Context, id string) error {
	if err := s.cli.ContainerStart(ctx, id, dockercontainer.StartOptions{}); err != nil {
		return xerrors.Errorf("failed to start container %s: %w", id, err)
	}
	return nil
}

func (s *DockerSession) Stop(ctx context.Context, id string) error {
	if err := s.cli.ContainerStop(ctx, id, dockercontainer.StopOptions{}); err != nil {
		return xerrors.Errorf("failed to stop container %s: %w", id, err)
	}
	return nil
}

func (s *DockerSession) Remove(ctx context.Context, id string, force bool) error {
	if err := s.cli.ContainerRemove(ctx, id, dockercontainer.RemoveOptions{Force: force}); err != nil {
		if cerrdefs.IsNotFound(err) {
			return xerrors.Errorf("%s: %w", id, ErrNotFound)
		}
		return xerrors.Errorf("failed to remove container %s: %w", id, err)
	}
	return nil
}

func (s *DockerSession) Inspect(ctx context.Context, id string) (Status, error) {
	resp, err := s.cli.ContainerInspect(ctx, id)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return StatusUnknown, xerrors.Errorf("%s: %w", id, ErrNotFound)
		}
		return StatusUnknown, xerrors.Errorf("failed to inspect container %s: %w", id, err)
	}
	if resp.ContainerJSONBase == nil || resp.State == nil {
		return StatusUnknown, nil
	}
	return Status(resp.State.Status), nil
}

func (s *DockerSession) RemoveVolume(ctx context.Context, name string) error {
	if err := s.cli.VolumeRemove(ctx, name, false); err != nil {
		if cerrdefs.IsNotFound(err) {
			return xerrors.Errorf("volume %s: %w", name, ErrNotFound)
		}
		return xerrors.Errorf("failed to remove volume %s: %w", name, err)
	}
	return nil
}

// Close releases the API client. The network is left in place so that later runs can attach to it.
func (s *DockerSession) Close() error {
	return s.cli.Close()
}
