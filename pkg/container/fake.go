package container

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/xerrors"
)

// FakeRuntime is an in-memory Runtime used by tests. It records every call so that tests can assert on the
// interactions, and lets tests force instance states to simulate crashes.
type FakeRuntime struct {
	mu        sync.Mutex
	network   string
	nextID    int
	instances map[string]*FakeInstance
	volumes   map[string]bool
	history   []string
	// CreateErr, when set, is returned by the next Create calls
	CreateErr error
}

// FakeInstance is the recorded state of an instance managed by FakeRuntime.
type FakeInstance struct {
	Instance
	Spec   Spec
	Status Status
	Starts int
	Stops  int
}

var _ Runtime = &FakeRuntime{}

func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{
		network:   "fake-network",
		instances: map[string]*FakeInstance{},
		volumes:   map[string]bool{},
	}
}

func (f *FakeRuntime) Network() string {
	return f.network
}

func (f *FakeRuntime) Lookup(_ context.Context, name string) (Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, "lookup "+name)
	if i, ok := f.instances[name]; ok {
		return i.Instance, nil
	}
	return Instance{}, xerrors.Errorf("%s: %w", name, ErrNotFound)
}

func (f *FakeRuntime) Create(_ context.Context, spec Spec) (Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, "create "+spec.Name)
	if f.CreateErr != nil {
		return Instance{}, f.CreateErr
	}
	if _, ok := f.instances[spec.Name]; ok {
		return Instance{}, xerrors.Errorf("container name %s already in use", spec.Name)
	}
	f.nextID++
	i := &FakeInstance{
		Instance: Instance{ID: "id-" + strconv.Itoa(f.nextID), Name: spec.Name},
		Spec:     spec,
		Status:   StatusCreated,
	}
	f.instances[spec.Name] = i
	for _, m := range spec.Mounts {
		if m.Source != "" && m.Source[0] != '/' {
			f.volumes[m.Source] = true
		}
	}
	return i.Instance, nil
}

func (f *FakeRuntime) byID(id string) (*FakeInstance, error) {
	for _, i := range f.instances {
		if i.ID == id || i.Name == id {
			return i, nil
		}
	}
	return nil, xerrors.Errorf("%s: %w", id, ErrNotFound)
}

func (f *FakeRuntime) Start(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.byID(id)
	if err != nil {
		return err
	}
	f.history = append(f.history, "start "+i.Name)
	i.Status = StatusRunning
	i.Starts++
	return nil
}

func (f *FakeRuntime) Stop(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.byID(id)
	if err != nil {
		return err
	}
	f.history = append(f.history, "stop "+i.Name)
	i.Status = StatusExited
	i.Stops++
	return nil
}

func (f *FakeRuntime) Remove(_ context.Context, id string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.byID(id)
	if err != nil {
		return err
	}
	if i.Status == StatusRunning && !force {
		return xerrors.Errorf("container %s is running", i.Name)
	}
	f.history = append(f.history, "remove "+i.Name)
	delete(f.instances, i.Name)
	return nil
}

func (f *FakeRuntime) Inspect(_ context.Context, id string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.byID(id)
	if err != nil {
		return StatusUnknown, err
	}
	return i.Status, nil
}

func (f *FakeRuntime) RemoveVolume(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.volumes[name] {
		return xerrors.Errorf("volume %s: %w", name, ErrNotFound)
	}
	f.history = append(f.history, "remove-volume "+name)
	delete(f.volumes, name)
	return nil
}

// SetStatus forces the runtime state of the named instance.
func (f *FakeRuntime) SetStatus(name string, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.instances[name]; ok {
		i.Status = status
	}
}

// Get returns a copy of the recorded instance.
func (f *FakeRuntime) Get(name string) (FakeInstance, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.instances[name]
	if !ok {
		return FakeInstance{}, false
	}
	return *i, true
}

// Count returns the number of instances currently known.
func (f *FakeRuntime) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

// HasVolume reports whether the named volume exists.
func (f *FakeRuntime) HasVolume(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volumes[name]
}

// History returns the ordered list of mutating calls.
func (f *FakeRuntime) History() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}
