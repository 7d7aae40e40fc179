package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/axondata/reachctl"
)

type fakeNative struct {
	mu     sync.Mutex
	active bool
}

func (f *fakeNative) Backend() reachctl.Backend { return reachctl.BackendNative }

func (f *fakeNative) IsActive(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeNative) Exists(context.Context) bool { return true }

func (f *fakeNative) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = true
	return nil
}

func (f *fakeNative) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	return nil
}

type fakeRuntime struct {
	mu        sync.Mutex
	container *reachctl.ContainerStatus
	images    map[string]bool
	logs      string
	builds    int
	closed    bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{images: map[string]bool{}}
}

func (f *fakeRuntime) Inspect(context.Context, string) (reachctl.ContainerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.container == nil {
		return reachctl.ContainerStatus{}, nil
	}
	return *f.container, nil
}

func (f *fakeRuntime) ImageExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref], nil
}

func (f *fakeRuntime) BuildImage(_ context.Context, spec reachctl.BuildSpec, out io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	f.images[spec.Tag] = true
	if out != nil {
		fmt.Fprintf(out, "Successfully tagged %s\n", spec.Tag)
	}
	return nil
}

func (f *fakeRuntime) Run(_ context.Context, spec reachctl.ContainerSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.images[spec.Image] {
		return fmt.Errorf("no such image: %s", spec.Image)
	}
	f.container = &reachctl.ContainerStatus{Exists: true, Running: true, State: "running"}
	return nil
}

func (f *fakeRuntime) StopContainer(context.Context, string, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.container != nil {
		f.container.Running = false
	}
	return nil
}

func (f *fakeRuntime) RemoveContainer(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.container = nil
	return nil
}

func (f *fakeRuntime) Logs(_ context.Context, _ string, _ reachctl.LogOptions, stdout, _ io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.container == nil {
		return reachctl.ErrTargetNotFound
	}
	_, err := io.WriteString(stdout, f.logs)
	return err
}
