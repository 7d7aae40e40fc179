package reachctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeNative is an in-memory native supervisor
type fakeNative struct {
	mu       sync.Mutex
	active   bool
	exists   bool
	stuck    bool // Start and Stop succeed but change nothing
	startErr error
	stopErr  error
	starts   int
	stops    int
}

func (f *fakeNative) Backend() Backend { return BackendNative }

func (f *fakeNative) IsActive(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeNative) Exists(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists
}

func (f *fakeNative) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	if !f.stuck {
		f.active = true
	}
	return nil
}

func (f *fakeNative) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.stopErr != nil {
		return f.stopErr
	}
	if !f.stuck {
		f.active = false
	}
	return nil
}

func (f *fakeNative) Describe(context.Context) string {
	if f.IsActive(context.Background()) {
		return "active/running (pid 42)"
	}
	return "inactive/dead"
}

// fakeRuntime is an in-memory container runtime holding at most one container
type fakeRuntime struct {
	mu         sync.Mutex
	container  *ContainerStatus
	images     map[string]bool
	health     string // health reported by containers created by Run
	logs       string
	buildErr   error
	runErr     error
	inspectErr error
	builds     int
	runs       []ContainerSpec
	removes    int
	stopsCalls int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{images: map[string]bool{}}
}

func (f *fakeRuntime) Inspect(_ context.Context, _ string) (ContainerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inspectErr != nil {
		return ContainerStatus{}, f.inspectErr
	}
	if f.container == nil {
		return ContainerStatus{}, nil
	}
	return *f.container, nil
}

func (f *fakeRuntime) ImageExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref], nil
}

func (f *fakeRuntime) BuildImage(_ context.Context, spec BuildSpec, out io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	if f.buildErr != nil {
		return f.buildErr
	}
	if out != nil {
		fmt.Fprintf(out, "Successfully tagged %s\n", spec.Tag)
	}
	f.images[spec.Tag] = true
	return nil
}

func (f *fakeRuntime) Run(_ context.Context, spec ContainerSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.images[spec.Image] {
		return fmt.Errorf("no such image: %s", spec.Image)
	}
	f.runs = append(f.runs, spec)
	if f.runErr != nil {
		// Created but never started, the way a failed start leaves it
		f.container = &ContainerStatus{Exists: true, State: "created"}
		return f.runErr
	}
	f.container = &ContainerStatus{Exists: true, Running: true, State: "running", Health: f.health}
	return nil
}

func (f *fakeRuntime) StopContainer(_ context.Context, _ string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopsCalls++
	if f.container != nil {
		f.container.Running = false
		f.container.State = "exited"
	}
	return nil
}

func (f *fakeRuntime) RemoveContainer(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.container != nil {
		f.removes++
	}
	f.container = nil
	return nil
}

func (f *fakeRuntime) Logs(_ context.Context, _ string, _ LogOptions, stdout, _ io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.container == nil {
		return ErrTargetNotFound
	}
	_, err := io.WriteString(stdout, f.logs)
	return err
}

func (f *fakeRuntime) setRunning(health string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.container = &ContainerStatus{Exists: true, Running: true, State: "running", Health: health}
}

func (f *fakeRuntime) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func (f *fakeRuntime) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

var errBoom = errors.New("boom")

// healthServer serves the health path with the given status code
func healthServer(t *testing.T, status int) (*httptest.Server, ServiceEndpoint) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultHealthPath {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, endpointOf(t, srv.URL)
}

func endpointOf(t *testing.T, raw string) ServiceEndpoint {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	return ServiceEndpoint{Host: host, Port: p, HealthPath: DefaultHealthPath}
}

// closedEndpoint returns an endpoint nothing listens on
func closedEndpoint(t *testing.T) ServiceEndpoint {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().(*net.TCPAddr)
	_ = l.Close()
	return ServiceEndpoint{Host: "127.0.0.1", Port: addr.Port, HealthPath: DefaultHealthPath}
}

func testContainerSpec(t *testing.T) ContainerSpec {
	t.Helper()
	return ContainerSpec{
		Name:          DefaultContainerName,
		Image:         DefaultImage,
		HostPort:      DefaultPort,
		ContainerPort: DefaultPort,
		DataDir:       t.TempDir() + "/data",
		DataMount:     DefaultDataMount,
		Env:           []string{"API_KEY=", "PORT=8765"},
	}
}
