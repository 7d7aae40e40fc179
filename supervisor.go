package reachctl

import (
	"context"
	"io"
	"time"
)

// Supervisor is the capability every backend exposes.
// Query methods never fail: an unreachable supervisor reads as inactive or absent.
type Supervisor interface {
	// Backend reports which backend this supervisor drives
	Backend() Backend
	// IsActive reports whether the service is currently running under this backend
	IsActive(ctx context.Context) bool
	// Exists reports whether the backing artifact (unit, container) exists
	Exists(ctx context.Context) bool
	// Start brings the service up under this backend
	Start(ctx context.Context) error
	// Stop takes the service down under this backend
	Stop(ctx context.Context) error
}

// ContainerStatus is a point-in-time view of the reserved container
type ContainerStatus struct {
	// Exists is true if the container exists in any state
	Exists bool
	// Running is true if the container is in the running set
	Running bool
	// State is the runtime's raw state string (running, exited, created, ...)
	State string
	// Health is the runtime health status (starting, healthy, unhealthy) or empty
	// when the container declares no health check
	Health string
}

// Container health status strings as reported by the runtime
const (
	ContainerHealthStarting  = "starting"
	ContainerHealthHealthy   = "healthy"
	ContainerHealthUnhealthy = "unhealthy"
)

// BuildSpec describes how the service image is built
type BuildSpec struct {
	// Tag is the repository:tag of the image
	Tag string
	// ContextDir is the build context directory
	ContextDir string
	// Dockerfile is the Dockerfile path relative to ContextDir
	Dockerfile string
	// NoCache forces a rebuild of every layer
	NoCache bool
}

// ContainerSpec is everything needed to create the service container
type ContainerSpec struct {
	// Name is the reserved container name
	Name string
	// Image is the repository:tag to run
	Image string
	// HostPort is the published port on the host
	HostPort int
	// ContainerPort is the port the service listens on inside the container
	ContainerPort int
	// DataDir is the host directory mounted for durable data
	DataDir string
	// DataMount is the mount target inside the container
	DataMount string
	// Env is the list of KEY=VALUE pairs forwarded to the container
	Env []string
	// HealthCheck is the command the runtime uses for its own health status; nil disables it
	HealthCheck *HealthCheckSpec
}

// HealthCheckSpec mirrors a container health-check declaration
type HealthCheckSpec struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	StartPeriod time.Duration
	Retries     int
}

// LogOptions controls container log streaming
type LogOptions struct {
	Follow     bool
	Tail       string
	Timestamps bool
}

// ContainerRuntime is the narrow set of container-runtime operations used here.
// DockerRuntime implements it against the Docker Engine API.
type ContainerRuntime interface {
	// Inspect returns the status of the named container; a missing container
	// is reported as Exists=false with a nil error
	Inspect(ctx context.Context, name string) (ContainerStatus, error)
	// ImageExists reports whether ref exists locally
	ImageExists(ctx context.Context, ref string) (bool, error)
	// BuildImage builds spec.Tag, writing progress lines to out
	BuildImage(ctx context.Context, spec BuildSpec, out io.Writer) error
	// Run creates and starts a container
	Run(ctx context.Context, spec ContainerSpec) error
	// StopContainer stops a running container, waiting up to timeout
	StopContainer(ctx context.Context, name string, timeout time.Duration) error
	// RemoveContainer force-removes a container; not-found is not an error
	RemoveContainer(ctx context.Context, name string) error
	// Logs streams container output to stdout and stderr
	Logs(ctx context.Context, name string, opts LogOptions, stdout, stderr io.Writer) error
}
