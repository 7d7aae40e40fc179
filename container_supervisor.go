package reachctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// ContainerSupervisor runs the service as a single reserved container.
// Start is create-or-reuse: it replaces any stale container and builds the
// image only when it is missing.
type ContainerSupervisor struct {
	// Runtime is the container runtime the container lives in
	Runtime ContainerRuntime

	// Spec describes the container to create
	Spec ContainerSpec

	// Build describes how to build Spec.Image when it is missing
	Build BuildSpec

	// StopTimeout is the grace period given to the container on stop
	StopTimeout time.Duration

	// BuildOutput receives image build progress; nil discards it
	BuildOutput io.Writer

	logger *slog.Logger
}

// NewContainerSupervisor creates a ContainerSupervisor
func NewContainerSupervisor(rt ContainerRuntime, spec ContainerSpec, build BuildSpec) *ContainerSupervisor {
	return &ContainerSupervisor{
		Runtime:     rt,
		Spec:        spec,
		Build:       build,
		StopTimeout: DefaultContainerStopTimeout,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger
func (c *ContainerSupervisor) WithLogger(l *slog.Logger) *ContainerSupervisor {
	if l != nil {
		c.logger = l
	}
	return c
}

// Backend implements Supervisor
func (c *ContainerSupervisor) Backend() Backend {
	return BackendContainer
}

// Status inspects the reserved container. Runtime failures read as absent.
func (c *ContainerSupervisor) Status(ctx context.Context) ContainerStatus {
	status, err := c.Runtime.Inspect(ctx, c.Spec.Name)
	if err != nil {
		c.logger.Debug("container inspect failed, assuming absent", "container", c.Spec.Name, "error", err)
		return ContainerStatus{}
	}
	return status
}

// IsActive implements Supervisor
func (c *ContainerSupervisor) IsActive(ctx context.Context) bool {
	return c.Status(ctx).Running
}

// Exists implements Supervisor
func (c *ContainerSupervisor) Exists(ctx context.Context) bool {
	return c.Status(ctx).Exists
}

// ImageExists reports whether the service image is present locally
func (c *ContainerSupervisor) ImageExists(ctx context.Context) bool {
	ok, err := c.Runtime.ImageExists(ctx, c.Spec.Image)
	if err != nil {
		c.logger.Debug("image inspect failed, assuming absent", "image", c.Spec.Image, "error", err)
		return false
	}
	return ok
}

// EnsureImage builds the image if it is missing, or unconditionally when force is set.
// It reports whether a build ran.
func (c *ContainerSupervisor) EnsureImage(ctx context.Context, force bool) (bool, error) {
	if !force && c.ImageExists(ctx) {
		return false, nil
	}

	spec := c.Build
	spec.Tag = c.Spec.Image
	c.logger.Info("building image", "image", spec.Tag, "context", spec.ContextDir, "dockerfile", spec.Dockerfile, "forced", force)

	if err := c.Runtime.BuildImage(ctx, spec, c.BuildOutput); err != nil {
		return true, stepError(StepEnsureImage, BackendContainer, ErrImageBuildFailed, err)
	}
	c.logger.Info("image built", "image", spec.Tag)
	return true, nil
}

// Start implements Supervisor. It force-removes any existing container,
// ensures the image and the data directory, then creates and starts a new
// container.
func (c *ContainerSupervisor) Start(ctx context.Context) error {
	if err := c.Runtime.RemoveContainer(ctx, c.Spec.Name); err != nil {
		return stepError(StepStartContainer, BackendContainer, ErrContainerStartFailed, err)
	}

	if _, err := c.EnsureImage(ctx, false); err != nil {
		return err
	}

	if c.Spec.DataDir != "" {
		if err := os.MkdirAll(c.Spec.DataDir, DirMode); err != nil {
			return stepError(StepStartContainer, BackendContainer, ErrContainerStartFailed,
				fmt.Errorf("create data dir: %w", err))
		}
	}

	c.logger.Info("starting container", "container", c.Spec.Name, "image", c.Spec.Image, "port", c.Spec.HostPort)
	if err := c.Runtime.Run(ctx, c.Spec); err != nil {
		return stepError(StepStartContainer, BackendContainer, ErrContainerStartFailed, err)
	}
	return nil
}

// Stop implements Supervisor. It stops a running container and removes it
// in any state; an absent container is a success.
func (c *ContainerSupervisor) Stop(ctx context.Context) error {
	status := c.Status(ctx)
	if status.Running {
		c.logger.Info("stopping container", "container", c.Spec.Name)
		if err := c.Runtime.StopContainer(ctx, c.Spec.Name, c.StopTimeout); err != nil {
			return stepError(StepStopContainer, BackendContainer, ErrSupervisorStopFailed, err)
		}
	}
	if status.Exists {
		c.logger.Info("removing container", "container", c.Spec.Name)
		if err := c.Runtime.RemoveContainer(ctx, c.Spec.Name); err != nil {
			return stepError(StepStopContainer, BackendContainer, ErrSupervisorStopFailed, err)
		}
	}
	return nil
}

// Logs streams the container's output
func (c *ContainerSupervisor) Logs(ctx context.Context, opts LogOptions, stdout, stderr io.Writer) error {
	return c.Runtime.Logs(ctx, c.Spec.Name, opts, stdout, stderr)
}

// Ensure ContainerSupervisor implements Supervisor
var _ Supervisor = (*ContainerSupervisor)(nil)
