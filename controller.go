package reachctl

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// errNotSettled is the cause recorded when a backend does not reach the
// expected state within its settle window
var errNotSettled = errors.New("state did not settle")

// Controller performs the mutating steps of a transition. Every step is a
// no-op when the backend is already in the requested state, and every stop
// or start is verified by re-probing before it is reported as done.
type Controller struct {
	native    Supervisor
	container *ContainerSupervisor
	probe     *Probe

	// StopSettle bounds the wait for the native unit to report inactive
	StopSettle time.Duration
	// StartSettle bounds the wait for the native unit to report active
	StartSettle time.Duration
	// SettleTick is the interval between re-probes while settling
	SettleTick time.Duration

	logger *slog.Logger
}

// NewController creates a Controller with default settle timings
func NewController(native Supervisor, container *ContainerSupervisor, probe *Probe) *Controller {
	return &Controller{
		native:      native,
		container:   container,
		probe:       probe,
		StopSettle:  DefaultNativeStopSettle,
		StartSettle: DefaultNativeStartSettle,
		SettleTick:  DefaultSettleTick,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger
func (c *Controller) WithLogger(l *slog.Logger) *Controller {
	if l != nil {
		c.logger = l
	}
	return c
}

// StopNative stops the native unit and waits for it to report inactive
func (c *Controller) StopNative(ctx context.Context) error {
	if !c.probe.IsNativeActive(ctx) {
		c.logger.Debug("native service already inactive")
		return nil
	}

	c.logger.Info("stopping native service")
	if err := c.native.Stop(ctx); err != nil {
		return stepError(StepStopNative, BackendNative, ErrSupervisorStopFailed, err)
	}
	if err := c.settle(ctx, c.StopSettle, func(ctx context.Context) bool {
		return !c.probe.IsNativeActive(ctx)
	}); err != nil {
		return stepError(StepStopNative, BackendNative, ErrSupervisorStopFailed, err)
	}
	c.logger.Info("native service stopped")
	return nil
}

// StartNative starts the native unit and waits for it to report active
func (c *Controller) StartNative(ctx context.Context) error {
	if c.probe.IsNativeActive(ctx) {
		c.logger.Debug("native service already active")
		return nil
	}

	c.logger.Info("starting native service")
	if err := c.native.Start(ctx); err != nil {
		return stepError(StepStartNative, BackendNative, ErrSupervisorStartFailed, err)
	}
	if err := c.settle(ctx, c.StartSettle, c.probe.IsNativeActive); err != nil {
		return stepError(StepStartNative, BackendNative, ErrSupervisorStartFailed, err)
	}
	c.logger.Info("native service started")
	return nil
}

// EnsureImage builds the image when it is missing, or always when force is set.
// It reports whether a build ran.
func (c *Controller) EnsureImage(ctx context.Context, force bool) (bool, error) {
	return c.container.EnsureImage(ctx, force)
}

// StartContainer replaces any existing container with a fresh one.
// The service port must already be free.
func (c *Controller) StartContainer(ctx context.Context) error {
	return c.container.Start(ctx)
}

// StopContainer stops and removes the container and verifies it is gone
// from the running set
func (c *Controller) StopContainer(ctx context.Context) error {
	if !c.probe.ContainerExists(ctx) {
		c.logger.Debug("container absent, nothing to stop")
		return nil
	}
	if err := c.container.Stop(ctx); err != nil {
		return err
	}
	if c.probe.IsContainerActive(ctx) {
		return stepError(StepStopContainer, BackendContainer, ErrSupervisorStopFailed, errNotSettled)
	}
	c.logger.Info("container stopped")
	return nil
}

// settle re-probes cond until it holds or the window elapses.
// cond is checked once before any waiting.
func (c *Controller) settle(ctx context.Context, window time.Duration, cond func(context.Context) bool) error {
	if cond(ctx) {
		return nil
	}

	tick := c.SettleTick
	if tick <= 0 {
		tick = DefaultSettleTick
	}
	timer := time.NewTimer(window)
	defer timer.Stop()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if cond(ctx) {
				return nil
			}
			return errNotSettled
		case <-ticker.C:
			if cond(ctx) {
				return nil
			}
		}
	}
}
