package reachctl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Orchestrator moves ownership of the service between the native and the
// container backend. It keeps no state between invocations: every command
// starts by deriving the current owner from live probes.
//
// Transitions are fail-stop. A failed step aborts the command and leaves the
// host as it is; nothing is rolled back.
type Orchestrator struct {
	native     Supervisor
	container  *ContainerSupervisor
	probe      *Probe
	controller *Controller
	poller     *HealthPoller
	reporter   *StatusReporter
	endpoint   ServiceEndpoint

	postStart PollPlan
	readiness PollPlan
	logTail   string
	diag      io.Writer
	metrics   *Metrics
	logger    *slog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger used by the orchestrator and its components
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records transition outcomes into m
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithPollPlans overrides the post-start and readiness health budgets
func WithPollPlans(postStart, readiness PollPlan) Option {
	return func(o *Orchestrator) {
		o.postStart = postStart
		o.readiness = readiness
	}
}

// WithSettle overrides the native stop/start settle windows
func WithSettle(stop, start, tick time.Duration) Option {
	return func(o *Orchestrator) {
		o.controller.StopSettle = stop
		o.controller.StartSettle = start
		o.controller.SettleTick = tick
	}
}

// WithHealthPoller replaces the default health poller
func WithHealthPoller(p *HealthPoller) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.poller = p
		}
	}
}

// WithDiagnostics sets where container logs are written after a failed start
func WithDiagnostics(w io.Writer, tail string) Option {
	return func(o *Orchestrator) {
		o.diag = w
		if tail != "" {
			o.logTail = tail
		}
	}
}

// NewOrchestrator wires the probe, controller, poller and reporter around the two backends
func NewOrchestrator(native Supervisor, container *ContainerSupervisor, ep ServiceEndpoint, opts ...Option) *Orchestrator {
	probe := NewProbe(native, container)
	o := &Orchestrator{
		native:     native,
		container:  container,
		probe:      probe,
		controller: NewController(native, container, probe),
		poller:     NewHealthPoller(nil),
		endpoint:   ep,
		postStart:  PostStartPlan,
		readiness:  ReadinessPlan,
		logTail:    DefaultLogTail,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.controller.WithLogger(o.logger)
	o.container.WithLogger(o.logger)
	o.poller.WithLogger(o.logger)
	if o.metrics != nil {
		o.poller.OnAttempt(o.metrics.observeHealthAttempt)
	}
	o.reporter = NewStatusReporter(native, container, o.poller, ep)
	return o
}

// TransitionResult summarizes a start or stop command
type TransitionResult struct {
	// From is the owner observed before the command ran
	From OwnerState
	// To is the owner the command handed the service to
	To OwnerState
	// Skipped is true when the requested owner was already in place and healthy
	Skipped bool
	// ImageBuilt is true when the image had to be built
	ImageBuilt bool
	// Health is the last health poll, zero for stop
	Health PollResult
	// Duration is the wall time of the command
	Duration time.Duration
}

// State derives the current owner from live probes
func (o *Orchestrator) State(ctx context.Context) OwnerState {
	return DeriveState(o.probe.Observe(ctx))
}

// Start hands the service to the container backend. If the container
// already owns it and answers healthy, nothing is changed.
func (o *Orchestrator) Start(ctx context.Context) (res TransitionResult, err error) {
	began := time.Now()
	defer func() {
		res.Duration = time.Since(began)
		o.metrics.observeTransition("start", res, err)
	}()

	res.From = o.State(ctx)
	res.To = ContainerOwns
	o.logger.Info("start requested", "owner", res.From, "target", SwitchingToContainer)

	switch res.From {
	case ContainerOwns:
		res.Health = o.poller.Poll(ctx, o.endpoint, o.postStart)
		if res.Health.Verdict == HealthHealthy {
			o.logger.Info("container already owns the service and is healthy")
			res.Skipped = true
			return res, nil
		}
		o.logger.Warn("container owns the service but is not healthy, recreating", "verdict", res.Health.Verdict)
	case Conflicting:
		o.logger.Warn("both backends report active, resolving toward container", "error", ErrConflictingOwners)
	}

	if err = o.controller.StopNative(ctx); err != nil {
		return res, err
	}
	res.ImageBuilt, err = o.controller.EnsureImage(ctx, false)
	if res.ImageBuilt {
		o.metrics.observeBuild(err)
	}
	if err != nil {
		return res, err
	}
	if err = o.controller.StartContainer(ctx); err != nil {
		o.surfaceLogs(ctx)
		return res, err
	}

	res.Health = o.awaitHealth(ctx)
	switch res.Health.Verdict {
	case HealthHealthy:
		o.logger.Info("container healthy", "attempts", res.Health.Attempts, "url", o.endpoint.URL())
		return res, nil
	case HealthUnhealthy:
		o.surfaceLogs(ctx)
		return res, stepError(StepHealth, BackendContainer, ErrContainerUnhealthy, nil)
	default:
		o.logger.Warn("health not confirmed within budget, container left running",
			"attempts", res.Health.Attempts, "url", o.endpoint.URL(), "error", res.Health.Err)
		return res, stepError(StepHealth, BackendContainer, ErrHealthCheckTimeout, res.Health.Err)
	}
}

// awaitHealth runs the post-start poll and, when the container declares its
// own health check, a longer readiness poll
func (o *Orchestrator) awaitHealth(ctx context.Context) PollResult {
	res := o.poller.Poll(ctx, o.endpoint, o.postStart)
	if res.Verdict == HealthHealthy || o.container.Spec.HealthCheck == nil {
		return res
	}
	o.logger.Info("waiting for container readiness", "attempts", o.readiness.Attempts, "interval", o.readiness.Interval)
	ready := o.poller.PollReadiness(ctx, o.endpoint, o.readiness, func(ctx context.Context) string {
		return o.container.Status(ctx).Health
	})
	ready.Attempts += res.Attempts
	return ready
}

// Stop hands the service back to the native backend. No health poll is made.
func (o *Orchestrator) Stop(ctx context.Context) (res TransitionResult, err error) {
	began := time.Now()
	defer func() {
		res.Duration = time.Since(began)
		o.metrics.observeTransition("stop", res, err)
	}()

	res.From = o.State(ctx)
	res.To = NativeOwns
	o.logger.Info("stop requested", "owner", res.From, "target", SwitchingToNative)

	switch res.From {
	case NativeOwns:
		o.logger.Info("native service already owns the service")
		res.Skipped = !o.probe.ContainerExists(ctx)
	case Conflicting:
		o.logger.Warn("both backends report active, resolving toward native", "error", ErrConflictingOwners)
	}

	if err = o.controller.StopContainer(ctx); err != nil {
		return res, err
	}
	if err = o.controller.StartNative(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Status returns a fresh snapshot of both backends
func (o *Orchestrator) Status(ctx context.Context) DeploymentSnapshot {
	return o.reporter.Snapshot(ctx)
}

// Reporter returns the status reporter
func (o *Orchestrator) Reporter() *StatusReporter {
	return o.reporter
}

// Logs streams the container's logs. It fails with ErrTargetNotFound when
// no container exists.
func (o *Orchestrator) Logs(ctx context.Context, opts LogOptions, stdout, stderr io.Writer) error {
	if !o.probe.ContainerExists(ctx) {
		return stepError(StepLogs, BackendContainer, ErrTargetNotFound, nil)
	}
	err := o.container.Logs(ctx, opts, stdout, stderr)
	if errors.Is(err, ErrTargetNotFound) {
		return stepError(StepLogs, BackendContainer, ErrTargetNotFound, nil)
	}
	return err
}

// Build rebuilds the image unconditionally. The running container is not touched.
func (o *Orchestrator) Build(ctx context.Context, noCache bool) (err error) {
	defer func() { o.metrics.observeBuild(err) }()
	o.container.Build.NoCache = noCache
	_, err = o.controller.EnsureImage(ctx, true)
	return err
}

// surfaceLogs writes the tail of the container's logs to the diagnostics writer
func (o *Orchestrator) surfaceLogs(ctx context.Context) {
	if o.diag == nil || !o.probe.ContainerExists(ctx) {
		return
	}
	o.logger.Info("recent container logs follow", "tail", o.logTail)
	if err := o.container.Logs(ctx, LogOptions{Tail: o.logTail}, o.diag, o.diag); err != nil {
		o.logger.Debug("could not read container logs", "error", err)
	}
}
