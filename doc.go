// Package reachctl moves a running Reach server between its two mutually
// exclusive supervisors: a native systemd unit and a Docker container.
//
// Ownership is never stored. Every operation starts by probing both
// backends and deriving the owner with DeriveState:
//
//	native := reachctl.NewSystemdSupervisor("reach-server")
//	rt, err := reachctl.NewDockerRuntime("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg := reachctl.Default()
//	container := reachctl.NewContainerSupervisor(rt, cfg.ContainerSpec(), cfg.BuildSpec())
//	orch := reachctl.NewOrchestrator(native, container, cfg.Endpoint())
//
//	// Hand the service to the container and wait for /health
//	res, err := orch.Start(ctx)
//
// # Transitions
//
// Start stops the native unit, ensures the image, starts a fresh container
// and polls the health endpoint. Stop removes the container and starts the
// native unit. Each step re-probes before it acts, so repeating a command is
// safe. A failed step aborts the command and nothing is rolled back; the
// returned error is a *TransitionError wrapping one of the Err* classes.
//
// # Health
//
// HealthPoller issues GET requests on a fixed schedule (PollPlan) and
// returns Healthy on the first 2xx. When the container declares a health
// check, a longer readiness poll also watches the runtime's own status and
// stops early on "unhealthy".
//
// # Status
//
// StatusReporter combines both supervisors, image presence, the service
// port and one health request into a DeploymentSnapshot. Watch repeats
// that on an interval and when the settings file or data directory changes.
package reachctl
