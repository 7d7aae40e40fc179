package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axondata/reachctl"
)

// transitionView is the JSON form of a start or stop result
type transitionView struct {
	Command    string                 `json:"command"`
	From       reachctl.OwnerState    `json:"from"`
	To         reachctl.OwnerState    `json:"to"`
	Skipped    bool                   `json:"skipped"`
	ImageBuilt bool                   `json:"image_built"`
	Health     reachctl.HealthVerdict `json:"health"`
	Attempts   int                    `json:"health_attempts"`
	DurationMS int64                  `json:"duration_ms"`
	Error      string                 `json:"error,omitempty"`
}

func newTransitionView(command string, res reachctl.TransitionResult, err error) transitionView {
	v := transitionView{
		Command:    command,
		From:       res.From,
		To:         res.To,
		Skipped:    res.Skipped,
		ImageBuilt: res.ImageBuilt,
		Health:     res.Health.Verdict,
		Attempts:   res.Health.Attempts,
		DurationMS: res.Duration.Milliseconds(),
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

func (a *App) newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Hand the service to the Docker container",
		Long: `Stop the native unit, build the image if it is missing, start a fresh
container and wait for the health endpoint. Does nothing if the container
already owns the service and is healthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, closeFn, err := a.orchestrator()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := orch.Start(cmd.Context())
			if a.flags.jsonOutput {
				if jerr := a.outputJSON(newTransitionView("start", res, err)); jerr != nil {
					return jerr
				}
				return err
			}

			switch {
			case err == nil && res.Skipped:
				fmt.Fprintf(a.Stdout, "Container %s already owns the service and is healthy (%s)\n",
					a.cfg.ContainerName, a.cfg.Endpoint().URL())
			case err == nil:
				fmt.Fprintf(a.Stdout, "Service moved to container %s (was %s), healthy at %s\n",
					a.cfg.ContainerName, res.From, a.cfg.Endpoint().URL())
			case errors.Is(err, reachctl.ErrHealthCheckTimeout):
				fmt.Fprintf(a.Stdout, "Warning: container %s started but %s did not answer within %d attempts; it may still be starting (see: %s logs)\n",
					a.cfg.ContainerName, a.cfg.Endpoint().URL(), res.Health.Attempts, serviceName)
			}
			return err
		},
	}
}

func (a *App) newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Hand the service back to the native systemd unit",
		Long: `Stop and remove the container, then start the native unit. No health
check is made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, closeFn, err := a.orchestrator()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := orch.Stop(cmd.Context())
			if a.flags.jsonOutput {
				if jerr := a.outputJSON(newTransitionView("stop", res, err)); jerr != nil {
					return jerr
				}
				return err
			}
			if err == nil {
				fmt.Fprintf(a.Stdout, "Service running natively as %s.service (was %s)\n", a.cfg.UnitName, res.From)
			}
			return err
		},
	}
}
