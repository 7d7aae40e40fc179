package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axondata/reachctl"
)

func (a *App) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which backend owns the service and whether it is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, closeFn, err := a.orchestrator()
			if err != nil {
				return err
			}
			defer closeFn()

			snap := orch.Status(cmd.Context())
			a.metrics.ObserveSnapshot(snap)
			return a.printSnapshot(snap)
		},
	}
}

func (a *App) printSnapshot(snap reachctl.DeploymentSnapshot) error {
	if a.flags.jsonOutput {
		return a.outputJSON(snap)
	}
	if err := snap.Render(a.Stdout, a.painter()); err != nil {
		return err
	}
	if snap.Owner == reachctl.Conflicting {
		fmt.Fprintf(a.Stdout, "Warning: both backends are active; run '%s start' or '%s stop' to resolve\n", serviceName, serviceName)
	}
	return nil
}
