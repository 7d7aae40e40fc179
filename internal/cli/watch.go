package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/axondata/reachctl"
)

func (a *App) newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print status on an interval and whenever settings or data change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, closeFn, err := a.orchestrator()
			if err != nil {
				return err
			}
			defer closeFn()

			events, cleanup, err := orch.Reporter().Watch(cmd.Context(), interval, a.cfg.SettingsFile, a.cfg.DataDir)
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			defer func() { _ = cleanup() }()

			for ev := range events {
				if ev.Err != nil {
					a.logger.Warn("file watch error", "error", ev.Err)
					continue
				}
				a.metrics.ObserveSnapshot(ev.Snapshot)
				if !a.flags.jsonOutput {
					fmt.Fprintf(a.Stdout, "--- %s (%s)\n", ev.Snapshot.ObservedAt.Local().Format(time.TimeOnly), ev.Trigger)
				}
				if err := a.printSnapshot(ev.Snapshot); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", reachctl.DefaultWatchInterval, "re-probe interval")
	return cmd
}
