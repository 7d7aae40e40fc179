package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/axondata/reachctl"
)

func (a *App) newLogsCmd() *cobra.Command {
	var opts reachctl.LogOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the container's logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, closeFn, err := a.orchestrator()
			if err != nil {
				return err
			}
			defer closeFn()

			err = orch.Logs(cmd.Context(), opts, a.Stdout, a.Stderr)
			if opts.Follow && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "follow log output")
	cmd.Flags().StringVar(&opts.Tail, "tail", "100", `number of lines to show from the end, or "all"`)
	cmd.Flags().BoolVarP(&opts.Timestamps, "timestamps", "t", false, "show timestamps")
	return cmd
}
