package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) newBuildCmd() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the container image",
		Long:  "Rebuild the image unconditionally. A running container keeps the old image until the next start.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, closeFn, err := a.orchestrator()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := orch.Build(cmd.Context(), noCache); err != nil {
				return err
			}
			fmt.Fprintf(a.Stdout, "Image %s built\n", a.cfg.Image)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not use the build cache")
	return cmd
}
