package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axondata/reachctl"
)

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the reachctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := reachctl.GetVersion()
			if a.flags.jsonOutput {
				return a.outputJSON(info)
			}
			fmt.Fprintf(a.Stdout, "%s %s (%s, %s)\n", serviceName, info.Version, info.GoVersion, info.Platform)
			return nil
		},
	}
}
