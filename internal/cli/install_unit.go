package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/axondata/reachctl"
)

func (a *App) newInstallUnitCmd() *cobra.Command {
	var (
		printOnly bool
		enable    bool
		execStart string
	)

	cmd := &cobra.Command{
		Use:   "install-unit",
		Short: "Write the systemd unit for the native backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := reachctl.NewUnitBuilder(a.cfg)
			if execStart != "" {
				b.ExecStart = strings.Fields(execStart)
			}

			if printOnly {
				unit, err := b.Render()
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(a.Stdout, unit)
				return err
			}

			path, err := b.Install(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("unit installed", "path", path)
			if enable {
				if err := b.Enable(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.Stdout, "Installed %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the unit instead of installing it")
	cmd.Flags().BoolVar(&enable, "enable", false, "enable the unit after installing")
	cmd.Flags().StringVar(&execStart, "exec-start", "", "service command line (default from config)")
	return cmd
}
