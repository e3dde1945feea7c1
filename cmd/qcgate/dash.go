package main

import (
	"github.com/spf13/cobra"

	"github.com/hyeonwoo-dev/qcgate/internal/tui"
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Open the terminal dashboard",
	Long: `Renders a live terminal dashboard over the local data directory:
request totals, the project stage funnel, and recent activity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := buildServices()
		if err != nil {
			return err
		}
		defer svcs.close()

		return tui.NewApp(svcs.dashboard, svcs.projects).Run()
	},
}
