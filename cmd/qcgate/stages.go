package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyeonwoo-dev/qcgate/internal/stage"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the project lifecycle stages",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, s := range stage.All() {
			fmt.Fprintf(out, "%d. %-20s %s\n", s.Ordinal, s.Code, s.Label)
		}
		fmt.Fprintf(out, "\nTerminal codes outside the sequence: %s, %s\n", stage.Cancelled, stage.Suspended)
	},
}
