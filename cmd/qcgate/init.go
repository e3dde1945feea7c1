package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyeonwoo-dev/qcgate/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory and default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolveDataDir()
		if err := config.Init(dir); err != nil {
			return err
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", cfg.ConfigPath())
		return nil
	},
}
