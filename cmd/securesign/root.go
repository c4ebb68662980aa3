package main

import (
	"github.com/spf13/cobra"

	"securesign/internal/config"
)

var configFile string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "securesign",
		Short:        "SecureSign - account signup, email verification and password recovery",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
