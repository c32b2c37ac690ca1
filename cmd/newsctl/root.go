package main

import (
	"github.com/spf13/cobra"

	"github.com/LJTian/NewsDesk/internal/app"
	"github.com/LJTian/NewsDesk/internal/config"
)

var (
	logLevel string
	deps     *app.App
)

var rootCmd = &cobra.Command{
	Use:          "newsctl",
	Short:        "Manage landing page news items",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		a, err := app.New(cmd.Context(), cfg, app.NewLogger(cfg))
		if err != nil {
			return err
		}
		deps = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}
