// Command prayctl administers the prayer queue from a terminal: reseeding,
// purging, listing candidates and printing statistics. It reads the same
// environment (and .env file) as the server.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-prayer-queue/internal/app"
	"github.com/tbourn/go-prayer-queue/internal/config"
	"github.com/tbourn/go-prayer-queue/internal/sysutil"
)

var (
	envFile  string
	logLevel string

	// opened by PersistentPreRunE, closed by PersistentPostRunE
	application *app.App
)

// openApp is replaced in tests.
var openApp = func() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	sysutil.ConfigureLogging(sysutil.FirstNonEmpty(logLevel, cfg.LogLevel), true, "prayctl")
	return app.Open(cfg)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prayctl",
		Short:         "Administer the prayer queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}
			if sysutil.IsTruthy(os.Getenv("NO_COLOR")) {
				color.NoColor = true
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			application = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if application == nil {
				return nil
			}
			err := application.Close()
			application = nil
			return err
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(newReseedCmd(), newPurgeCmd(), newListCmd(), newStatsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
