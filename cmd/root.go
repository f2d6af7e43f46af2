// Package cmd implements the convey CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool

	appVersion = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "convey",
	Short: "Convey — build, verify, publish, and deploy container images",
	Long: "Convey runs a sequential deployment pipeline defined in convey.yaml: " +
		"build an image, smoke-test it in a container, publish it to a registry, " +
		"and deploy it to a staging instance behind a health gate.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "convey.yaml", "pipeline definition path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
}

// SetVersionInfo sets the version and commit for display.
func SetVersionInfo(version, commit string) {
	appVersion = version
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("convey %s (commit: %s)\n", version, commit))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
