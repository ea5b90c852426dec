// Package cli implements the drowsyctl command line.
package cli

import (
	"fmt"

	"codeberg.org/mutker/drowsyctl/internal/config"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

var configFile string

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "drowsyctl",
	Short: "Camera based drowsiness monitor",
	Long: `drowsyctl watches a driver through a camera, computes the eye aspect
ratio of every frame and raises an alert when the eyes stay closed for
several consecutive frames.

Measurements are appended to a CSV log that the report command summarizes.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "drowsyctl %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Configuration file (TOML)")
	config.RegisterFlags(flags)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the configuration for cmd and initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var opts []config.Option
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}

	cfg, err := config.Load(cmd.Flags(), opts...)
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.Init(level, logger.IsService())
	logger.Debug().Str("log_file", cfg.LogFile).Msg("Config loaded")

	return cfg, nil
}
