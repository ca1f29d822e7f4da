package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet-cli/internal/config"
	"github.com/apkfleet/apkfleet-cli/internal/i18n"
	"github.com/apkfleet/apkfleet-cli/internal/version"
	"github.com/apkfleet/apkfleet-cli/pkg/utils"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "apkfleet",
	Short: "ApkFleet CLI - Install APK sets across connected Android devices",
	Long: `ApkFleet CLI classifies base and split APKs, matches them against device
capabilities, and orchestrates installations over adb with retry and
progress reporting.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}

		loggerConfig := utils.DefaultLoggerConfig()
		loggerConfig.Level = utils.ParseLogLevel(cfg.Log.Level)
		loggerConfig.Format = utils.ParseLogFormat(cfg.Log.Format)
		if cfg.Log.File != "" {
			loggerConfig.EnableFile = true
			loggerConfig.FilePath = cfg.Log.File
		}
		if err := utils.InitGlobalLogger(loggerConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := i18n.Init(""); err != nil {
			utils.Warn("i18n initialization failed: %v", err)
		}

		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./apkfleet.yaml or ~/.config/apkfleet/apkfleet.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, compact, json")
}
