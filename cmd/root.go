package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"family-atlas/config"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	basePath   string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "family-atlas",
		Short: "Sort family photos into year and place folders",
		Long: `Family Atlas triages a folder of photos and videos.

Unimportant shots (blurry, screenshots, documents) are set aside, videos are
filed by year and photos are filed by year and the place they were taken,
resolved from their GPS tags.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.basePath, "base", "b", "", "Library folder (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Human readable debug logging")

	cmd.AddCommand(
		newOrganizeCmd(opts),
		newScanCmd(opts),
		newInspectCmd(opts),
		newResolveCmd(opts),
		newSnapshotCmd(opts),
		newLocationCmd(opts),
	)

	return cmd
}

// load reads the config and applies the persistent flag overrides.
func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.basePath != "" {
		cfg.BasePath = o.basePath
	}
	if o.verbose {
		cfg.Development = true
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
