package main

import (
	"github.com/spf13/cobra"

	"geopulse/internal/config"
	"geopulse/internal/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "geopulse",
	Short: "Geo-aware demand and supply intelligence for a local marketplace",
	Long: `geopulse turns buyer interaction events and seller listings into
heatmaps, trending searches, hotspots and opportunity zones.

Configuration is read from an optional file (--config), a .env file and
GEOPULSE_* environment variables, e.g. GEOPULSE_STORE_EVENTS=postgres.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML/JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")
}

// loadConfig loads configuration and installs the default logger.
// --log-level takes precedence over the configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger.New(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
