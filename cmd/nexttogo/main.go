package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:          "nexttogo",
	Short:        "Next-to-go racing list",
	Long:         "Shows the next five races to jump, kept fresh from the racing API with a local SQLite fallback.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/nexttogo/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Cache database path (default: $NEXTTOGO_DB or config cache.path)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
