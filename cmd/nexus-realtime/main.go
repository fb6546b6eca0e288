package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nexus-reussite/nexus-realtime/internal/app"
	"github.com/nexus-reussite/nexus-realtime/internal/config"
	"github.com/nexus-reussite/nexus-realtime/internal/injector"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "nexus-realtime",
	Short: "Nexus Réussite real-time client",
	Long: "Command-line client for the Nexus Réussite push channel.\n" +
		"Listen to live notifications, emit room and assistant events, and manage the stored token and preferences.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error, silent)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration selected by the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// openClient builds the whole client graph. The returned release func must
// be called once the command is done.
func openClient() (*app.Client, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, cleanup, err := injector.InitializeClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		_ = client.Close()
		cleanup()
	}, nil
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}
