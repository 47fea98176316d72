package commands

import (
	"github.com/MEKXH/dropwatch/internal/config"
	"github.com/spf13/cobra"
)

var (
	logLevelOverride string
	configPath       string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dropwatch",
		Short:         "Dropwatch - approval-gated purchase agent",
		Long:          `Dropwatch buys a watched product when an availability webhook arrives, after a human approves the order.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "init", "version":
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.dropwatch/config.json)")

	cmd.AddCommand(
		NewInitCmd(),
		NewServeCmd(),
		NewStatusCmd(),
		NewSignCmd(),
		NewWebhookCmd(),
		NewApprovalCmd(),
		NewVersionCmd(),
	)

	return cmd
}

func loadConfig() (*config.Config, error) {
	return config.LoadFrom(configPath)
}

func effectiveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.ConfigPath()
}
