package commands

import (
	"fmt"
	"os"

	"github.com/MEKXH/dropwatch/internal/config"
	"github.com/MEKXH/dropwatch/internal/secrets"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Dropwatch configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	path := effectiveConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{config.ConfigDir()}
	if cfg.Audit.Dir != "" {
		dirs = append(dirs, cfg.Audit.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.SaveTo(path, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Dropwatch initialized!\n")
	fmt.Printf("Config: %s\n", path)
	fmt.Printf("Traces: %s\n", cfg.Audit.Dir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to set the product and notification provider\n", path)
	fmt.Printf("2. Export %s and the checkout secrets, or put them in .env.local\n", secrets.EnvKey(cfg.Webhook.SecretName))
	fmt.Printf("3. Run 'dropwatch serve' (mode %s)\n", cfg.Mode)

	return nil
}
