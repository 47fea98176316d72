package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MEKXH/dropwatch/internal/config"
	"github.com/MEKXH/dropwatch/internal/webhook"
	"github.com/spf13/cobra"
)

func NewSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [payload-file]",
		Short: "Print the webhook signature headers for a payload",
		Long:  "Sign reads a JSON payload from a file, or stdin when no file is given, and prints the X-Timestamp and X-Signature headers.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSign,
	}
	cmd.Flags().String("secret", "", "Shared secret (default: resolved from the secret store)")
	cmd.Flags().Int64("timestamp", 0, "Unix timestamp to sign (default: now)")
	return cmd
}

func runSign(cmd *cobra.Command, args []string) error {
	var body []byte
	var err error
	if len(args) == 1 {
		body, err = os.ReadFile(args[0])
	} else {
		body, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	secret, err := resolveWebhookSecret(cmd)
	if err != nil {
		return err
	}

	ts, _ := cmd.Flags().GetInt64("timestamp")
	if ts == 0 {
		ts = time.Now().Unix()
	}
	timestamp := strconv.FormatInt(ts, 10)

	fmt.Printf("%s: %s\n", webhook.HeaderTimestamp, timestamp)
	fmt.Printf("%s: %s\n", webhook.HeaderSignature, webhook.Sign(secret, timestamp, body))
	return nil
}

// resolveWebhookSecret prefers --secret, then the configured secret store.
func resolveWebhookSecret(cmd *cobra.Command) (string, error) {
	if secret, _ := cmd.Flags().GetString("secret"); strings.TrimSpace(secret) != "" {
		return secret, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return lookupWebhookSecret(cmd.Context(), cfg)
}

func lookupWebhookSecret(ctx context.Context, cfg *config.Config) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := buildSecrets(ctx, cfg, &awsLoader{cfg: cfg})
	if err != nil {
		return "", err
	}
	secret, err := store.GetSecret(ctx, cfg.Webhook.SecretName)
	if err != nil {
		return "", fmt.Errorf("webhook secret %s: %w", cfg.Webhook.SecretName, err)
	}
	return secret, nil
}
