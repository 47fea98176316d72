package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MEKXH/dropwatch/internal/webhook"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Send test webhooks to a running server",
	}
	cmd.AddCommand(newWebhookSendCmd())
	return cmd
}

func newWebhookSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a signed availability webhook",
		RunE:  runWebhookSend,
	}
	cmd.Flags().String("url", "", "Server base URL (default: gateway.public_url)")
	cmd.Flags().String("source", "manual", "Webhook source path segment")
	cmd.Flags().String("secret", "", "Shared secret (default: resolved from the secret store)")
	cmd.Flags().String("event-id", "", "Event ID (default: random)")
	cmd.Flags().String("link", "", "Direct product link (default: product.url)")
	cmd.Flags().String("product", "", "Product hint (default: product.name)")
	cmd.Flags().String("mode", "", "Requested mode (dryrun|test|prod)")
	return cmd
}

// buildTestPayload fills the webhook payload from flags and config.
func buildTestPayload(cmd *cobra.Command, link, product string) webhook.Payload {
	eventID, _ := cmd.Flags().GetString("event-id")
	if strings.TrimSpace(eventID) == "" {
		eventID = "manual-" + uuid.NewString()
	}
	if l, _ := cmd.Flags().GetString("link"); l != "" {
		link = l
	}
	if p, _ := cmd.Flags().GetString("product"); p != "" {
		product = p
	}
	mode, _ := cmd.Flags().GetString("mode")
	return webhook.Payload{
		EventID:     eventID,
		ReceivedAt:  time.Now().UTC().Format(time.RFC3339),
		Subject:     "In stock: " + product,
		DirectLink:  link,
		ProductHint: product,
		Mode:        mode,
	}
}

func runWebhookSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	payload := buildTestPayload(cmd, cfg.Product.URL, cfg.Product.Name)
	if payload.DirectLink == "" || payload.ProductHint == "" {
		return fmt.Errorf("--link and --product are required when product.url and product.name are not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	secret, err := resolveWebhookSecret(cmd)
	if err != nil {
		return err
	}

	base, _ := cmd.Flags().GetString("url")
	source, _ := cmd.Flags().GetString("source")
	target := serverURL(base) + "/webhook/" + source

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderTimestamp, timestamp)
	req.Header.Set(webhook.HeaderSignature, webhook.Sign(secret, timestamp, body))

	var accepted struct {
		Status  string `json:"status"`
		EventID string `json:"event_id"`
		RunID   string `json:"run_id"`
	}
	if _, err := doJSON(cmd.Context(), req, &accepted); err != nil {
		return fmt.Errorf("webhook rejected: %w", err)
	}

	fmt.Printf("%s event=%s run=%s\n", colored(okColor, accepted.Status), accepted.EventID, accepted.RunID)
	fmt.Printf("Follow with: dropwatch approval status %s\n", accepted.RunID)
	return nil
}
