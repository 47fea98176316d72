package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MEKXH/dropwatch/internal/agent"
	"github.com/MEKXH/dropwatch/internal/approval"
	"github.com/MEKXH/dropwatch/internal/audit"
	"github.com/MEKXH/dropwatch/internal/browser"
	"github.com/MEKXH/dropwatch/internal/checkout"
	"github.com/MEKXH/dropwatch/internal/config"
	"github.com/MEKXH/dropwatch/internal/gateway"
	"github.com/MEKXH/dropwatch/internal/idempotency"
	"github.com/MEKXH/dropwatch/internal/metrics"
	"github.com/MEKXH/dropwatch/internal/ratelimit"
	"github.com/MEKXH/dropwatch/internal/webhook"
	"github.com/spf13/cobra"
)

// shutdownTimeout leaves cancelled attempts time to reset the browser and
// send their terminal notification.
const shutdownTimeout = agent.NotifyTimeout + 15*time.Second

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook and approval server",
		RunE:  runServe,
	}
}

// service holds the process-wide components built from config.
type service struct {
	cfg      *config.Config
	registry *approval.Registry
	runner   *agent.Runner
	server   *gateway.Server
}

func buildService(ctx context.Context, cfg *config.Config) (*service, error) {
	aws := &awsLoader{cfg: cfg}
	store, err := buildSecrets(ctx, cfg, aws)
	if err != nil {
		return nil, fmt.Errorf("secret store: %w", err)
	}
	notifier, err := buildNotifier(ctx, cfg, store, aws)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	registry := approval.NewRegistry(cfg.ApprovalTimeout(), cfg.ApprovalMaxAge())
	if err := metrics.RegisterPendingApprovals(registry.PendingCount); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	gate := approval.NewGate(registry, notifier, approval.GateConfig{
		BaseURL:      cfg.Gateway.PublicURL,
		Timeout:      cfg.ApprovalTimeout(),
		PollInterval: cfg.ApprovalPollInterval(),
	})

	worker, err := browser.NewWorker(browser.WorkerConfig{
		BaseURL:           cfg.Browser.WorkerURL,
		Timeout:           cfg.BrowserTimeout(),
		NavigationTimeout: cfg.NavigationTimeout(),
	})
	if err != nil {
		return nil, err
	}

	runner, err := agent.NewRunner(agent.Config{
		EnvMode:    cfg.EnvMode(),
		Product:    cfg.Product.Name,
		RunTimeout: cfg.RunTimeout(),
		Drivers:  func(context.Context) (browser.Driver, error) { return worker, nil },
		Checkout:   checkout.New(gate, store),
		Notifier:   notifier,
		Secrets:    store,
		Trace:      audit.NewWriter(cfg.Audit.Dir),
	})
	if err != nil {
		return nil, err
	}

	processor := webhook.NewProcessor(
		webhook.NewAuthenticator(store, cfg.Webhook.SecretName, cfg.TimestampTolerance()),
		idempotency.NewLedger(cfg.Webhook.LedgerCapacity),
		cfg.EnvMode(),
	)

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled() {
		limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimitWindow(), cfg.RateLimitSweepInterval())
	} else {
		slog.Info("approval rate limiting disabled in test mode")
	}

	server := gateway.New(cfg.Gateway, gateway.Deps{
		Ingress:  processor,
		Launcher: runner,
		Registry: registry,
		Limiter:  limiter,
		Mode:     cfg.EnvMode(),
	})
	return &service{cfg: cfg, registry: registry, runner: runner, server: server}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	svc, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := svc.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	slog.Info("dropwatch started", "mode", cfg.Mode, "product", cfg.Product.Name, "notify", cfg.Notify.Provider, "secrets", cfg.Secrets.Provider)
	fmt.Printf("Dropwatch running in %s mode. Gateway: http://%s\nPress Ctrl+C to stop.\n", cfg.Mode, svc.server.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	slog.Info("shutting down", "pending_approvals", svc.registry.PendingCount())
	if err := svc.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}
	if err := svc.runner.Shutdown(shutdownCtx); err != nil {
		slog.Warn("purchase attempts still running at exit", "error", err)
	}

	return runErr
}
