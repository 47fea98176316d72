package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/MEKXH/dropwatch/internal/notify"
)

const DefaultPollInterval = 2 * time.Second

var (
	// ErrUnavailable means no decision could be requested; the purchase must not proceed.
	ErrUnavailable = errors.New("could not request approval")
	ErrRejected    = errors.New("purchase rejected by approver")
	ErrTimedOut    = errors.New("approval timed out")
)

// GateConfig controls how long and how often the gate waits.
type GateConfig struct {
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Gate asks a human to approve a purchase and blocks until they decide.
type Gate struct {
	registry *Registry
	notifier notify.Notifier
	baseURL  string
	timeout  time.Duration
	interval time.Duration
}

// NewGate creates a gate writing into registry and prompting through notifier.
func NewGate(registry *Registry, notifier notify.Notifier, cfg GateConfig) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Gate{
		registry: registry,
		notifier: notifier,
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:  cfg.Timeout,
		interval: cfg.PollInterval,
	}
}

// Prompt describes what the approver is asked to decide on.
type Prompt struct {
	RunID   string
	Product string
	Summary map[string]string
}

// Await creates the approval record, notifies the approver and waits for a decision.
//
// It returns DecisionApproved with a nil error, or the terminal decision with
// ErrRejected, ErrTimedOut or ErrUnavailable.
func (g *Gate) Await(ctx context.Context, p Prompt) (Decision, error) {
	log := slog.With("run_id", p.RunID)

	if _, err := g.registry.Create(p.RunID, p.Summary, g.timeout); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	approveURL, rejectURL := CallbackURLs(g.baseURL, p.RunID)
	msg := notify.ApprovalRequest(p.RunID, p.Product, p.Summary, approveURL, rejectURL)
	if err := g.notifier.Send(ctx, msg); err != nil {
		g.registry.Delete(p.RunID)
		log.Error("approval notification failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	log.Info("awaiting approval", "timeout", g.timeout, "poll_interval", g.interval)

	decision, err := g.wait(ctx, p.RunID)
	if err != nil {
		return "", err
	}
	log.Info("approval decided", "decision", decision)

	switch decision {
	case DecisionApproved:
		return decision, nil
	case DecisionRejected:
		return decision, ErrRejected
	default:
		return DecisionTimeout, ErrTimedOut
	}
}

// wait polls the registry, waking early when the record's done channel closes.
// The lock is never held while waiting.
func (g *Gate) wait(ctx context.Context, runID string) (Decision, error) {
	done := g.registry.Done(runID)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(g.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			g.registry.Expire(runID)
			return "", ctx.Err()
		case <-deadline.C:
			if d, ok := g.read(runID); ok {
				return d, nil
			}
			// Late clicks must not approve a purchase nobody is waiting for.
			if g.registry.Expire(runID) {
				return DecisionTimeout, nil
			}
			if d, ok := g.read(runID); ok {
				return d, nil
			}
			return DecisionTimeout, nil
		case <-done:
			done = nil
		case <-ticker.C:
		}

		if d, ok := g.read(runID); ok {
			return d, nil
		}
	}
}

func (g *Gate) read(runID string) (Decision, bool) {
	rec, ok := g.registry.Get(runID)
	if !ok {
		// Removed underneath us; nobody can approve it any more.
		return DecisionTimeout, true
	}
	if rec.Decided() {
		return rec.Decision, true
	}
	return "", false
}

// CallbackURLs returns the approve and reject links for runID under baseURL.
func CallbackURLs(baseURL, runID string) (approve, reject string) {
	base := strings.TrimRight(baseURL, "/") + "/approval/" + url.PathEscape(runID)
	return base + "/approve", base + "/reject"
}
