// Package agent runs purchase attempts triggered by accepted webhooks.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MEKXH/dropwatch/internal/audit"
	"github.com/MEKXH/dropwatch/internal/browser"
	"github.com/MEKXH/dropwatch/internal/checkout"
	"github.com/MEKXH/dropwatch/internal/metrics"
	"github.com/MEKXH/dropwatch/internal/notify"
	"github.com/MEKXH/dropwatch/internal/policy"
	"github.com/MEKXH/dropwatch/internal/secrets"
	"github.com/MEKXH/dropwatch/internal/webhook"
)

const (
	DefaultRunTimeout = 30 * time.Minute

	// NotifyTimeout bounds each notification. Notifications are sent on a
	// context detached from the attempt so a timed-out run still reports.
	NotifyTimeout = 30 * time.Second
)

// Secret names for the store account and age gate.
const (
	SecretEmail    = "bnb_email"
	SecretPassword = "bnb_password"
	SecretDOBMonth = "dob_month"
	SecretDOBDay   = "dob_day"
	SecretDOBYear  = "dob_year"
)

// DriverFactory opens a browser session for one attempt.
type DriverFactory func(ctx context.Context) (browser.Driver, error)

// Config wires a Runner.
type Config struct {
	EnvMode    policy.Mode
	Product    string
	RunTimeout time.Duration

	Drivers  DriverFactory
	Checkout *checkout.Orchestrator
	Notifier notify.Notifier
	Secrets  secrets.Store
	Trace    *audit.Writer
}

// Result is what a finished attempt reports.
type Result struct {
	RunID    string
	EventID  string
	Mode     policy.Mode
	Outcome  checkout.Outcome
	Duration time.Duration
}

// Runner executes purchase attempts. Attempts for different events run
// concurrently and share nothing but the collaborators in Config.
type Runner struct {
	cfg      Config
	now      func() time.Time
	newRunID func(eventID string) string
	wg       sync.WaitGroup

	stopCtx context.Context
	stop    context.CancelFunc
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Drivers == nil {
		return nil, errors.New("browser driver factory is required")
	}
	if cfg.Checkout == nil {
		return nil, errors.New("checkout orchestrator is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if cfg.Secrets == nil {
		return nil, errors.New("secret store is required")
	}
	if !cfg.EnvMode.Valid() {
		return nil, fmt.Errorf("invalid process mode %q", cfg.EnvMode)
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.Trace == nil {
		cfg.Trace = audit.NewWriter("")
	}
	stopCtx, stop := context.WithCancel(context.Background())
	return &Runner{cfg: cfg, now: time.Now, newRunID: NewRunID, stopCtx: stopCtx, stop: stop}, nil
}

// NewRunID derives a per-attempt ID that cannot be guessed from the event ID.
func NewRunID(eventID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return eventID + "-" + suffix
}

// Launch starts an attempt in the background and returns its run ID.
// The attempt outlives the caller's context; only the run timeout or
// Shutdown stops it.
func (r *Runner) Launch(ctx context.Context, ev webhook.Event) string {
	runID := r.newRunID(ev.EventID)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RunTimeout)
		defer cancel()
		unlink := context.AfterFunc(r.stopCtx, cancel)
		defer unlink()
		r.run(ctx, runID, ev)
	}()
	return runID
}

// Shutdown cancels launched attempts and waits for them to report their outcome.
// Attempts past the pay click end ambiguous, never failed.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stop()
	return r.Wait(ctx)
}

// Wait blocks until launched attempts finish or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes one attempt synchronously.
func (r *Runner) Run(ctx context.Context, ev webhook.Event) Result {
	return r.run(ctx, r.newRunID(ev.EventID), ev)
}

func (r *Runner) run(ctx context.Context, runID string, ev webhook.Event) Result {
	start := r.now()
	log := slog.With("run_id", runID, "event_id", ev.EventID)
	mode := r.resolveMode(log, ev.Mode)
	product := r.productName(ev)
	log = log.With("mode", mode)
	log.Info("purchase attempt started", "product", product, "source", ev.Source)

	r.trace(audit.Event{Type: audit.TypeRunStarted, RunID: runID, Detail: product})
	r.trace(audit.Event{Type: audit.TypeModeResolved, RunID: runID, Result: mode.String()})

	if err := r.notify(ctx, notify.Started(runID, product, mode.String())); err != nil {
		log.Warn("start notification failed", "error", err)
		r.trace(audit.Event{Type: audit.TypeNotifyFailure, RunID: runID, Step: "started", Detail: err.Error()})
	}

	outcome := r.attempt(ctx, log, runID, product, mode, ev)
	if outcome.Kind == checkout.KindFailed && ctx.Err() != nil {
		outcome.Message = r.interruption(ctx) + ": " + outcome.Message
	}
	res := Result{RunID: runID, EventID: ev.EventID, Mode: mode, Outcome: outcome, Duration: r.now().Sub(start)}

	for _, tr := range outcome.History {
		r.trace(audit.Event{Time: tr.At, Type: audit.TypeTransition, RunID: runID, From: string(tr.From), To: string(tr.To)})
	}
	r.trace(audit.Event{
		Type:    audit.TypeOutcome,
		RunID:   runID,
		Result:  string(outcome.Kind),
		Detail:  outcome.Message,
		Summary: outcome.Summary,
	})

	metrics.RunOutcomes.WithLabelValues(mode.String(), string(outcome.Kind)).Inc()
	metrics.RunDuration.Observe(res.Duration.Seconds())

	if err := r.notify(ctx, TerminalMessage(runID, product, outcome)); err != nil {
		log.Error("outcome notification failed", "kind", outcome.Kind, "error", err)
		r.trace(audit.Event{Type: audit.TypeNotifyFailure, RunID: runID, Step: "outcome", Detail: err.Error()})
	}
	log.Info("purchase attempt finished", "kind", outcome.Kind, "state", outcome.State, "duration", res.Duration)
	return res
}

func (r *Runner) notify(ctx context.Context, msg notify.Message) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), NotifyTimeout)
	defer cancel()
	return r.cfg.Notifier.Send(ctx, msg)
}

// interruption names why the attempt context ended early.
func (r *Runner) interruption(ctx context.Context) string {
	switch {
	case r.stopCtx.Err() != nil:
		return "attempt cancelled, service shutting down"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("run timeout of %s exceeded", r.cfg.RunTimeout)
	default:
		return "attempt cancelled"
	}
}

// resolveMode applies a webhook mode request. Ingress already refuses unsafe
// requests; this check covers callers that bypass it.
func (r *Runner) resolveMode(log *slog.Logger, raw string) policy.Mode {
	decision := policy.Resolve(r.cfg.EnvMode, policy.Mode(raw))
	if !decision.Allowed {
		log.Warn("mode override refused", "security_event", "unsafe_mode_override",
			"requested", decision.Requested, "env_mode", r.cfg.EnvMode, "reason", decision.Reason)
	} else if decision.Overridden(r.cfg.EnvMode) {
		log.Info("mode overridden by webhook", "requested", decision.Requested, "env_mode", r.cfg.EnvMode)
	}
	return decision.Mode
}

func (r *Runner) productName(ev webhook.Event) string {
	if name := strings.TrimSpace(r.cfg.Product); name != "" {
		return name
	}
	return strings.TrimSpace(ev.ProductHint)
}

func (r *Runner) attempt(ctx context.Context, log *slog.Logger, runID, product string, mode policy.Mode, ev webhook.Event) checkout.Outcome {
	driver, err := r.cfg.Drivers(ctx)
	if err != nil {
		return failed(checkout.KindFailed, fmt.Errorf("open browser session: %w", err))
	}
	defer func() {
		if err := driver.Reset(context.WithoutCancel(ctx)); err != nil {
			log.Warn("browser reset failed", "error", err)
		}
	}()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"navigate", func() error {
			return driver.Navigate(ctx, browser.Target{
				DirectLink:  ev.DirectLink,
				ProductHint: ev.ProductHint,
				BirthDate:   r.birthDate(ctx),
			})
		}},
		{"login", func() error {
			creds, err := r.credentials(ctx)
			if err != nil {
				return err
			}
			return driver.Login(ctx, creds)
		}},
		{"add_to_cart", func() error { return driver.AddToCart(ctx) }},
	}
	for _, step := range steps {
		err := step.fn()
		result := "ok"
		if err != nil {
			result = err.Error()
		}
		r.trace(audit.Event{Type: audit.TypeStep, RunID: runID, Step: step.name, Result: result})
		if err != nil {
			return stepFailure(log, step.name, err)
		}
		log.Info("step completed", "step", step.name)
	}

	return r.cfg.Checkout.Run(ctx, driver, checkout.Attempt{RunID: runID, Product: product, Mode: mode})
}

func stepFailure(log *slog.Logger, step string, err error) checkout.Outcome {
	kind, ok := browser.KindOf(err)
	if !ok {
		log.Error("unexpected step error", "step", step, "error", err)
		return failed(checkout.KindFailed, fmt.Errorf("%s: %w", step, err))
	}
	log.Error("step failed", "step", step, "kind", kind, "error", err)
	return failed(checkout.OutcomeKind(kind), fmt.Errorf("%s: %w", step, err))
}

func failed(kind checkout.Kind, err error) checkout.Outcome {
	return checkout.Outcome{Kind: kind, State: checkout.StateFailed, Message: err.Error(), Err: err}
}

func (r *Runner) credentials(ctx context.Context) (browser.Credentials, error) {
	email, err := r.cfg.Secrets.GetSecret(ctx, SecretEmail)
	if err != nil {
		return browser.Credentials{}, fmt.Errorf("load login email: %w", err)
	}
	password, err := r.cfg.Secrets.GetSecret(ctx, SecretPassword)
	if err != nil {
		return browser.Credentials{}, fmt.Errorf("load login password: %w", err)
	}
	return browser.Credentials{Email: strings.TrimSpace(email), Password: password}, nil
}

// birthDate returns nil unless all three parts are stored.
func (r *Runner) birthDate(ctx context.Context) *browser.BirthDate {
	var parts [3]string
	for i, name := range []string{SecretDOBMonth, SecretDOBDay, SecretDOBYear} {
		v, err := r.cfg.Secrets.GetSecret(ctx, name)
		if err != nil || strings.TrimSpace(v) == "" {
			return nil
		}
		parts[i] = strings.TrimSpace(v)
	}
	return &browser.BirthDate{Month: parts[0], Day: parts[1], Year: parts[2]}
}

func (r *Runner) trace(ev audit.Event) {
	if ev.Time.IsZero() {
		ev.Time = r.now().UTC()
	}
	if err := r.cfg.Trace.Append(ev); err != nil {
		slog.Warn("write run trace failed", "run_id", ev.RunID, "error", err)
	}
}
