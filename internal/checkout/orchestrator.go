// Package checkout drives the checkout page of a purchase attempt from pickup
// selection through approval and payment submission.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MEKXH/dropwatch/internal/approval"
	"github.com/MEKXH/dropwatch/internal/browser"
	"github.com/MEKXH/dropwatch/internal/policy"
	"github.com/MEKXH/dropwatch/internal/secrets"
)

// Secret names holding the payment card.
const (
	SecretCardNumber  = "cc_number"
	SecretExpMonth    = "cc_exp_month"
	SecretExpYear     = "cc_exp_year"
	SecretCVV         = "cc_cvv"
	SecretBillingName = "billing_name"
)

// Approver blocks until a human approves or refuses a submission.
type Approver interface {
	Await(ctx context.Context, p approval.Prompt) (approval.Decision, error)
}

// Attempt identifies the purchase being checked out.
type Attempt struct {
	RunID   string
	Product string
	Mode    policy.Mode
}

// Orchestrator runs the checkout state machine. It is safe for concurrent use
// as long as each Run gets its own Driver.
type Orchestrator struct {
	approver Approver
	secrets  secrets.Store
	now      func() time.Time
}

func New(approver Approver, store secrets.Store) *Orchestrator {
	return &Orchestrator{approver: approver, secrets: store, now: time.Now}
}

type run struct {
	Attempt
	driver  browser.Driver
	log     *slog.Logger
	pickup  browser.Pickup
	outcome Outcome
}

// Run takes an attempt whose cart is already at checkout to a terminal state.
// It never retries a submission.
func (o *Orchestrator) Run(ctx context.Context, driver browser.Driver, a Attempt) Outcome {
	r := &run{
		Attempt: a,
		driver:  driver,
		log:     slog.With("run_id", a.RunID, "mode", a.Mode),
	}

	state := StateAwaitingPickup
	for !state.Terminal() {
		var next State
		switch state {
		case StateAwaitingPickup:
			next = o.selectPickup(ctx, r)
		case StateFillingPayment:
			next = o.fillPayment(ctx, r)
		case StateAwaitingApproval:
			next = o.awaitApproval(ctx, r)
		case StateSubmitting:
			next = o.submit(ctx, r)
		default:
			r.fail(KindFailed, fmt.Errorf("unknown checkout state %q", state))
			next = StateFailed
		}
		r.outcome.History = append(r.outcome.History, Transition{From: state, To: next, At: o.now()})
		r.log.Info("checkout transition", "from", state, "to", next)
		state = next
	}
	r.outcome.State = state
	return r.outcome
}

func (o *Orchestrator) selectPickup(ctx context.Context, r *run) State {
	pickup, err := r.driver.SelectPickup(ctx)
	if err != nil {
		return r.failBrowser(err)
	}
	if pickup.Location == "" {
		r.log.Warn("pickup location could not be determined")
	} else {
		r.log.Info("pickup selected", "location", pickup.Location, "pre_selected", pickup.PreSelected)
	}
	r.pickup = pickup
	return StateFillingPayment
}

func (o *Orchestrator) fillPayment(ctx context.Context, r *run) State {
	payment, err := LoadPayment(ctx, o.secrets)
	if err != nil {
		return r.fail(KindFailed, err)
	}
	if err := r.driver.FillPayment(ctx, payment); err != nil {
		return r.failBrowser(err)
	}
	r.log.Info("payment entered", "card_last4", payment.LastFour())

	text, err := r.driver.SummaryText(ctx)
	if err != nil {
		// Scraping is best effort; an unreadable panel is reported as unknowns.
		r.log.Warn("order summary unavailable", "error", err)
	}
	summary, missing := ParseSummary(text, r.pickup.Location)
	warnMissing(r.log, missing)
	r.outcome.Summary = summary

	if !r.Mode.Submits() {
		r.log.Info("dry run, order not submitted", "total", summary[FieldTotal])
		r.outcome.Kind = KindDryRun
		r.outcome.Message = "checkout completed, order not submitted"
		return StateDone
	}
	return StateAwaitingApproval
}

func (o *Orchestrator) awaitApproval(ctx context.Context, r *run) State {
	_, err := o.approver.Await(ctx, approval.Prompt{
		RunID:   r.RunID,
		Product: r.Product,
		Summary: r.outcome.Summary,
	})
	switch {
	case err == nil:
		return StateSubmitting
	case errors.Is(err, approval.ErrRejected):
		return r.fail(KindRejected, err)
	case errors.Is(err, approval.ErrTimedOut):
		return r.fail(KindTimeout, err)
	case errors.Is(err, approval.ErrUnavailable):
		return r.fail(KindApprovalUnavailable, err)
	default:
		return r.fail(KindFailed, err)
	}
}

func (o *Orchestrator) submit(ctx context.Context, r *run) State {
	r.outcome.Submitted = true
	res, err := r.driver.Submit(ctx)
	if err != nil {
		if kind, ok := browser.KindOf(err); ok && kind == browser.KindStepUpRequired {
			return r.fail(KindStepUpRequired, err)
		}
		// Pay was clicked; the order may exist even though the worker call failed.
		r.outcome.Kind = KindAmbiguous
		r.outcome.Ambiguous = true
		r.outcome.Err = err
		r.outcome.Message = "submission result unknown: " + err.Error()
		r.log.Warn("submission result unknown", "error", err)
		return StateDone
	}
	r.outcome.URL = res.URL

	switch {
	case res.StepUpDetected:
		return r.fail(KindStepUpRequired, errors.New("payment requires strong customer authentication"))
	case res.ErrorText != "":
		r.outcome.Kind = KindPaymentDeclined
		r.outcome.Message = res.ErrorText
		r.log.Error("payment rejected by site", "message", res.ErrorText)
		return StateFailed
	case confirmationURL(res.URL):
		r.outcome.Kind = KindSuccess
		r.outcome.Message = "order submitted"
		r.log.Info("order confirmed", "url", res.URL)
		return StateDone
	default:
		r.outcome.Kind = KindAmbiguous
		r.outcome.Ambiguous = true
		r.outcome.Message = "submission completed without a confirmation page"
		r.log.Warn("ambiguous submission outcome", "url", res.URL)
		return StateDone
	}
}

func confirmationURL(u string) bool {
	u = strings.ToLower(u)
	for _, marker := range []string{"thank", "confirmation", "order"} {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}

func (r *run) fail(kind Kind, err error) State {
	r.outcome.Kind = kind
	r.outcome.Err = err
	r.outcome.Message = err.Error()
	r.log.Error("checkout failed", "kind", kind, "error", err)
	return StateFailed
}

// failBrowser maps a driver error onto an outcome kind.
func (r *run) failBrowser(err error) State {
	kind, ok := browser.KindOf(err)
	if !ok {
		r.log.Error("unexpected checkout error", "error", err)
		return r.fail(KindFailed, err)
	}
	return r.fail(OutcomeKind(kind), err)
}

// OutcomeKind maps a browser error kind to the attempt outcome it causes.
func OutcomeKind(k browser.Kind) Kind {
	switch k {
	case browser.KindSoldOut:
		return KindSoldOut
	case browser.KindTwoFactorRequired, browser.KindCaptchaRequired:
		return KindAuthRequired
	case browser.KindStepUpRequired:
		return KindStepUpRequired
	case browser.KindNavigationFailure:
		return KindFailed
	default:
		return KindFailed
	}
}

// LoadPayment reads the payment card from store.
func LoadPayment(ctx context.Context, store secrets.Store) (browser.Payment, error) {
	var p browser.Payment
	fields := []struct {
		name string
		dst  *string
	}{
		{SecretCardNumber, &p.CardNumber},
		{SecretExpMonth, &p.ExpMonth},
		{SecretExpYear, &p.ExpYear},
		{SecretCVV, &p.CVV},
		{SecretBillingName, &p.BillingName},
	}
	for _, f := range fields {
		v, err := store.GetSecret(ctx, f.name)
		if err != nil {
			return browser.Payment{}, fmt.Errorf("load payment %s: %w", f.name, err)
		}
		*f.dst = strings.TrimSpace(v)
	}
	return p, nil
}
