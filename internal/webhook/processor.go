package webhook

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/MEKXH/dropwatch/internal/idempotency"
	"github.com/MEKXH/dropwatch/internal/policy"
	validatorv10 "github.com/go-playground/validator/v10"
)

// Ledger records event IDs and refuses repeats.
type Ledger interface {
	CheckAndRecord(eventID string) error
}

// Request is the authenticated part of an inbound webhook.
type Request struct {
	Source    string
	Timestamp string
	Signature string
	Body      []byte
	ClientIP  string
}

// Processor turns a raw request into an accepted Event, or a validation error.
type Processor struct {
	auth     *Authenticator
	ledger   Ledger
	validate *validatorv10.Validate
	envMode  policy.Mode
}

// NewProcessor wires the ingress checks in their required order.
func NewProcessor(auth *Authenticator, ledger Ledger, envMode policy.Mode) *Processor {
	return &Processor{
		auth:     auth,
		ledger:   ledger,
		validate: newValidator(),
		envMode:  envMode,
	}
}

// Accept authenticates, validates and deduplicates a webhook. Nothing is recorded unless
// every earlier check passed.
func (p *Processor) Accept(ctx context.Context, req Request) (Event, error) {
	log := slog.With("source", req.Source, "client_ip", req.ClientIP)

	if err := p.auth.Verify(ctx, req.Timestamp, req.Signature, req.Body); err != nil {
		switch {
		case errors.Is(err, ErrInvalidTimestamp), errors.Is(err, ErrStaleTimestamp):
			log.Warn("webhook timestamp rejected", "security_event", "invalid_timestamp", "timestamp", req.Timestamp, "error", err)
		case errors.Is(err, ErrInvalidSignature):
			log.Warn("webhook signature rejected", "security_event", "failed_hmac", "timestamp", req.Timestamp)
		case errors.Is(err, ErrValidation):
			log.Warn("webhook rejected", "error", err)
		}
		return Event{}, err
	}

	payload, err := DecodePayload(p.validate, req.Body)
	if err != nil {
		log.Warn("webhook payload rejected", "error", err)
		return Event{}, err
	}
	log = log.With("event_id", payload.EventID)

	if payload.Mode != "" {
		requested, err := policy.ParseMode(payload.Mode)
		if err != nil {
			log.Warn("webhook mode rejected", "mode", payload.Mode)
			return Event{}, reject(ErrMalformedPayload, "%v", err)
		}
		decision := policy.Resolve(p.envMode, requested)
		if !decision.Allowed {
			log.Warn("webhook mode override rejected",
				"security_event", "unsafe_mode_override",
				"requested_mode", requested,
				"environment_mode", p.envMode,
				"reason", decision.Reason)
			return Event{}, reject(ErrUnsafeModeOverride, "%s", decision.Reason)
		}
		payload.Mode = string(requested)
	}

	if err := p.ledger.CheckAndRecord(payload.EventID); err != nil {
		if errors.Is(err, idempotency.ErrDuplicate) {
			log.Warn("duplicate webhook event", "security_event", "duplicate_event")
			return Event{}, reject(ErrDuplicateEvent, "event %s has already been processed", payload.EventID)
		}
		return Event{}, err
	}

	log.Info("webhook accepted", "product_hint", payload.ProductHint, "mode_override", payload.Mode)
	return Event{Payload: payload, Source: strings.TrimSpace(req.Source)}, nil
}
