package checkout

import "time"

// State is a step of one checkout attempt.
type State string

const (
	StateAwaitingPickup   State = "awaiting_pickup_selection"
	StateFillingPayment   State = "filling_payment"
	StateAwaitingApproval State = "awaiting_approval"
	StateSubmitting       State = "submitting"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition records one state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Kind classifies how an attempt ended.
type Kind string

const (
	KindSuccess             Kind = "success"
	KindDryRun              Kind = "dry_run"
	KindAmbiguous           Kind = "ambiguous"
	KindRejected            Kind = "rejected"
	KindTimeout             Kind = "timeout"
	KindSoldOut             Kind = "sold_out"
	KindAuthRequired        Kind = "auth_required"
	KindStepUpRequired      Kind = "step_up_required"
	KindPaymentDeclined     Kind = "payment_declined"
	KindApprovalUnavailable Kind = "approval_unavailable"
	KindFailed              Kind = "failed"
)

// Outcome is the terminal result of an attempt.
type Outcome struct {
	Kind    Kind              `json:"kind"`
	State   State             `json:"state"`
	Summary map[string]string `json:"order_summary,omitempty"`
	// URL is the page reached after submission, if any.
	URL       string       `json:"url,omitempty"`
	Message   string       `json:"message,omitempty"`
	Ambiguous bool         `json:"ambiguous,omitempty"`
	Submitted bool         `json:"submitted"`
	History   []Transition `json:"history"`
	Err       error        `json:"-"`
}

// Succeeded reports whether an order was confirmed or a dry run completed.
func (o Outcome) Succeeded() bool {
	return o.Kind == KindSuccess || o.Kind == KindDryRun
}
