package approval

import "time"

// Status is the lifecycle state of an approval record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Decision is the terminal outcome of an approval record. Empty while pending.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionTimeout  Decision = "timeout"
)

// Record is one human decision request, keyed by run ID.
type Record struct {
	RunID        string            `json:"run_id"`
	Status       Status            `json:"status"`
	Decision     Decision          `json:"decision,omitempty"`
	OrderSummary map[string]string `json:"order_summary"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	DecidedAt    *time.Time        `json:"decided_at,omitempty"`
}

// Decided reports whether the record has reached a terminal decision.
func (r Record) Decided() bool {
	return r.Decision != ""
}

func (r Record) clone() Record {
	out := r
	if r.OrderSummary != nil {
		out.OrderSummary = make(map[string]string, len(r.OrderSummary))
		for k, v := range r.OrderSummary {
			out.OrderSummary[k] = v
		}
	}
	if r.DecidedAt != nil {
		decidedAt := *r.DecidedAt
		out.DecidedAt = &decidedAt
	}
	return out
}
