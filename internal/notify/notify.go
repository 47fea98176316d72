// Package notify delivers human-facing notifications about purchase attempts.
package notify

import (
	"context"
	"errors"
)

// Priority follows the Pushover scale from -2 (silent) to 2 (emergency).
type Priority int

const (
	PriorityLowest    Priority = -2
	PriorityLow       Priority = -1
	PriorityNormal    Priority = 0
	PriorityHigh      Priority = 1
	PriorityEmergency Priority = 2
)

// Action is a labelled link attached to a message.
type Action struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Message is one notification.
type Message struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority Priority `json:"priority"`
	Actions  []Action `json:"actions,omitempty"`
}

// Notifier sends a message. A nil error means the channel accepted it.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNotConfigured is returned by backends missing required credentials.
var ErrNotConfigured = errors.New("notifier not configured")

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
