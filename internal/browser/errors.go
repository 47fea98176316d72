package browser

import (
	"errors"
	"fmt"
)

// Kind classifies a failed browser interaction. The set is closed.
type Kind string

const (
	KindSoldOut           Kind = "sold_out"
	KindTwoFactorRequired Kind = "two_factor_required"
	KindCaptchaRequired   Kind = "captcha_required"
	KindStepUpRequired    Kind = "step_up_required"
	KindNavigationFailure Kind = "navigation_failure"
)

// Kinds lists every Kind.
var Kinds = []Kind{
	KindSoldOut,
	KindTwoFactorRequired,
	KindCaptchaRequired,
	KindStepUpRequired,
	KindNavigationFailure,
}

// NeedsHuman reports whether the kind can only be resolved by a person.
func (k Kind) NeedsHuman() bool {
	switch k {
	case KindTwoFactorRequired, KindCaptchaRequired, KindStepUpRequired:
		return true
	default:
		return false
	}
}

// Error is returned by Driver methods when the site interaction fails.
type Error struct {
	Kind    Kind
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// NewError builds an Error.
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// KindOf extracts the Kind from err. It returns false for unclassified errors.
func KindOf(err error) (Kind, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return "", false
}
