// Package browser defines the contract with the site automation worker.
package browser

import "context"

// Target identifies the product page to open.
type Target struct {
	DirectLink  string     `json:"direct_link"`
	ProductHint string     `json:"product_name"`
	BirthDate   *BirthDate `json:"dob,omitempty"`
}

// BirthDate answers age gates.
type BirthDate struct {
	Month string `json:"month"`
	Day   string `json:"day"`
	Year  string `json:"year"`
}

// Credentials log in to the store account.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Payment is entered on the checkout page.
type Payment struct {
	CardNumber  string `json:"cc_number"`
	ExpMonth    string `json:"cc_exp_month"`
	ExpYear     string `json:"cc_exp_year"`
	CVV         string `json:"cc_cvv"`
	BillingName string `json:"billing_name"`
}

// LastFour returns the final four digits of the card, for logs.
func (p Payment) LastFour() string {
	if len(p.CardNumber) < 4 {
		return ""
	}
	return p.CardNumber[len(p.CardNumber)-4:]
}

// Pickup is the delivery option in effect after selection.
// An empty Location means it could not be read from the page.
type Pickup struct {
	Location    string `json:"location"`
	PreSelected bool   `json:"pre_selected"`
}

// SubmitResult describes the page after clicking pay.
type SubmitResult struct {
	URL            string `json:"url"`
	StepUpDetected bool   `json:"step_up_detected"`
	ErrorText      string `json:"error_text"`
}

// Driver drives one browser session through a purchase. Methods are called
// sequentially; implementations need not be safe for concurrent use.
type Driver interface {
	Navigate(ctx context.Context, target Target) error
	Login(ctx context.Context, creds Credentials) error
	AddToCart(ctx context.Context) error
	// SelectPickup keeps a pre-selected option, or picks the first explicit pickup option.
	SelectPickup(ctx context.Context) (Pickup, error)
	FillPayment(ctx context.Context, payment Payment) error
	// SummaryText returns the visible text of the order summary panel.
	SummaryText(ctx context.Context) (string, error)
	Submit(ctx context.Context) (SubmitResult, error)
	Reset(ctx context.Context) error
}
