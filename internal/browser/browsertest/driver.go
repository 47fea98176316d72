// Package browsertest provides a scripted browser.Driver for tests.
package browsertest

import (
	"context"
	"sync"

	"github.com/MEKXH/dropwatch/internal/browser"
)

// Driver replays canned results and records the calls it receives.
// A nil error field means the step succeeds.
type Driver struct {
	NavigateErr  error
	LoginErr     error
	AddToCartErr error
	Pickup       browser.Pickup
	PickupErr    error
	PaymentErr   error
	Summary      string
	SummaryErr   error
	Result       browser.SubmitResult
	SubmitErr    error
	ResetErr     error

	mu      sync.Mutex
	calls   []string
	target  browser.Target
	creds   browser.Credentials
	payment browser.Payment
}

func (d *Driver) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

// Calls returns the method names invoked so far, in order.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Called reports whether the named method was invoked.
func (d *Driver) Called(name string) bool {
	for _, c := range d.Calls() {
		if c == name {
			return true
		}
	}
	return false
}

// Target returns the last navigation target.
func (d *Driver) Target() browser.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

// Credentials returns the last login credentials.
func (d *Driver) Credentials() browser.Credentials {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.creds
}

// Payment returns the last payment details entered.
func (d *Driver) Payment() browser.Payment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payment
}

func (d *Driver) Navigate(_ context.Context, target browser.Target) error {
	d.record("Navigate")
	d.mu.Lock()
	d.target = target
	d.mu.Unlock()
	return d.NavigateErr
}

func (d *Driver) Login(_ context.Context, creds browser.Credentials) error {
	d.record("Login")
	d.mu.Lock()
	d.creds = creds
	d.mu.Unlock()
	return d.LoginErr
}

func (d *Driver) AddToCart(context.Context) error {
	d.record("AddToCart")
	return d.AddToCartErr
}

func (d *Driver) SelectPickup(context.Context) (browser.Pickup, error) {
	d.record("SelectPickup")
	return d.Pickup, d.PickupErr
}

func (d *Driver) FillPayment(_ context.Context, payment browser.Payment) error {
	d.record("FillPayment")
	d.mu.Lock()
	d.payment = payment
	d.mu.Unlock()
	return d.PaymentErr
}

func (d *Driver) SummaryText(context.Context) (string, error) {
	d.record("SummaryText")
	return d.Summary, d.SummaryErr
}

func (d *Driver) Submit(context.Context) (browser.SubmitResult, error) {
	d.record("Submit")
	return d.Result, d.SubmitErr
}

func (d *Driver) Reset(context.Context) error {
	d.record("Reset")
	return d.ResetErr
}

var _ browser.Driver = (*Driver)(nil)
