package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MEKXH/dropwatch/internal/agent"
	"github.com/MEKXH/dropwatch/internal/approval"
	"github.com/MEKXH/dropwatch/internal/browser"
	"github.com/MEKXH/dropwatch/internal/browser/browsertest"
	"github.com/MEKXH/dropwatch/internal/checkout"
	"github.com/MEKXH/dropwatch/internal/idempotency"
	"github.com/MEKXH/dropwatch/internal/notify"
	"github.com/MEKXH/dropwatch/internal/policy"
	"github.com/MEKXH/dropwatch/internal/secrets"
	"github.com/MEKXH/dropwatch/internal/webhook"
)

const sharedSecret = "s3cret"

type pushRecorder struct {
	mu       sync.Mutex
	msgs     []notify.Message
	approval chan notify.Message
}

func newPushRecorder() *pushRecorder {
	return &pushRecorder{approval: make(chan notify.Message, 1)}
}

func (p *pushRecorder) Send(_ context.Context, msg notify.Message) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	if len(msg.Actions) > 0 {
		p.approval <- msg
	}
	return nil
}

func (p *pushRecorder) last() notify.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msgs[len(p.msgs)-1]
}

type stack struct {
	handler  http.Handler
	registry *approval.Registry
	runner   *agent.Runner
	driver   *browsertest.Driver
	push     *pushRecorder
}

func newStack(t *testing.T, env policy.Mode, approvalTimeout time.Duration) *stack {
	t.Helper()
	store := secrets.Static{
		webhook.DefaultSecretName:  sharedSecret,
		agent.SecretEmail:          "buyer@example.com",
		agent.SecretPassword:       "pw",
		checkout.SecretCardNumber:  "4111111111111111",
		checkout.SecretExpMonth:    "12",
		checkout.SecretExpYear:     "2030",
		checkout.SecretCVV:         "123",
		checkout.SecretBillingName: "Pat Doe",
	}
	driver := &browsertest.Driver{
		Pickup:  browser.Pickup{Location: "Main St", PreSelected: true},
		Summary: "Subtotal\n$36.50\nEstimated taxes\n$3.61\nTotal\nUSD\n$40.11",
		Result:  browser.SubmitResult{URL: "https://shop.example/checkouts/c1/thank-you"},
	}
	push := newPushRecorder()
	registry := approval.NewRegistry(approvalTimeout, time.Hour)
	gate := approval.NewGate(registry, push, approval.GateConfig{
		BaseURL:      "https://drops.example.com",
		Timeout:      approvalTimeout,
		PollInterval: 10 * time.Millisecond,
	})
	runner, err := agent.NewRunner(agent.Config{
		EnvMode:  env,
		Drivers:  func(context.Context) (browser.Driver, error) { return driver, nil },
		Checkout: checkout.New(gate, store),
		Notifier: push,
		Secrets:  store,
	})
	if err != nil {
		t.Fatalf("NewRunner error: %v", err)
	}
	processor := webhook.NewProcessor(
		webhook.NewAuthenticator(store, webhook.DefaultSecretName, webhook.DefaultTolerance),
		idempotency.NewLedger(idempotency.DefaultCapacity),
		env,
	)
	h := NewHandler(Deps{Ingress: processor, Launcher: runner, Registry: registry, Mode: env})
	return &stack{handler: h, registry: registry, runner: runner, driver: driver, push: push}
}

func signedWebhook(t *testing.T, eventID, mode string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"event_id":     eventID,
		"received_at":  "2026-10-14T08:00:00Z",
		"subject":      "Fortaleza Blanco is back",
		"direct_link":  "https://shop.example/products/fortaleza-blanco",
		"product_hint": "Fortaleza Blanco",
		"mode":         mode,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhook/pi", strings.NewReader(string(body)))
	req.Header.Set(webhook.HeaderTimestamp, ts)
	req.Header.Set(webhook.HeaderSignature, webhook.Sign(sharedSecret, ts, body))
	return req
}

func (s *stack) post(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *stack) waitRuns(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runner.Wait(ctx); err != nil {
		t.Fatalf("runs did not finish: %v", err)
	}
}

func runIDFromPrompt(t *testing.T, msg notify.Message) string {
	t.Helper()
	u := msg.Actions[0].URL
	const prefix = "https://drops.example.com/approval/"
	if !strings.HasPrefix(u, prefix) || !strings.HasSuffix(u, "/approve") {
		t.Fatalf("unexpected approve url %q", u)
	}
	return strings.TrimSuffix(strings.TrimPrefix(u, prefix), "/approve")
}

func TestEndToEndApprovedPurchase(t *testing.T) {
	s := newStack(t, policy.ModeTest, 10*time.Minute)

	rr := s.post(signedWebhook(t, "evt-approve", "test"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var prompt notify.Message
	select {
	case prompt = <-s.push.approval:
	case <-time.After(5 * time.Second):
		t.Fatal("approval was never requested")
	}
	runID := runIDFromPrompt(t, prompt)
	rec, ok := s.registry.Get(runID)
	if !ok || rec.OrderSummary["total"] != "$40.11" {
		t.Fatalf("expected pending record with total $40.11, got %+v", rec)
	}

	approve := s.post(httptest.NewRequest(http.MethodPost, "/approval/"+runID+"/approve", nil))
	if approve.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", approve.Code)
	}

	s.waitRuns(t)
	if !s.driver.Called("Submit") {
		t.Fatal("approved purchase was not submitted")
	}
	if got := s.push.last().Title; got != "Purchase successful" {
		t.Fatalf("expected success notification, got %q", got)
	}
}

func TestEndToEndApprovalTimeout(t *testing.T) {
	s := newStack(t, policy.ModeTest, 100*time.Millisecond)

	if rr := s.post(signedWebhook(t, "evt-timeout", "")); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	prompt := <-s.push.approval
	runID := runIDFromPrompt(t, prompt)

	s.waitRuns(t)
	if s.driver.Called("Submit") {
		t.Fatal("timed out purchase must not be submitted")
	}
	rec, ok := s.registry.Get(runID)
	if !ok || rec.Decision != approval.DecisionTimeout {
		t.Fatalf("expected timeout decision, got %+v", rec)
	}
	if got := s.push.last().Title; got != "Purchase failed" {
		t.Fatalf("expected failure notification, got %q", got)
	}

	late := s.post(httptest.NewRequest(http.MethodPost, "/approval/"+runID+"/approve", nil))
	if late.Code != http.StatusBadRequest {
		t.Fatalf("late approve: expected 400, got %d", late.Code)
	}
}

func TestEndToEndReplayedWebhook(t *testing.T) {
	s := newStack(t, policy.ModeDryRun, time.Minute)

	first := s.post(signedWebhook(t, "evt-replay", ""))
	if first.Code != http.StatusOK {
		t.Fatalf("first: expected 200, got %d", first.Code)
	}
	second := s.post(signedWebhook(t, "evt-replay", ""))
	if second.Code != http.StatusBadRequest {
		t.Fatalf("second: expected 400, got %d", second.Code)
	}
	if code := decodeJSON(t, second.Body)["code"]; code != "duplicate_event" {
		t.Fatalf("expected duplicate_event, got %v", code)
	}

	s.waitRuns(t)
	navigations := 0
	for _, c := range s.driver.Calls() {
		if c == "Navigate" {
			navigations++
		}
	}
	if navigations != 1 {
		t.Fatalf("expected exactly one attempt, got %d", navigations)
	}
}

func TestEndToEndUnsafeOverrideRejected(t *testing.T) {
	s := newStack(t, policy.ModeDryRun, time.Minute)

	rr := s.post(signedWebhook(t, "evt-unsafe", "prod"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := decodeJSON(t, rr.Body)["code"]; code != "unsafe_mode_override" {
		t.Fatalf("expected unsafe_mode_override, got %v", code)
	}
	s.waitRuns(t)
	if len(s.driver.Calls()) != 0 {
		t.Fatalf("no attempt should start, got %v", s.driver.Calls())
	}
}
