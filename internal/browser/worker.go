package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultWorkerTimeout     = 120 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
)

// WorkerConfig points the client at a browser worker service.
type WorkerConfig struct {
	BaseURL           string
	Timeout           time.Duration
	NavigationTimeout time.Duration
}

// Worker is a Driver backed by a remote browser worker speaking JSON over HTTP.
type Worker struct {
	baseURL       string
	navTimeout    time.Duration
	actionTimeout time.Duration
	httpClient    *http.Client
}

// NewWorker creates a worker client.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("browser worker url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWorkerTimeout
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	return &Worker{
		baseURL:       base,
		navTimeout:    cfg.NavigationTimeout,
		actionTimeout: cfg.Timeout,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type workerResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`

	Location       string `json:"location"`
	PreSelected    bool   `json:"pre_selected"`
	Text           string `json:"text"`
	URL            string `json:"url"`
	StepUpDetected bool   `json:"step_up_detected"`
	ErrorText      string `json:"error_text"`
}

func (w *Worker) Navigate(ctx context.Context, target Target) error {
	_, err := w.post(ctx, "/navigate", target, w.navTimeout)
	return err
}

func (w *Worker) Login(ctx context.Context, creds Credentials) error {
	_, err := w.post(ctx, "/login", creds, w.navTimeout)
	return err
}

func (w *Worker) AddToCart(ctx context.Context) error {
	_, err := w.post(ctx, "/add-to-cart", map[string]any{"proceed_to_checkout": true}, w.navTimeout)
	return err
}

func (w *Worker) SelectPickup(ctx context.Context) (Pickup, error) {
	resp, err := w.post(ctx, "/checkout/pickup", struct{}{}, w.actionTimeout)
	if err != nil {
		return Pickup{}, err
	}
	return Pickup{Location: strings.TrimSpace(resp.Location), PreSelected: resp.PreSelected}, nil
}

func (w *Worker) FillPayment(ctx context.Context, payment Payment) error {
	_, err := w.post(ctx, "/checkout/payment", payment, w.actionTimeout)
	return err
}

func (w *Worker) SummaryText(ctx context.Context) (string, error) {
	resp, err := w.post(ctx, "/checkout/summary", struct{}{}, w.actionTimeout)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (w *Worker) Submit(ctx context.Context) (SubmitResult, error) {
	resp, err := w.post(ctx, "/checkout/submit", struct{}{}, w.actionTimeout)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		URL:            resp.URL,
		StepUpDetected: resp.StepUpDetected,
		ErrorText:      strings.TrimSpace(resp.ErrorText),
	}, nil
}

func (w *Worker) Reset(ctx context.Context) error {
	_, err := w.post(ctx, "/reset", struct{}{}, w.navTimeout)
	return err
}

func (w *Worker) post(ctx context.Context, endpoint string, payload any, timeout time.Duration) (workerResponse, error) {
	op := strings.TrimPrefix(endpoint, "/")
	body, err := json.Marshal(payload)
	if err != nil {
		return workerResponse{}, fmt.Errorf("encode %s request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return workerResponse{}, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return workerResponse{}, NewError(KindNavigationFailure, op, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return workerResponse{}, NewError(KindNavigationFailure, op, "read response: "+err.Error())
	}

	var out workerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 300 {
			return workerResponse{}, NewError(KindNavigationFailure, op, fmt.Sprintf("worker returned %s", resp.Status))
		}
		return workerResponse{}, NewError(KindNavigationFailure, op, "invalid worker response")
	}
	slog.Debug("browser worker call", "op", op, "status", out.Status, "http_status", resp.StatusCode, "duration", time.Since(start))

	if out.Status == "error" || resp.StatusCode >= 300 {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("worker returned %s", resp.Status)
		}
		return workerResponse{}, NewError(kindFromWorker(out.ErrorType), op, msg)
	}
	return out, nil
}

func kindFromWorker(errorType string) Kind {
	switch errorType {
	case "TwoFactorRequired":
		return KindTwoFactorRequired
	case "CaptchaRequired":
		return KindCaptchaRequired
	case "ProductSoldOut":
		return KindSoldOut
	case "ThreeDSecureRequired", "StepUpRequired":
		return KindStepUpRequired
	default:
		return KindNavigationFailure
	}
}
