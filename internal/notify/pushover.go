package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// Pushover sends messages through the Pushover message API.
// The first action becomes the supplementary URL; further actions are appended to the body.
type Pushover struct {
	appToken   string
	userKey    string
	apiURL     string
	httpClient *http.Client
}

// NewPushover creates a Pushover sender. An empty apiURL selects the public endpoint.
func NewPushover(appToken, userKey, apiURL string) (*Pushover, error) {
	if strings.TrimSpace(appToken) == "" || strings.TrimSpace(userKey) == "" {
		return nil, fmt.Errorf("pushover: %w: app token and user key are required", ErrNotConfigured)
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultPushoverURL
	}
	return &Pushover{
		appToken:   appToken,
		userKey:    userKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (p *Pushover) Send(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("token", p.appToken)
	form.Set("user", p.userKey)
	form.Set("priority", strconv.Itoa(int(msg.Priority)))
	if msg.Title != "" {
		form.Set("title", msg.Title)
	}

	body := msg.Body
	for i, action := range msg.Actions {
		if i == 0 {
			form.Set("url", action.URL)
			form.Set("url_title", action.Label)
			continue
		}
		body += fmt.Sprintf("\n%s: %s", action.Label, action.URL)
	}
	form.Set("message", body)

	// Emergency messages repeat until acknowledged; the API requires both values.
	if msg.Priority == PriorityEmergency {
		form.Set("retry", "60")
		form.Set("expire", "3600")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pushover: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pushover error %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	slog.Info("pushover notification sent", "title", msg.Title, "priority", int(msg.Priority))
	return nil
}
