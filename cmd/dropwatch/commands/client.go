package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// apiError is the gateway's error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// doJSON sends a request and decodes a 2xx JSON body into out.
func doJSON(ctx context.Context, req *http.Request, out any) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return resp.StatusCode, fmt.Errorf("%s (%d %s)", apiErr.Message, resp.StatusCode, apiErr.Code)
		}
		return resp.StatusCode, fmt.Errorf("server returned %s", resp.Status)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// serverURL returns --url or the configured public URL.
func serverURL(flag string) string {
	if u := strings.TrimSpace(flag); u != "" {
		return strings.TrimRight(u, "/")
	}
	cfg, err := loadConfig()
	if err != nil {
		return "http://localhost:8080"
	}
	return strings.TrimRight(cfg.Gateway.PublicURL, "/")
}
