// Package secrets resolves credentials from managed stores with a local fallback.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ErrNotFound is returned when no store holds the requested secret.
var ErrNotFound = errors.New("secret not found")

// Store resolves a secret by name.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Env reads secrets from environment variables named after the upper-cased secret name.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

func (e *Env) GetSecret(ctx context.Context, name string) (string, error) {
	key := EnvKey(name)
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s (env %s)", ErrNotFound, name, key)
	}
	return v, nil
}

// EnvKey maps a secret name such as "pushover_app_token" to PUSHOVER_APP_TOKEN.
func EnvKey(name string) string {
	key := strings.ToUpper(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", "/", "_", ".", "_").Replace(key)
}

// Chain tries stores in order. Any failure other than success moves on to the next store.
type Chain struct {
	stores []Store
}

func NewChain(stores ...Store) *Chain {
	filtered := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &Chain{stores: filtered}
}

func (c *Chain) GetSecret(ctx context.Context, name string) (string, error) {
	for _, s := range c.stores {
		v, err := s.GetSecret(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("secret lookup failed, trying fallback", "secret_name", name, "error", err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Static is a fixed map of secrets.
type Static map[string]string

func (s Static) GetSecret(ctx context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v, nil
}
