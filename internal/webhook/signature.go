package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"

	DefaultTolerance  = 300 * time.Second
	DefaultSecretName = "pi_webhook_shared_secret"
)

// SecretSource resolves named secrets.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Sign returns the hex HMAC-SHA256 of "{timestamp}.{body}".
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares in constant time.
func VerifySignature(secret, timestamp, signature string, body []byte) bool {
	expected := Sign(secret, timestamp, body)
	got := strings.ToLower(strings.TrimSpace(signature))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// Authenticator checks freshness and authenticity of inbound requests.
type Authenticator struct {
	secrets    SecretSource
	secretName string
	tolerance  time.Duration
	now        func() time.Time
}

// NewAuthenticator creates an authenticator that loads the shared secret by name on each request.
func NewAuthenticator(secrets SecretSource, secretName string, tolerance time.Duration) *Authenticator {
	if strings.TrimSpace(secretName) == "" {
		secretName = DefaultSecretName
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Authenticator{
		secrets:    secrets,
		secretName: secretName,
		tolerance:  tolerance,
		now:        time.Now,
	}
}

// VerifyTimestamp rejects timestamps that are not integers or differ from now by more than the tolerance.
func (a *Authenticator) VerifyTimestamp(timestamp string) error {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return reject(ErrInvalidTimestamp, "%q is not a unix timestamp", timestamp)
	}
	age := a.now().Unix() - ts
	if age < 0 {
		age = -age
	}
	limit := int64(a.tolerance / time.Second)
	if age > limit {
		return reject(ErrStaleTimestamp, "request is %ds from now, tolerance is %ds", age, limit)
	}
	return nil
}

// Verify runs the timestamp check, loads the secret, then checks the signature.
// A secret lookup failure is returned unwrapped; it is not a client error.
func (a *Authenticator) Verify(ctx context.Context, timestamp, signature string, body []byte) error {
	if strings.TrimSpace(timestamp) == "" || strings.TrimSpace(signature) == "" {
		return ErrMissingHeaders
	}
	if err := a.VerifyTimestamp(timestamp); err != nil {
		return err
	}
	secret, err := a.secrets.GetSecret(ctx, a.secretName)
	if err != nil {
		return fmt.Errorf("load webhook secret: %w", err)
	}
	if !VerifySignature(secret, strings.TrimSpace(timestamp), signature, body) {
		return ErrInvalidSignature
	}
	return nil
}
