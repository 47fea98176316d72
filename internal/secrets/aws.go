package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWS reads secrets from AWS Secrets Manager and caches them for the process lifetime.
type AWS struct {
	client SecretsManagerAPI
	prefix string

	mu    sync.RWMutex
	cache map[string]string
}

// NewAWS creates a store; prefix is prepended to every secret name.
func NewAWS(client SecretsManagerAPI, prefix string) *AWS {
	return &AWS{
		client: client,
		prefix: strings.TrimSpace(prefix),
		cache:  make(map[string]string),
	}
}

// NewAWSFromConfig creates a store backed by a real client.
func NewAWSFromConfig(cfg sdkaws.Config, prefix string) *AWS {
	return NewAWS(secretsmanager.NewFromConfig(cfg), prefix)
}

func (a *AWS) GetSecret(ctx context.Context, name string) (string, error) {
	id := a.prefix + name

	a.mu.RLock()
	if v, ok := a.cache[id]; ok {
		a.mu.RUnlock()
		return v, nil
	}
	a.mu.RUnlock()

	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(id)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}

	a.mu.Lock()
	a.cache[id] = *out.SecretString
	a.mu.Unlock()

	return *out.SecretString, nil
}
