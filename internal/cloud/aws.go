// Package cloud loads shared AWS SDK configuration.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// AWSOptions override values otherwise taken from the default credential chain.
type AWSOptions struct {
	Region   string
	Endpoint string
}

// LoadAWSConfig loads the default AWS config. Endpoint, or AWS_ENDPOINT when empty,
// points every client at a local emulator.
func LoadAWSConfig(ctx context.Context, opts AWSOptions) (sdkaws.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if region := strings.TrimSpace(opts.Region); region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = strings.TrimSpace(os.Getenv("AWS_ENDPOINT"))
	}
	if endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(endpoint)
		slog.Debug("aws custom endpoint configured", "endpoint", endpoint, "region", cfg.Region)
	}
	return cfg, nil
}
