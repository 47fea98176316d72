package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"

	"github.com/MEKXH/dropwatch/internal/cloud"
	"github.com/MEKXH/dropwatch/internal/config"
	"github.com/MEKXH/dropwatch/internal/notify"
	"github.com/MEKXH/dropwatch/internal/secrets"
)

// awsLoader loads the AWS config at most once per command.
type awsLoader struct {
	cfg    *config.Config
	loaded *sdkaws.Config
}

func (l *awsLoader) load(ctx context.Context) (sdkaws.Config, error) {
	if l.loaded != nil {
		return *l.loaded, nil
	}
	awsCfg, err := cloud.LoadAWSConfig(ctx, cloud.AWSOptions{
		Region:   l.cfg.Secrets.AWS.Region,
		Endpoint: l.cfg.Secrets.AWS.Endpoint,
	})
	if err != nil {
		return sdkaws.Config{}, err
	}
	l.loaded = &awsCfg
	return awsCfg, nil
}

// buildSecrets returns the configured store, always falling back to environment variables.
func buildSecrets(ctx context.Context, cfg *config.Config, aws *awsLoader) (secrets.Store, error) {
	env := secrets.NewEnv()
	if cfg.Secrets.Provider != "aws" {
		return env, nil
	}
	awsCfg, err := aws.load(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("using aws secrets manager", "region", awsCfg.Region, "prefix", cfg.Secrets.AWS.Prefix)
	return secrets.NewChain(secrets.NewAWSFromConfig(awsCfg, cfg.Secrets.AWS.Prefix), env), nil
}

func buildNotifier(ctx context.Context, cfg *config.Config, store secrets.Store, aws *awsLoader) (notify.Notifier, error) {
	switch cfg.Notify.Provider {
	case "pushover":
		p := cfg.Notify.Pushover
		token, err := store.GetSecret(ctx, p.AppTokenSecret)
		if err != nil {
			return nil, fmt.Errorf("pushover app token: %w", err)
		}
		user, err := store.GetSecret(ctx, p.UserKeySecret)
		if err != nil {
			return nil, fmt.Errorf("pushover user key: %w", err)
		}
		return notify.NewPushover(strings.TrimSpace(token), strings.TrimSpace(user), p.APIURL)
	case "telegram":
		token, err := store.GetSecret(ctx, cfg.Notify.Telegram.TokenSecret)
		if err != nil {
			return nil, fmt.Errorf("telegram bot token: %w", err)
		}
		return notify.NewTelegram(strings.TrimSpace(token), cfg.Notify.Telegram.ChatID)
	case "sns":
		awsCfg, err := aws.load(ctx)
		if err != nil {
			return nil, err
		}
		return notify.NewSNSFromConfig(awsCfg, cfg.Notify.SNS.TopicARN)
	default:
		return notify.NewLog(slog.Default()), nil
	}
}
