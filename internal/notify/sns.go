package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSPublisher is the subset of the SNS client used here.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS publishes messages as JSON documents to a topic.
type SNS struct {
	client   SNSPublisher
	topicArn string
}

// NewSNS creates an SNS sender for topicArn.
func NewSNS(client SNSPublisher, topicArn string) (*SNS, error) {
	if client == nil || strings.TrimSpace(topicArn) == "" {
		return nil, fmt.Errorf("sns: %w: topic_arn is required", ErrNotConfigured)
	}
	return &SNS{client: client, topicArn: topicArn}, nil
}

// NewSNSFromConfig creates an SNS sender backed by a real client.
func NewSNSFromConfig(cfg sdkaws.Config, topicArn string) (*SNS, error) {
	return NewSNS(sns.NewFromConfig(cfg), topicArn)
}

func (s *SNS) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sns: encode message: %w", err)
	}
	input := &sns.PublishInput{
		TopicArn: sdkaws.String(s.topicArn),
		Message:  sdkaws.String(string(payload)),
		Subject:  sdkaws.String(snsSubject(msg.Title)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"priority": {
				DataType:    sdkaws.String("Number"),
				StringValue: sdkaws.String(strconv.Itoa(int(msg.Priority))),
			},
		},
	}
	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", s.topicArn, err)
	}
	slog.Info("sns notification sent", "title", msg.Title, "priority", int(msg.Priority), "message_len", len(payload))
	return nil
}

// SNS subjects are limited to 100 printable ASCII characters.
func snsSubject(title string) string {
	var b strings.Builder
	for _, r := range title {
		if r < 0x20 || r > 0x7e {
			continue
		}
		b.WriteRune(r)
		if b.Len() == 100 {
			break
		}
	}
	if b.Len() == 0 {
		return "dropwatch"
	}
	return b.String()
}
