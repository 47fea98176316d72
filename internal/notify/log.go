package notify

import (
	"context"
	"log/slog"
)

// Log writes messages to the structured log only. Meant for local runs.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, msg Message) error {
	attrs := []any{"title", msg.Title, "priority", int(msg.Priority), "body", msg.Body}
	for _, action := range msg.Actions {
		attrs = append(attrs, "action_"+action.Label, action.URL)
	}
	l.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}
