package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier publishes operator-facing messages to a notification channel.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// LogNotifier implements Notifier by writing messages to the structured log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Publish(_ context.Context, message string) error {
	n.log.Info("notification", zap.String("message", message))
	return nil
}
