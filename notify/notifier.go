package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers a message about address to some downstream system.
type Notifier interface {
	Notify(ctx context.Context, address, message string) error
}

// LogNotifier writes notifications to the structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, address, message string) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", slog.String("address", address), slog.String("message", message))
	return nil
}
