package mailer

import (
	"context"
	"log/slog"

	"storefront/pkg/logkey"
)

// LogSender writes messages to the log instead of delivering them. It is
// the default mailer for local runs.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "mail logged",
		slog.String(logkey.RequestID, msg.RequestID),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
	)
	return nil
}
