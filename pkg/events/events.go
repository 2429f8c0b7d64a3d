// Package events writes the structured business events shared by all
// services: every entry carries the event name, request id, emitting
// service and endpoint, plus an "extra" group of event-specific fields.
package events

import (
	"context"
	"log/slog"

	"storefront/pkg/logkey"
)

type Logger struct {
	service string
	log     *slog.Logger
}

// New returns an event logger for service. A nil log uses slog.Default().
func New(service string, log *slog.Logger) *Logger {
	return &Logger{service: service, log: log}
}

func (l *Logger) Info(ctx context.Context, event, requestID, endpoint string, extra ...slog.Attr) {
	l.write(ctx, slog.LevelInfo, event, requestID, endpoint, extra)
}

func (l *Logger) Error(ctx context.Context, event, requestID, endpoint string, extra ...slog.Attr) {
	l.write(ctx, slog.LevelError, event, requestID, endpoint, extra)
}

func (l *Logger) write(ctx context.Context, level slog.Level, event, requestID, endpoint string, extra []slog.Attr) {
	log := l.log
	if log == nil {
		log = slog.Default()
	}
	log.LogAttrs(ctx, level, event,
		slog.String(logkey.Event, event),
		slog.String(logkey.RequestID, requestID),
		slog.String(logkey.Service, l.service),
		slog.String(logkey.Endpoint, endpoint),
		slog.Attr{Key: logkey.Extra, Value: slog.GroupValue(extra...)},
	)
}
