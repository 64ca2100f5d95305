package events

import (
	"context"
	"log/slog"
)

// LogPublisher records envelopes in the service log when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, env Envelope) error {
	p.logger.LogAttrs(ctx, slog.LevelDebug, "event",
		slog.String("event_id", env.EventID),
		slog.String("event_type", env.EventType),
		slog.String("correlation_id", env.CorrelationID),
		slog.String("payload", string(env.Payload)),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
