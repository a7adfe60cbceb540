package events

import (
	"context"
	"log/slog"

	"github.com/ecopickup/pooling/internal/domain"
)

// LogPublisher writes pool-formed events to the structured log. It is the
// default sink when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// PublishPoolFormed logs ev at info level. It never fails.
func (p *LogPublisher) PublishPoolFormed(ctx context.Context, ev domain.PoolFormed) error {
	ids := make([]string, len(ev.RequestIDs))
	for i, id := range ev.RequestIDs {
		ids[i] = id.String()
	}
	p.logger.InfoContext(ctx, PoolFormedType,
		"request_ids", ids,
		"trigger_lat", ev.TriggerLat,
		"trigger_lng", ev.TriggerLng,
		"pooled_at", ev.PooledAt,
	)
	return nil
}
