// Package service contains the business logic of the pickup pooling service.
// Services validate inputs, enforce lifecycle rules, and orchestrate repo calls.
// No storage code lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ecopickup/pooling/internal/domain"
)

// DefaultStoreTimeout bounds a single collaborator call when none is configured.
const DefaultStoreTimeout = 5 * time.Second

// withTimeout derives the context for one collaborator call.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

// unavailable marks a collaborator failure as retryable. Domain sentinels the
// store already attached (not found) pass through untouched.
func unavailable(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func utcNow() time.Time { return time.Now().UTC() }
