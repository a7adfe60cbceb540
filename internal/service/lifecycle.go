package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/repo"
)

// LifecycleService drives a request past pooled: operator assignment and
// completion, plus the read side (fetch, list, history).
// It never moves a request into or out of waiting.
type LifecycleService struct {
	repo    repo.RequestRepo
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewLifecycleService constructs a LifecycleService backed by the provided RequestRepo.
func NewLifecycleService(r repo.RequestRepo, storeTimeout time.Duration, logger *slog.Logger) *LifecycleService {
	return &LifecycleService{
		repo:    r,
		timeout: storeTimeout,
		logger:  orDiscard(logger),
		now:     utcNow,
	}
}

// Get returns a single request.
// Returns domain.ErrNotFound if it does not exist.
func (s *LifecycleService) Get(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error) {
	req, err := s.get(ctx, id)
	if err != nil {
		return domain.PickupRequest{}, fmt.Errorf("service.LifecycleService.Get: %w", err)
	}
	return req, nil
}

// List returns one page of requests matching f and the total match count.
// Always returns a non-nil slice so callers can safely range over it.
func (s *LifecycleService) List(ctx context.Context, f domain.RequestFilter, p domain.PaginationParams) ([]domain.PickupRequest, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, f.Status)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	reqs, total, err := s.repo.ListPaged(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.LifecycleService.List: %w", unavailable(err))
	}
	if reqs == nil {
		reqs = []domain.PickupRequest{}
	}
	return reqs, total, nil
}

// Assign records the operator's scheduled pickup time and moves a pooled
// request to assigned.
// Returns domain.ErrInvalidTransition unless the request is pooled, and
// domain.ErrConflict if it changed status while being assigned.
func (s *LifecycleService) Assign(ctx context.Context, id uuid.UUID, pickupTime time.Time) (domain.PickupRequest, error) {
	if pickupTime.IsZero() {
		return domain.PickupRequest{}, fmt.Errorf("%w: pickup_time is required", domain.ErrValidation)
	}
	pickupTime = pickupTime.UTC()

	req, err := s.advance(ctx, id, domain.StatusUpdate{
		Status:     domain.StatusAssigned,
		PickupTime: &pickupTime,
	})
	if err != nil {
		return domain.PickupRequest{}, fmt.Errorf("service.LifecycleService.Assign: %w", err)
	}
	return req, nil
}

// Complete marks an assigned request as collected.
// Returns domain.ErrInvalidTransition unless the request is assigned, and
// domain.ErrConflict if it changed status while being completed.
func (s *LifecycleService) Complete(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error) {
	completedAt := s.now()

	req, err := s.advance(ctx, id, domain.StatusUpdate{
		Status:      domain.StatusCompleted,
		CompletedAt: &completedAt,
	})
	if err != nil {
		return domain.PickupRequest{}, fmt.Errorf("service.LifecycleService.Complete: %w", err)
	}
	return req, nil
}

// History returns the recorded lifecycle steps of a request, oldest first.
func (s *LifecycleService) History(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error) {
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.LifecycleService.History: %w", err)
	}
	return req.History(), nil
}

// advance applies upd if it is the next forward step from the request's
// current status. The store re-checks that status atomically.
func (s *LifecycleService) advance(ctx context.Context, id uuid.UUID, upd domain.StatusUpdate) (domain.PickupRequest, error) {
	cur, err := s.get(ctx, id)
	if err != nil {
		return domain.PickupRequest{}, err
	}
	if upd.Status == domain.StatusPooled || !cur.Status.CanTransitionTo(upd.Status) {
		return domain.PickupRequest{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur.Status, upd.Status)
	}

	updCtx, cancel := withTimeout(ctx, s.timeout)
	moved, err := s.repo.UpdateStatus(updCtx, id, cur.Status, upd)
	cancel()
	if err != nil {
		return domain.PickupRequest{}, unavailable(err)
	}
	if !moved {
		return domain.PickupRequest{}, fmt.Errorf("%w: request %s left %s", domain.ErrConflict, id, cur.Status)
	}

	s.logger.Info("pickup request advanced",
		"pickup_request_id", id,
		"from", cur.Status,
		"to", upd.Status,
	)
	return s.get(ctx, id)
}

func (s *LifecycleService) get(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.PickupRequest{}, unavailable(err)
	}
	return req, nil
}
