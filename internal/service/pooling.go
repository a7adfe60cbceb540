package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/geo"
	"github.com/ecopickup/pooling/internal/repo"
)

const (
	// DefaultRadiusKm is the proximity radius used when none is configured.
	DefaultRadiusKm = 2.0

	// DefaultThreshold is the pool size used when none is configured.
	DefaultThreshold = 5

	// maxConcurrentTransitions caps in-flight conditional updates per pass.
	maxConcurrentTransitions = 8
)

// PoolPublisher announces pools formed by the evaluator.
type PoolPublisher interface {
	PublishPoolFormed(ctx context.Context, ev domain.PoolFormed) error
}

// PoolingConfig tunes the evaluator. Zero values fall back to the defaults.
type PoolingConfig struct {
	RadiusKm     float64
	Threshold    int
	StoreTimeout time.Duration
}

// PoolingService accepts new pickup requests and decides, after each one is
// saved, whether the waiting requests around it have become a pool.
//
// It keeps no state between calls. Concurrent evaluations that race on an
// overlapping neighbour set are reconciled by the store's conditional update:
// each request is moved to pooled by exactly one pass.
type PoolingService struct {
	repo      repo.RequestRepo
	publisher PoolPublisher
	radiusKm  float64
	threshold int
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPoolingService constructs a PoolingService. publisher may be nil.
func NewPoolingService(r repo.RequestRepo, publisher PoolPublisher, cfg PoolingConfig, logger *slog.Logger) *PoolingService {
	s := &PoolingService{
		repo:      r,
		publisher: publisher,
		radiusKm:  cfg.RadiusKm,
		threshold: cfg.Threshold,
		timeout:   cfg.StoreTimeout,
		logger:    orDiscard(logger),
		now:       utcNow,
	}
	if s.radiusKm <= 0 {
		s.radiusKm = DefaultRadiusKm
	}
	if s.threshold < 1 {
		s.threshold = DefaultThreshold
	}
	if s.timeout <= 0 {
		s.timeout = DefaultStoreTimeout
	}
	return s
}

// RadiusKm returns the configured proximity radius.
func (s *PoolingService) RadiusKm() float64 { return s.radiusKm }

// Threshold returns the configured pool size.
func (s *PoolingService) Threshold() int { return s.threshold }

// Submit validates and saves a new request, then runs a pooling pass around it.
//
// Returns domain.ErrValidation before anything is written if the submission is
// malformed, and domain.ErrUnavailable if the save itself failed. A failure
// after the save does not fail the submission: the request stays waiting and
// the result is marked EvaluationDeferred so a later pass can pick it up.
func (s *PoolingService) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	req, err := newPickupRequest(sub, s.now())
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	saveCtx, cancel := withTimeout(ctx, s.timeout)
	saved, err := s.repo.Save(saveCtx, req)
	cancel()
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("service.PoolingService.Submit: %w", unavailable(err))
	}

	// The request is committed; finish the pass even if the caller goes away.
	ev, err := s.Evaluate(context.WithoutCancel(ctx), saved.Lat, saved.Lng)
	if err != nil {
		s.logger.Warn("pooling evaluation deferred",
			"pickup_request_id", saved.ID,
			"error", err,
		)
		res := domain.SubmissionResult{
			Request:            saved,
			Status:             domain.StatusWaiting,
			EvaluationDeferred: true,
		}
		// A partly formed pool may already include this request.
		if slices.Contains(ev.Pooled, saved.ID) {
			res.Status = domain.StatusPooled
			res.PooledRequestIDs = ev.Pooled
		}
		return res, nil
	}

	result := domain.SubmissionResult{Request: saved, Status: domain.StatusWaiting}
	if ev.Formed {
		result.Status = domain.StatusPooled
		result.PooledRequestIDs = ev.Pooled
	}
	return result, nil
}

// Evaluate runs one pooling pass around (lat, lng): it snapshots the waiting
// requests within the radius and, when there are at least Threshold of them,
// moves them to pooled via FormPool.
//
// The snapshot may be stale by the requests submitted while it was read; the
// conditional update in FormPool keeps that from ever double-pooling.
func (s *PoolingService) Evaluate(ctx context.Context, lat, lng float64) (domain.Evaluation, error) {
	neighbors, err := s.neighbors(ctx, lat, lng)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("service.PoolingService.Evaluate: %w", err)
	}

	ev := domain.Evaluation{Neighbors: neighbors}
	if len(neighbors) < s.threshold {
		return ev, nil
	}

	ev.Formed = true
	pooledAt := s.now()
	ev.Pooled, err = s.formPool(ctx, neighbors, pooledAt)
	if err != nil {
		return ev, fmt.Errorf("service.PoolingService.Evaluate: %w", err)
	}

	if len(ev.Pooled) == 0 {
		s.logger.Debug("pool already formed by a concurrent pass", "neighbors", len(neighbors))
		return ev, nil
	}
	s.publish(ctx, domain.PoolFormed{
		RequestIDs: ev.Pooled,
		TriggerLat: lat,
		TriggerLng: lng,
		PooledAt:   pooledAt,
	})
	return ev, nil
}

// CountNearby reports how many waiting requests lie within the radius of
// (lat, lng), without changing anything.
func (s *PoolingService) CountNearby(ctx context.Context, lat, lng float64) (domain.NearbySummary, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return domain.NearbySummary{}, fmt.Errorf("%w: lat/lng out of range", domain.ErrValidation)
	}
	neighbors, err := s.neighbors(ctx, lat, lng)
	if err != nil {
		return domain.NearbySummary{}, fmt.Errorf("service.PoolingService.CountNearby: %w", err)
	}
	return domain.NearbySummary{
		Waiting:   len(neighbors),
		Threshold: s.threshold,
		RadiusKm:  s.radiusKm,
	}, nil
}

// FormPool moves every member still waiting to pooled, stamping one shared
// pooledAt. It returns the ids it actually moved, in member order. Members a
// concurrent pass already moved are skipped without error, so running it twice
// over the same set moves nothing the second time.
//
// Each member is updated independently; if one update fails the others are
// still attempted and whatever was moved stays moved.
func (s *PoolingService) FormPool(ctx context.Context, members []domain.PickupRequest) ([]uuid.UUID, error) {
	moved, err := s.formPool(ctx, members, s.now())
	if err != nil {
		return moved, fmt.Errorf("service.PoolingService.FormPool: %w", err)
	}
	return moved, nil
}

func (s *PoolingService) formPool(ctx context.Context, members []domain.PickupRequest, pooledAt time.Time) ([]uuid.UUID, error) {
	ok := make([]bool, len(members))

	var g errgroup.Group
	g.SetLimit(maxConcurrentTransitions)
	for i, m := range members {
		i, m := i, m
		if m.Status != domain.StatusWaiting {
			continue
		}
		g.Go(func() error {
			moved, err := s.pool(ctx, m.ID, pooledAt)
			if err != nil {
				return fmt.Errorf("pool %s: %w", m.ID, err)
			}
			ok[i] = moved
			return nil
		})
	}
	err := g.Wait()

	moved := make([]uuid.UUID, 0, len(members))
	for i, m := range members {
		if ok[i] {
			moved = append(moved, m.ID)
		}
	}
	return moved, err
}

// pool is the only place a request moves from waiting to pooled.
func (s *PoolingService) pool(ctx context.Context, id uuid.UUID, pooledAt time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	moved, err := s.repo.UpdateStatus(ctx, id, domain.StatusWaiting, domain.StatusUpdate{
		Status:   domain.StatusPooled,
		PooledAt: &pooledAt,
	})
	if err != nil {
		return false, unavailable(err)
	}
	return moved, nil
}

// neighbors returns the waiting requests within the radius of (lat, lng),
// oldest first. The store may narrow the read with a spatial index; the exact
// distance check always happens here.
func (s *PoolingService) neighbors(ctx context.Context, lat, lng float64) ([]domain.PickupRequest, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		snapshot []domain.PickupRequest
		err      error
	)
	if nl, ok := s.repo.(repo.NearbyLister); ok {
		snapshot, err = nl.ListWaitingNear(ctx, lat, lng, s.radiusKm)
	} else {
		snapshot, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, unavailable(err)
	}

	out := make([]domain.PickupRequest, 0, len(snapshot))
	for _, r := range snapshot {
		if r.Status != domain.StatusWaiting {
			continue
		}
		if geo.HaversineKm(lat, lng, r.Lat, r.Lng) <= s.radiusKm {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *PoolingService) publish(ctx context.Context, ev domain.PoolFormed) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.publisher.PublishPoolFormed(ctx, ev); err != nil {
		s.logger.Warn("publish pool formed",
			"request_ids", ev.RequestIDs,
			"error", err,
		)
		return
	}
	s.logger.Info("pool formed", "size", len(ev.RequestIDs), "lat", ev.TriggerLat, "lng", ev.TriggerLng)
}

// newPickupRequest validates a submission and builds the waiting request to save.
//   - A location fix is required and must be a valid coordinate.
//   - Quantity must be at least 1.
//   - Address and item must be non-blank.
//   - A blank user id is recorded as domain.AnonymousUserID.
func newPickupRequest(sub domain.Submission, now time.Time) (domain.PickupRequest, error) {
	if sub.Lat == nil || sub.Lng == nil {
		return domain.PickupRequest{}, fmt.Errorf("%w: location fix is required", domain.ErrValidation)
	}
	if !geo.ValidCoordinate(*sub.Lat, *sub.Lng) {
		return domain.PickupRequest{}, fmt.Errorf("%w: lat/lng out of range", domain.ErrValidation)
	}
	if sub.Quantity < 1 {
		return domain.PickupRequest{}, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}
	address := strings.TrimSpace(sub.Address)
	if address == "" {
		return domain.PickupRequest{}, fmt.Errorf("%w: address is required", domain.ErrValidation)
	}
	item := strings.TrimSpace(sub.Item)
	if item == "" {
		return domain.PickupRequest{}, fmt.Errorf("%w: item is required", domain.ErrValidation)
	}
	user := strings.TrimSpace(sub.UserID)
	if user == "" {
		user = domain.AnonymousUserID
	}

	return domain.PickupRequest{
		UserID:    user,
		Address:   address,
		Item:      item,
		Quantity:  sub.Quantity,
		AddOn:     strings.TrimSpace(sub.AddOn),
		Lat:       *sub.Lat,
		Lng:       *sub.Lng,
		Status:    domain.StatusWaiting,
		CreatedAt: now,
	}, nil
}
