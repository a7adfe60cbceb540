package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/repo"
	"github.com/ecopickup/pooling/internal/service"
)

// pooledRequest seeds a full cluster and pools it, returning one member.
func pooledRequest(t *testing.T, r repo.RequestRepo) domain.PickupRequest {
	t.Helper()
	members := seedCluster(t, r, 5)
	_, err := newPoolingService(r).FormPool(context.Background(), members)
	require.NoError(t, err)
	got, err := r.GetByID(context.Background(), members[0].ID)
	require.NoError(t, err)
	return got
}

func TestLifecycleService_AssignThenComplete(t *testing.T) {
	r := repo.NewMemoryRequestRepo()
	svc := service.NewLifecycleService(r, 0, nil)
	ctx := context.Background()
	req := pooledRequest(t, r)
	pickup := time.Date(2026, 11, 2, 9, 30, 0, 0, time.UTC)

	assigned, err := svc.Assign(ctx, req.ID, pickup)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, assigned.Status)
	require.NotNil(t, assigned.PickupTime)
	assert.True(t, pickup.Equal(*assigned.PickupTime))
	assert.NotNil(t, assigned.PooledAt, "earlier timestamps are kept")

	completed, err := svc.Complete(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	history, err := svc.History(ctx, req.ID)
	require.NoError(t, err)
	var steps []domain.Status
	for _, h := range history {
		steps = append(steps, h.Status)
	}
	assert.Equal(t, []domain.Status{
		domain.StatusWaiting, domain.StatusPooled, domain.StatusAssigned, domain.StatusCompleted,
	}, steps)
}

func TestLifecycleService_rejectsOutOfOrderSteps(t *testing.T) {
	r := repo.NewMemoryRequestRepo()
	svc := service.NewLifecycleService(r, 0, nil)
	ctx := context.Background()
	waiting := seedCluster(t, r, 1)[0]
	pickup := time.Now().Add(time.Hour)

	_, err := svc.Assign(ctx, waiting.ID, pickup)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "waiting cannot skip pooled")

	_, err = svc.Complete(ctx, waiting.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	pooled := pooledRequest(t, r)
	_, err = svc.Complete(ctx, pooled.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pooled cannot skip assigned")

	_, err = svc.Assign(ctx, pooled.ID, pickup)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, pooled.ID, pickup)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "assigned cannot be assigned again")

	_, err = svc.Complete(ctx, pooled.ID)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, pooled.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "completed is terminal")

	assert.Equal(t, domain.StatusWaiting, statusOf(t, r, waiting.ID))
}

func TestLifecycleService_Assign_requiresPickupTime(t *testing.T) {
	r := repo.NewMemoryRequestRepo()
	svc := service.NewLifecycleService(r, 0, nil)

	_, err := svc.Assign(context.Background(), pooledRequest(t, r).ID, time.Time{})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLifecycleService_lostRaceIsConflict(t *testing.T) {
	inner := repo.NewMemoryRequestRepo()
	req := pooledRequest(t, inner)
	r := &faultyRepo{
		RequestRepo: inner,
		updateStatus: func(context.Context, uuid.UUID, domain.Status, domain.StatusUpdate) (bool, error) {
			return false, nil
		},
	}
	svc := service.NewLifecycleService(r, 0, nil)

	_, err := svc.Assign(context.Background(), req.ID, time.Now())

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLifecycleService_storeFailureIsUnavailable(t *testing.T) {
	inner := repo.NewMemoryRequestRepo()
	req := pooledRequest(t, inner)
	r := &faultyRepo{
		RequestRepo: inner,
		updateStatus: func(context.Context, uuid.UUID, domain.Status, domain.StatusUpdate) (bool, error) {
			return false, errors.New("connection refused")
		},
	}
	svc := service.NewLifecycleService(r, 0, nil)

	_, err := svc.Assign(context.Background(), req.ID, time.Now())

	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestLifecycleService_unknownRequest(t *testing.T) {
	svc := service.NewLifecycleService(repo.NewMemoryRequestRepo(), 0, nil)
	ctx := context.Background()
	id := uuid.New()

	_, err := svc.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrUnavailable)

	_, err = svc.History(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Assign(ctx, id, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLifecycleService_List(t *testing.T) {
	r := repo.NewMemoryRequestRepo()
	svc := service.NewLifecycleService(r, 0, nil)
	ctx := context.Background()
	seedCluster(t, r, 2)
	pooledRequest(t, r)

	waiting, total, err := svc.List(ctx, domain.RequestFilter{Status: domain.StatusWaiting}, domain.NewPaginationParams(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, waiting, 2)

	none, total, err := svc.List(ctx, domain.RequestFilter{UserID: "nobody"}, domain.NewPaginationParams(nil, nil))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, none)

	_, _, err = svc.List(ctx, domain.RequestFilter{Status: "lost"}, domain.NewPaginationParams(nil, nil))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
