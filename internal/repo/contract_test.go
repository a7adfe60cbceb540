package repo_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/repo"
)

// repoFactory returns a fresh, empty store for one subtest.
type repoFactory func(t *testing.T) repo.RequestRepo

// requestFixture returns a waiting request in central Kuala Lumpur.
// Callers can override individual fields after calling this function.
func requestFixture() domain.PickupRequest {
	return domain.PickupRequest{
		UserID:    "user-1",
		Address:   "Jalan Ampang, Kuala Lumpur",
		Item:      "Old laptop",
		Quantity:  1,
		Lat:       3.1390,
		Lng:       101.6869,
		Status:    domain.StatusWaiting,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// runContract exercises the RequestRepo contract shared by every backend.
// Set concurrent to false for stores bound to a single connection (pgx.Tx),
// which cannot be shared between goroutines.
func runContract(t *testing.T, newRepo repoFactory, concurrent bool) {
	t.Run("Save assigns an id and round-trips fields", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		input := requestFixture()
		input.AddOn = "charger"
		got, err := r.Save(ctx, input)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, got.ID)

		fetched, err := r.GetByID(ctx, got.ID)
		require.NoError(t, err)
		assert.Equal(t, input.UserID, fetched.UserID)
		assert.Equal(t, input.Address, fetched.Address)
		assert.Equal(t, input.Item, fetched.Item)
		assert.Equal(t, input.Quantity, fetched.Quantity)
		assert.Equal(t, "charger", fetched.AddOn)
		assert.InDelta(t, input.Lat, fetched.Lat, 1e-12)
		assert.InDelta(t, input.Lng, fetched.Lng, 1e-12)
		assert.Equal(t, domain.StatusWaiting, fetched.Status)
		assert.True(t, fetched.CreatedAt.Equal(input.CreatedAt), "CreatedAt mismatch")
		assert.Nil(t, fetched.PooledAt)
	})

	t.Run("GetByID unknown id returns ErrNotFound", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.GetByID(context.Background(), uuid.New())

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListAll returns oldest first", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Microsecond)
		var want []uuid.UUID
		for i := 0; i < 3; i++ {
			in := requestFixture()
			in.CreatedAt = base.Add(time.Duration(i) * time.Second)
			saved, err := r.Save(ctx, in)
			require.NoError(t, err)
			want = append(want, saved.ID)
		}

		all, err := r.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, req := range all {
			assert.Equal(t, want[i], req.ID)
		}
	})

	t.Run("UpdateStatus applies only when status matches", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		saved, err := r.Save(ctx, requestFixture())
		require.NoError(t, err)

		pooledAt := time.Now().UTC().Truncate(time.Microsecond)
		ok, err := r.UpdateStatus(ctx, saved.ID, domain.StatusWaiting,
			domain.StatusUpdate{Status: domain.StatusPooled, PooledAt: &pooledAt})
		require.NoError(t, err)
		assert.True(t, ok)

		// Second attempt from waiting matches nothing and is not an error.
		ok, err = r.UpdateStatus(ctx, saved.ID, domain.StatusWaiting,
			domain.StatusUpdate{Status: domain.StatusPooled, PooledAt: &pooledAt})
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := r.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPooled, got.Status)
		require.NotNil(t, got.PooledAt)
		assert.True(t, got.PooledAt.Equal(pooledAt))
	})

	t.Run("UpdateStatus on unknown id reports false", func(t *testing.T) {
		r := newRepo(t)

		ok, err := r.UpdateStatus(context.Background(), uuid.New(), domain.StatusWaiting,
			domain.StatusUpdate{Status: domain.StatusPooled})

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("UpdateStatus keeps earlier timestamps", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		saved, err := r.Save(ctx, requestFixture())
		require.NoError(t, err)

		pooledAt := time.Now().UTC().Truncate(time.Microsecond)
		_, err = r.UpdateStatus(ctx, saved.ID, domain.StatusWaiting,
			domain.StatusUpdate{Status: domain.StatusPooled, PooledAt: &pooledAt})
		require.NoError(t, err)

		pickup := pooledAt.Add(24 * time.Hour)
		ok, err := r.UpdateStatus(ctx, saved.ID, domain.StatusPooled,
			domain.StatusUpdate{Status: domain.StatusAssigned, PickupTime: &pickup})
		require.NoError(t, err)
		require.True(t, ok)

		got, err := r.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got.PooledAt)
		require.NotNil(t, got.PickupTime)
		assert.True(t, got.PooledAt.Equal(pooledAt))
		assert.True(t, got.PickupTime.Equal(pickup))
	})

	t.Run("concurrent UpdateStatus has a single winner", func(t *testing.T) {
		if !concurrent {
			t.Skip("store is bound to a single connection")
		}
		r := newRepo(t)
		ctx := context.Background()

		saved, err := r.Save(ctx, requestFixture())
		require.NoError(t, err)

		assert.Equal(t, int32(1), raceToPool(t, r, saved.ID))
	})

	t.Run("ListWaitingNear returns nearby waiting requests only", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		lister, ok := r.(repo.NearbyLister)
		require.True(t, ok, "backend should implement NearbyLister")

		near, err := r.Save(ctx, requestFixture())
		require.NoError(t, err)

		far := requestFixture()
		far.Lat += 0.09 // ~10 km north
		_, err = r.Save(ctx, far)
		require.NoError(t, err)

		pooled, err := r.Save(ctx, requestFixture())
		require.NoError(t, err)
		_, err = r.UpdateStatus(ctx, pooled.ID, domain.StatusWaiting, domain.StatusUpdate{Status: domain.StatusPooled})
		require.NoError(t, err)

		got, err := lister.ListWaitingNear(ctx, 3.1390, 101.6869, 2.0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, near.ID, got[0].ID)
	})

	t.Run("ListPaged filters and counts", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := r.Save(ctx, requestFixture())
			require.NoError(t, err)
		}
		other := requestFixture()
		other.UserID = "user-2"
		_, err := r.Save(ctx, other)
		require.NoError(t, err)

		got, total, err := r.ListPaged(ctx, domain.RequestFilter{UserID: "user-1"}, domain.PaginationParams{Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, got, 2)

		got, total, err = r.ListPaged(ctx, domain.RequestFilter{Status: domain.StatusPooled}, domain.PaginationParams{Page: 1, Limit: 20})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, got)
	})

	t.Run("ListPaged far past the end is empty", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		_, err := r.Save(ctx, requestFixture())
		require.NoError(t, err)

		huge := math.MaxInt64 / 10
		var (
			got   []domain.PickupRequest
			total int64
		)
		require.NotPanics(t, func() {
			got, total, err = r.ListPaged(ctx, domain.RequestFilter{}, domain.NewPaginationParams(&huge, nil))
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Empty(t, got)
	})
}

// raceToPool fires several concurrent waiting->pooled updates at one request
// and returns how many of them reported success.
func raceToPool(t *testing.T, r repo.RequestRepo, id uuid.UUID) int32 {
	t.Helper()

	var (
		wins int32
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := time.Now().UTC()
			ok, err := r.UpdateStatus(context.Background(), id, domain.StatusWaiting,
				domain.StatusUpdate{Status: domain.StatusPooled, PooledAt: &now})
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	return wins
}
