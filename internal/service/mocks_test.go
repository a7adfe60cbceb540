package service_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/repo"
	"github.com/ecopickup/pooling/internal/service"
)

// faultyRepo wraps a real store and lets a test replace individual methods.
// It deliberately does not expose ListWaitingNear, so the evaluator falls back
// to ListAll when running against it.
type faultyRepo struct {
	repo.RequestRepo

	save         func(ctx context.Context, req domain.PickupRequest) (domain.PickupRequest, error)
	listAll      func(ctx context.Context) ([]domain.PickupRequest, error)
	updateStatus func(ctx context.Context, id uuid.UUID, expected domain.Status, upd domain.StatusUpdate) (bool, error)
}

func (f *faultyRepo) Save(ctx context.Context, req domain.PickupRequest) (domain.PickupRequest, error) {
	if f.save != nil {
		return f.save(ctx, req)
	}
	return f.RequestRepo.Save(ctx, req)
}

func (f *faultyRepo) ListAll(ctx context.Context) ([]domain.PickupRequest, error) {
	if f.listAll != nil {
		return f.listAll(ctx)
	}
	return f.RequestRepo.ListAll(ctx)
}

func (f *faultyRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expected domain.Status, upd domain.StatusUpdate) (bool, error) {
	if f.updateStatus != nil {
		return f.updateStatus(ctx, id, expected, upd)
	}
	return f.RequestRepo.UpdateStatus(ctx, id, expected, upd)
}

var _ repo.RequestRepo = (*faultyRepo)(nil)

// recordingPublisher captures every PoolFormed event it is handed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PoolFormed
	err    error
}

func (p *recordingPublisher) PublishPoolFormed(_ context.Context, ev domain.PoolFormed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) published() []domain.PoolFormed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PoolFormed(nil), p.events...)
}

var _ service.PoolPublisher = (*recordingPublisher)(nil)

// mockObjectStore is a hand-written test double for service.ObjectStore.
type mockObjectStore struct {
	put        func(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	exists     func(ctx context.Context, key string) (bool, error)
	presignGet func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func (m *mockObjectStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return m.put(ctx, key, body, size, contentType)
}
func (m *mockObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	return m.exists(ctx, key)
}
func (m *mockObjectStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return m.presignGet(ctx, key, ttl)
}

var _ service.ObjectStore = (*mockObjectStore)(nil)

// mockClassifier is a hand-written test double for service.ItemClassifier.
type mockClassifier struct {
	classifyItem func(ctx context.Context, img domain.ItemImage) (domain.ItemDescription, error)
}

func (m *mockClassifier) ClassifyItem(ctx context.Context, img domain.ItemImage) (domain.ItemDescription, error) {
	return m.classifyItem(ctx, img)
}

var _ service.ItemClassifier = (*mockClassifier)(nil)
