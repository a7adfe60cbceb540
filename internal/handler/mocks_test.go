package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/handler"
)

// mockPooling is a test double for handler.PoolingServicer.
// Set only the method fields your test needs.
type mockPooling struct {
	submit      func(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error)
	countNearby func(ctx context.Context, lat, lng float64) (domain.NearbySummary, error)
}

func (m *mockPooling) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	return m.submit(ctx, sub)
}
func (m *mockPooling) CountNearby(ctx context.Context, lat, lng float64) (domain.NearbySummary, error) {
	return m.countNearby(ctx, lat, lng)
}

var _ handler.PoolingServicer = (*mockPooling)(nil)

// mockLifecycle is a test double for handler.LifecycleServicer.
type mockLifecycle struct {
	get      func(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error)
	list     func(ctx context.Context, f domain.RequestFilter, p domain.PaginationParams) ([]domain.PickupRequest, int64, error)
	assign   func(ctx context.Context, id uuid.UUID, pickupTime time.Time) (domain.PickupRequest, error)
	complete func(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error)
	history  func(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error)
}

func (m *mockLifecycle) Get(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error) {
	return m.get(ctx, id)
}
func (m *mockLifecycle) List(ctx context.Context, f domain.RequestFilter, p domain.PaginationParams) ([]domain.PickupRequest, int64, error) {
	return m.list(ctx, f, p)
}
func (m *mockLifecycle) Assign(ctx context.Context, id uuid.UUID, pickupTime time.Time) (domain.PickupRequest, error) {
	return m.assign(ctx, id, pickupTime)
}
func (m *mockLifecycle) Complete(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error) {
	return m.complete(ctx, id)
}
func (m *mockLifecycle) History(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error) {
	return m.history(ctx, id)
}

var _ handler.LifecycleServicer = (*mockLifecycle)(nil)

// mockPhotos is a test double for handler.PhotoServicer.
type mockPhotos struct {
	upload func(ctx context.Context, id uuid.UUID, contentType string, body io.Reader) (domain.Photo, error)
	link   func(ctx context.Context, id uuid.UUID) (domain.PhotoLink, error)
}

func (m *mockPhotos) Upload(ctx context.Context, id uuid.UUID, contentType string, body io.Reader) (domain.Photo, error) {
	return m.upload(ctx, id, contentType, body)
}
func (m *mockPhotos) Link(ctx context.Context, id uuid.UUID) (domain.PhotoLink, error) {
	return m.link(ctx, id)
}

var _ handler.PhotoServicer = (*mockPhotos)(nil)

// mockItems is a test double for handler.ItemServicer.
type mockItems struct {
	classify func(ctx context.Context, contentType, name string, body io.Reader) (domain.ItemDescription, error)
}

func (m *mockItems) Classify(ctx context.Context, contentType, name string, body io.Reader) (domain.ItemDescription, error) {
	return m.classify(ctx, contentType, name, body)
}

var _ handler.ItemServicer = (*mockItems)(nil)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mocks into a chi router,
// the same way main.go does.
func newHTTPHandler(p handler.PoolingServicer, l handler.LifecycleServicer, photos handler.PhotoServicer) http.Handler {
	return handler.NewServer(p, l, handler.Options{Photos: photos}).Handler()
}

func requestFixture() domain.PickupRequest {
	pooledAt := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	return domain.PickupRequest{
		ID:        uuid.New(),
		UserID:    "user-1",
		Address:   "Jalan Sultan Ismail",
		Item:      "laptop",
		Quantity:  2,
		AddOn:     "charger",
		Lat:       3.139,
		Lng:       101.6869,
		Status:    domain.StatusPooled,
		CreatedAt: pooledAt.Add(-time.Hour),
		PooledAt:  &pooledAt,
	}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, body io.Reader) handler.ErrorDetail {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error
}
