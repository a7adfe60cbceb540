package repo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/google/uuid"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/geo"
)

// pointTolerance is the half-side of the tiny rectangle each request occupies in the R-tree.
const pointTolerance = 1e-9

// indexedRequest places a request in the R-tree as a point in (lat, lng) space.
type indexedRequest struct {
	id    uuid.UUID
	seq   int
	point rtreego.Point
}

func (ir *indexedRequest) Bounds() rtreego.Rect {
	return ir.point.ToRect(pointTolerance)
}

// memoryRequestRepo keeps requests in process memory with an R-tree over
// their locations. It backs the "memory" store backend and the service tests.
type memoryRequestRepo struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*domain.PickupRequest
	order []uuid.UUID
	index *rtreego.Rtree
	now   func() time.Time
}

// NewMemoryRequestRepo constructs an empty in-memory RequestRepo.
// The returned value also implements NearbyLister.
func NewMemoryRequestRepo() RequestRepo {
	return &memoryRequestRepo{
		byID:  make(map[uuid.UUID]*domain.PickupRequest),
		index: rtreego.NewTree(2, 25, 50),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRequestRepo) Save(ctx context.Context, req domain.PickupRequest) (domain.PickupRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.Save: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	req.ID = uuid.New()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = r.now()
	}
	stored := req
	r.byID[req.ID] = &stored

	item := &indexedRequest{id: req.ID, seq: len(r.order), point: rtreego.Point{req.Lat, req.Lng}}
	r.order = append(r.order, req.ID)
	r.index.Insert(item)

	return stored, nil
}

func (r *memoryRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.byID[id]
	if !ok {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", domain.ErrNotFound)
	}
	return *req, nil
}

func (r *memoryRequestRepo) ListAll(ctx context.Context) ([]domain.PickupRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.ListAll: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PickupRequest, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out, nil
}

// ListWaitingNear queries the R-tree with a square around the point wide
// enough to hold the search box, then trims to the box itself.
func (r *memoryRequestRepo) ListWaitingNear(ctx context.Context, lat, lng, radiusKm float64) ([]domain.PickupRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.ListWaitingNear: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	box, ok := geo.SearchBox(lat, lng, radiusKm)
	if !ok {
		var out []domain.PickupRequest
		for _, id := range r.order {
			if req := r.byID[id]; req.Status == domain.StatusWaiting {
				out = append(out, *req)
			}
		}
		return out, nil
	}

	half := math.Max(box.MaxLat-lat, box.MaxLng-lng)
	hits := r.index.SearchIntersect(rtreego.Point{lat, lng}.ToRect(half))

	matched := make([]*indexedRequest, 0, len(hits))
	for _, hit := range hits {
		item := hit.(*indexedRequest)
		req := r.byID[item.id]
		if req.Status == domain.StatusWaiting && box.Contains(req.Lat, req.Lng) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]domain.PickupRequest, 0, len(matched))
	for _, item := range matched {
		out = append(out, *r.byID[item.id])
	}
	return out, nil
}

func (r *memoryRequestRepo) ListPaged(ctx context.Context, f domain.RequestFilter, p domain.PaginationParams) ([]domain.PickupRequest, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.RequestRepo.ListPaged: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.PickupRequest
	for i := len(r.order) - 1; i >= 0; i-- {
		if req := r.byID[r.order[i]]; f.Matches(*req) {
			matched = append(matched, *req)
		}
	}
	return page(matched, p), int64(len(matched)), nil
}

func (r *memoryRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expected domain.Status, upd domain.StatusUpdate) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("repo.RequestRepo.UpdateStatus: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[id]
	if !ok || req.Status != expected {
		return false, nil
	}
	applyUpdate(req, upd)
	return true, nil
}

// applyUpdate copies the status and any non-nil timestamps from upd onto req.
func applyUpdate(req *domain.PickupRequest, upd domain.StatusUpdate) {
	req.Status = upd.Status
	if upd.PooledAt != nil {
		t := *upd.PooledAt
		req.PooledAt = &t
	}
	if upd.PickupTime != nil {
		t := *upd.PickupTime
		req.PickupTime = &t
	}
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		req.CompletedAt = &t
	}
}

// page returns the slice of reqs selected by p.
func page(reqs []domain.PickupRequest, p domain.PaginationParams) []domain.PickupRequest {
	start, end := p.Window(len(reqs))
	return reqs[start:end:end]
}
