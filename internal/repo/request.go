// Package repo contains all persistence logic for pickup requests.
// RequestRepo is the narrow contract the pooling engine depends on; this
// package provides Postgres, Redis and in-memory implementations of it.
// No business logic lives here, only storage access and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/geo"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RequestRepo defines the persistence operations for pickup requests.
// The service layer depends on this interface, not on a concrete store,
// which allows the pooling engine to run against any backend or a fake.
type RequestRepo interface {
	// Save inserts a new request and returns the persisted record with its
	// store-generated ID.
	Save(ctx context.Context, req domain.PickupRequest) (domain.PickupRequest, error)

	// GetByID retrieves a single request.
	// Returns domain.ErrNotFound if no request with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error)

	// ListAll returns a snapshot of every request, oldest first.
	ListAll(ctx context.Context) ([]domain.PickupRequest, error)

	// ListPaged returns one page of requests matching f, newest first, and
	// the total number of matches.
	ListPaged(ctx context.Context, f domain.RequestFilter, p domain.PaginationParams) ([]domain.PickupRequest, int64, error)

	// UpdateStatus atomically applies upd to the request only if its current
	// status equals expected. It reports whether a record was changed; a
	// missing request or a status mismatch both return false with a nil error.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected domain.Status, upd domain.StatusUpdate) (bool, error)
}

// NearbyLister is implemented by stores that can narrow a radius query with a
// spatial index. The result is a superset of the waiting requests within
// radiusKm of (lat, lng), oldest first; callers still apply the exact distance check.
type NearbyLister interface {
	ListWaitingNear(ctx context.Context, lat, lng, radiusKm float64) ([]domain.PickupRequest, error)
}

// pgRequestRepo is the Postgres implementation of RequestRepo.
type pgRequestRepo struct {
	db db
}

// NewPostgresRequestRepo constructs a RequestRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewPostgresRequestRepo(db db) RequestRepo {
	return &pgRequestRepo{db: db}
}

const requestColumns = `id, user_id, address, item, quantity, add_on, lat, lng, status,
		created_at, pooled_at, pickup_time, completed_at`

// Save inserts a new request row and returns the full persisted record.
func (r *pgRequestRepo) Save(ctx context.Context, req domain.PickupRequest) (domain.PickupRequest, error) {
	const q = `
		INSERT INTO pickup_requests
			(user_id, address, item, quantity, add_on, lat, lng, geohash, cell, status, created_at)
		VALUES
			(@user_id, @address, @item, @quantity, @add_on, @lat, @lng, @geohash, @cell, @status, @created_at)
		RETURNING ` + requestColumns

	hash := geo.Geohash(req.Lat, req.Lng)
	args := pgx.NamedArgs{
		"user_id":    req.UserID,
		"address":    req.Address,
		"item":       req.Item,
		"quantity":   req.Quantity,
		"add_on":     req.AddOn,
		"lat":        req.Lat,
		"lng":        req.Lng,
		"geohash":    hash,
		"cell":       geo.Cell(hash),
		"status":     string(req.Status),
		"created_at": req.CreatedAt,
	}

	result, err := scanRequest(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.Save: %w", err)
	}
	return result, nil
}

// GetByID retrieves a request by primary key.
func (r *pgRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM pickup_requests WHERE id = @id`

	result, err := scanRequest(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListAll returns every request ordered by created_at ascending.
func (r *pgRequestRepo) ListAll(ctx context.Context) ([]domain.PickupRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM pickup_requests ORDER BY created_at, id`

	out, err := r.queryRequests(ctx, q, pgx.NamedArgs{})
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.ListAll: %w", err)
	}
	return out, nil
}

// ListWaitingNear narrows the scan to the geohash cells around the point.
// When the cells cannot cover the radius it returns every waiting request.
func (r *pgRequestRepo) ListWaitingNear(ctx context.Context, lat, lng, radiusKm float64) ([]domain.PickupRequest, error) {
	cells, ok := geo.CoveringCells(lat, lng, radiusKm)

	var (
		q    string
		args = pgx.NamedArgs{"status": string(domain.StatusWaiting)}
	)
	if ok {
		q = `SELECT ` + requestColumns + `
			FROM pickup_requests
			WHERE status = @status AND cell = ANY(@cells)
			ORDER BY created_at, id`
		args["cells"] = cells
	} else {
		q = `SELECT ` + requestColumns + `
			FROM pickup_requests
			WHERE status = @status
			ORDER BY created_at, id`
	}

	out, err := r.queryRequests(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.ListWaitingNear: %w", err)
	}
	return out, nil
}

// ListPaged returns one page of requests matching the filter, newest first.
func (r *pgRequestRepo) ListPaged(ctx context.Context, f domain.RequestFilter, p domain.PaginationParams) ([]domain.PickupRequest, int64, error) {
	const where = `
		WHERE (@status = '' OR status = @status)
		  AND (@user_id = '' OR user_id = @user_id)`

	args := pgx.NamedArgs{
		"status":  string(f.Status),
		"user_id": f.UserID,
		"limit":   p.Limit,
		"offset":  p.Offset(),
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM pickup_requests`+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.RequestRepo.ListPaged: count: %w", err)
	}

	q := `SELECT ` + requestColumns + ` FROM pickup_requests` + where + `
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	out, err := r.queryRequests(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RequestRepo.ListPaged: %w", err)
	}
	return out, total, nil
}

// UpdateStatus is a single conditional UPDATE, so concurrent callers racing
// on the same row see at most one success.
func (r *pgRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expected domain.Status, upd domain.StatusUpdate) (bool, error) {
	const q = `
		UPDATE pickup_requests
		SET status       = @status,
		    pooled_at    = COALESCE(@pooled_at, pooled_at),
		    pickup_time  = COALESCE(@pickup_time, pickup_time),
		    completed_at = COALESCE(@completed_at, completed_at),
		    updated_at   = now()
		WHERE id = @id AND status = @expected`

	args := pgx.NamedArgs{
		"id":           id,
		"expected":     string(expected),
		"status":       string(upd.Status),
		"pooled_at":    upd.PooledAt,
		"pickup_time":  upd.PickupTime,
		"completed_at": upd.CompletedAt,
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return false, fmt.Errorf("repo.RequestRepo.UpdateStatus: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgRequestRepo) queryRequests(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.PickupRequest, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PickupRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanRequest to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanRequest maps a single database row into a domain.PickupRequest.
// It handles the UUID, status and nullable timestamp conversions.
func scanRequest(s scanner) (domain.PickupRequest, error) {
	var (
		req         domain.PickupRequest
		id          pgtype.UUID
		status      string
		pooledAt    pgtype.Timestamptz
		pickupTime  pgtype.Timestamptz
		completedAt pgtype.Timestamptz
	)

	err := s.Scan(&id, &req.UserID, &req.Address, &req.Item, &req.Quantity, &req.AddOn,
		&req.Lat, &req.Lng, &status, &req.CreatedAt, &pooledAt, &pickupTime, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PickupRequest{}, domain.ErrNotFound
		}
		return domain.PickupRequest{}, err
	}

	req.ID = uuid.UUID(id.Bytes)
	req.Status = domain.Status(status)
	req.PooledAt = timestamptzPtr(pooledAt)
	req.PickupTime = timestamptzPtr(pickupTime)
	req.CompletedAt = timestamptzPtr(completedAt)

	return req, nil
}

func timestamptzPtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
