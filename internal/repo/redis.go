package repo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/geo"
)

// Redis key layout:
//
//	pickup:request:<id>       hash with the request fields
//	pickup:requests           sorted set of ids scored by creation time (µs)
//	pickup:waiting            set of ids currently waiting
//	pickup:waiting:cell:<c>   set of waiting ids in geohash cell c
const (
	keyRequestPrefix = "pickup:request:"
	keyAllRequests   = "pickup:requests"
	keyWaiting       = "pickup:waiting"
	keyWaitingCell   = "pickup:waiting:cell:"
)

// updateStatusScript performs the check-then-set of UpdateStatus in one step.
// KEYS[1] request hash, KEYS[2] waiting set.
// ARGV[1] expected status, ARGV[2] new status, ARGV[3] id, ARGV[4] cell key
// prefix, ARGV[5] cell precision, then field/value pairs.
var updateStatusScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2])
for i = 6, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
if ARGV[2] ~= 'waiting' then
	local hash = redis.call('HGET', KEYS[1], 'geohash')
	redis.call('SREM', KEYS[2], ARGV[3])
	redis.call('SREM', ARGV[4] .. string.sub(hash, 1, tonumber(ARGV[5])), ARGV[3])
end
return 1
`)

// redisRequestRepo stores each request as a Redis hash and keeps per-cell sets
// of waiting ids so radius queries only load nearby candidates.
type redisRequestRepo struct {
	client *redis.Client
}

// NewRedisRequestRepo constructs a RequestRepo backed by the given Redis client.
// The returned value also implements NearbyLister.
func NewRedisRequestRepo(client *redis.Client) RequestRepo {
	return &redisRequestRepo{client: client}
}

func requestKey(id uuid.UUID) string {
	return keyRequestPrefix + id.String()
}

func (r *redisRequestRepo) Save(ctx context.Context, req domain.PickupRequest) (domain.PickupRequest, error) {
	req.ID = uuid.New()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	hash := geo.Geohash(req.Lat, req.Lng)

	fields := map[string]interface{}{
		"id":         req.ID.String(),
		"user_id":    req.UserID,
		"address":    req.Address,
		"item":       req.Item,
		"quantity":   req.Quantity,
		"add_on":     req.AddOn,
		"lat":        strconv.FormatFloat(req.Lat, 'f', -1, 64),
		"lng":        strconv.FormatFloat(req.Lng, 'f', -1, 64),
		"geohash":    hash,
		"status":     string(req.Status),
		"created_at": req.CreatedAt.Format(time.RFC3339Nano),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, requestKey(req.ID), fields)
		pipe.ZAdd(ctx, keyAllRequests, &redis.Z{Score: float64(req.CreatedAt.UnixMicro()), Member: req.ID.String()})
		if req.Status == domain.StatusWaiting {
			pipe.SAdd(ctx, keyWaiting, req.ID.String())
			pipe.SAdd(ctx, keyWaitingCell+geo.Cell(hash), req.ID.String())
		}
		return nil
	})
	if err != nil {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.Save: %w", err)
	}
	return req, nil
}

func (r *redisRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error) {
	fields, err := r.client.HGetAll(ctx, requestKey(id)).Result()
	if err != nil {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", err)
	}
	if len(fields) == 0 {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", domain.ErrNotFound)
	}
	req, err := parseRequestHash(fields)
	if err != nil {
		return domain.PickupRequest{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", err)
	}
	return req, nil
}

func (r *redisRequestRepo) ListAll(ctx context.Context) ([]domain.PickupRequest, error) {
	ids, err := r.client.ZRange(ctx, keyAllRequests, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.ListAll: %w", err)
	}
	out, err := r.load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.ListAll: %w", err)
	}
	return out, nil
}

func (r *redisRequestRepo) ListWaitingNear(ctx context.Context, lat, lng, radiusKm float64) ([]domain.PickupRequest, error) {
	var (
		ids []string
		err error
	)
	if cells, ok := geo.CoveringCells(lat, lng, radiusKm); ok {
		keys := make([]string, len(cells))
		for i, c := range cells {
			keys[i] = keyWaitingCell + c
		}
		ids, err = r.client.SUnion(ctx, keys...).Result()
	} else {
		ids, err = r.client.SMembers(ctx, keyWaiting).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.ListWaitingNear: %w", err)
	}

	loaded, err := r.load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.ListWaitingNear: %w", err)
	}

	out := loaded[:0]
	for _, req := range loaded {
		if req.Status == domain.StatusWaiting {
			out = append(out, req)
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func (r *redisRequestRepo) ListPaged(ctx context.Context, f domain.RequestFilter, p domain.PaginationParams) ([]domain.PickupRequest, int64, error) {
	ids, err := r.client.ZRevRange(ctx, keyAllRequests, 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RequestRepo.ListPaged: %w", err)
	}
	all, err := r.load(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RequestRepo.ListPaged: %w", err)
	}

	var matched []domain.PickupRequest
	for _, req := range all {
		if f.Matches(req) {
			matched = append(matched, req)
		}
	}
	return page(matched, p), int64(len(matched)), nil
}

func (r *redisRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expected domain.Status, upd domain.StatusUpdate) (bool, error) {
	args := []interface{}{
		string(expected),
		string(upd.Status),
		id.String(),
		keyWaitingCell,
		geo.CellPrecision,
	}
	for field, ts := range map[string]*time.Time{
		"pooled_at":    upd.PooledAt,
		"pickup_time":  upd.PickupTime,
		"completed_at": upd.CompletedAt,
	} {
		if ts != nil {
			args = append(args, field, ts.UTC().Format(time.RFC3339Nano))
		}
	}

	n, err := updateStatusScript.Run(ctx, r.client, []string{requestKey(id), keyWaiting}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("repo.RequestRepo.UpdateStatus: %w", err)
	}
	return n == 1, nil
}

// load fetches the hashes for ids in one pipeline, preserving order and
// skipping ids whose hash has disappeared.
func (r *redisRequestRepo) load(ctx context.Context, ids []string) ([]domain.PickupRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringStringMapCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, keyRequestPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.PickupRequest, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		req, err := parseRequestHash(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// parseRequestHash maps the stored hash fields back into a domain.PickupRequest.
func parseRequestHash(fields map[string]string) (domain.PickupRequest, error) {
	var (
		req domain.PickupRequest
		err error
	)

	if req.ID, err = uuid.Parse(fields["id"]); err != nil {
		return domain.PickupRequest{}, fmt.Errorf("parse id: %w", err)
	}
	if req.Quantity, err = strconv.Atoi(fields["quantity"]); err != nil {
		return domain.PickupRequest{}, fmt.Errorf("parse quantity: %w", err)
	}
	if req.Lat, err = strconv.ParseFloat(fields["lat"], 64); err != nil {
		return domain.PickupRequest{}, fmt.Errorf("parse lat: %w", err)
	}
	if req.Lng, err = strconv.ParseFloat(fields["lng"], 64); err != nil {
		return domain.PickupRequest{}, fmt.Errorf("parse lng: %w", err)
	}
	if req.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return domain.PickupRequest{}, fmt.Errorf("parse created_at: %w", err)
	}

	req.UserID = fields["user_id"]
	req.Address = fields["address"]
	req.Item = fields["item"]
	req.AddOn = fields["add_on"]
	req.Status = domain.Status(fields["status"])

	for field, dst := range map[string]**time.Time{
		"pooled_at":    &req.PooledAt,
		"pickup_time":  &req.PickupTime,
		"completed_at": &req.CompletedAt,
	} {
		raw, ok := fields[field]
		if !ok || raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.PickupRequest{}, fmt.Errorf("parse %s: %w", field, err)
		}
		*dst = &t
	}

	return req, nil
}

func sortOldestFirst(reqs []domain.PickupRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID.String() < reqs[j].ID.String()
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
