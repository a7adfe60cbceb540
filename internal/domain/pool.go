package domain

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation is the outcome of one pooling pass around a trigger location.
// Neighbors are the waiting requests found within the radius (trigger included).
// Pooled holds the ids this pass actually moved to pooled; it is empty when the
// threshold was not reached or a concurrent pass got there first.
type Evaluation struct {
	Neighbors []PickupRequest
	Pooled    []uuid.UUID
	Formed    bool
}

// PoolFormed is emitted after a pass moves a cluster of requests to pooled.
// A pool has no identity of its own beyond this set of ids.
type PoolFormed struct {
	RequestIDs []uuid.UUID `json:"request_ids"`
	TriggerLat float64     `json:"trigger_lat"`
	TriggerLng float64     `json:"trigger_lng"`
	PooledAt   time.Time   `json:"pooled_at"`
}

// NearbySummary is a read-only preview of how close a location is to pooling.
type NearbySummary struct {
	Waiting   int     `json:"waiting"`
	Threshold int     `json:"threshold"`
	RadiusKm  float64 `json:"radius_km"`
}
