// Package domain contains the core data types for the pickup pooling service.
// Apart from uuid it has no external dependencies and is imported by every
// other internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousUserID is recorded as the owner of requests submitted without an identity.
const AnonymousUserID = "anonymous"

// PickupRequest is one user's request to have e-waste collected at a location.
// Requests are never deleted; they stay as a historical record once completed.
type PickupRequest struct {
	ID       uuid.UUID `json:"id"` // uuid.Nil until persisted
	UserID   string    `json:"user_id"`
	Address  string    `json:"address"`
	Item     string    `json:"item"`
	Quantity int       `json:"quantity"`
	AddOn    string    `json:"add_on,omitempty"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Status   Status    `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	PooledAt    *time.Time `json:"pooled_at,omitempty"`
	PickupTime  *time.Time `json:"pickup_time,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Submission is the caller-supplied payload for a new pickup request.
// Lat and Lng are pointers so a missing location fix can be told apart from (0,0).
type Submission struct {
	UserID   string
	Address  string
	Item     string
	Quantity int
	AddOn    string
	Lat      *float64
	Lng      *float64
}

// SubmissionResult is returned to the submitter for immediate feedback.
// PooledRequestIDs is only populated when this submission formed a pool.
// EvaluationDeferred is true when the request was saved but the pooling pass
// failed; a later submission nearby will re-count it.
type SubmissionResult struct {
	Request            PickupRequest
	Status             Status
	PooledRequestIDs   []uuid.UUID
	EvaluationDeferred bool
}

// StatusUpdate carries the new status and the timestamp fields that travel with it.
// Nil timestamps leave the stored value untouched.
type StatusUpdate struct {
	Status      Status
	PooledAt    *time.Time
	PickupTime  *time.Time
	CompletedAt *time.Time
}

// RequestFilter narrows list queries. Zero values mean "no filter".
type RequestFilter struct {
	Status Status
	UserID string
}

// Matches reports whether r passes the filter.
func (f RequestFilter) Matches(r PickupRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	return true
}

// HistoryEntry is one recorded step in a request's lifecycle.
type HistoryEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// History reconstructs the lifecycle steps of r from its recorded timestamps,
// oldest first. Steps without a timestamp are omitted.
func (r PickupRequest) History() []HistoryEntry {
	entries := []HistoryEntry{{Status: StatusWaiting, At: r.CreatedAt}}
	if r.PooledAt != nil {
		entries = append(entries, HistoryEntry{Status: StatusPooled, At: *r.PooledAt})
	}
	if r.PickupTime != nil {
		entries = append(entries, HistoryEntry{Status: StatusAssigned, At: *r.PickupTime})
	}
	if r.CompletedAt != nil {
		entries = append(entries, HistoryEntry{Status: StatusCompleted, At: *r.CompletedAt})
	}
	return entries
}
