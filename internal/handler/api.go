package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/ecopickup/pooling/internal/domain"
)

// Wire types for the JSON API. They mirror the schemas in spec/openapi.yaml.

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// SubmitRequest is the body of POST /requests. Lat and Lng are pointers so a
// missing location fix is distinguishable from the equator or prime meridian.
type SubmitRequest struct {
	UserID   string   `json:"user_id"`
	Address  string   `json:"address"`
	Item     string   `json:"item"`
	Quantity int      `json:"quantity"`
	AddOn    string   `json:"add_on"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

type SubmitResponse struct {
	ID                 uuid.UUID     `json:"id"`
	Status             domain.Status `json:"status"`
	PooledRequestIDs   []uuid.UUID   `json:"pooled_request_ids,omitempty"`
	EvaluationDeferred bool          `json:"evaluation_deferred,omitempty"`
}

type PickupRequest struct {
	ID          uuid.UUID     `json:"id"`
	UserID      string        `json:"user_id"`
	Address     string        `json:"address"`
	Item        string        `json:"item"`
	Quantity    int           `json:"quantity"`
	AddOn       *string       `json:"add_on,omitempty"`
	Lat         float64       `json:"lat"`
	Lng         float64       `json:"lng"`
	Status      domain.Status `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	PooledAt    *time.Time    `json:"pooled_at,omitempty"`
	PickupTime  *time.Time    `json:"pickup_time,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type PickupRequestList struct {
	Data       []PickupRequest `json:"data"`
	Pagination Pagination      `json:"pagination"`
}

type HistoryResponse struct {
	ID      uuid.UUID             `json:"id"`
	History []domain.HistoryEntry `json:"history"`
}

type AssignRequest struct {
	PickupTime time.Time `json:"pickup_time"`
}

type NearbyResponse struct {
	Waiting   int     `json:"waiting"`
	Threshold int     `json:"threshold"`
	RadiusKm  float64 `json:"radius_km"`
	Remaining int     `json:"remaining"`
}

// --- mapping helpers --------------------------------------------------------

func submitRequestToDomain(body SubmitRequest) domain.Submission {
	return domain.Submission{
		UserID:   body.UserID,
		Address:  body.Address,
		Item:     body.Item,
		Quantity: body.Quantity,
		AddOn:    body.AddOn,
		Lat:      body.Lat,
		Lng:      body.Lng,
	}
}

func submissionToResponse(res domain.SubmissionResult) SubmitResponse {
	return SubmitResponse{
		ID:                 res.Request.ID,
		Status:             res.Status,
		PooledRequestIDs:   res.PooledRequestIDs,
		EvaluationDeferred: res.EvaluationDeferred,
	}
}

func requestToResponse(r domain.PickupRequest) PickupRequest {
	resp := PickupRequest{
		ID:          r.ID,
		UserID:      r.UserID,
		Address:     r.Address,
		Item:        r.Item,
		Quantity:    r.Quantity,
		Lat:         r.Lat,
		Lng:         r.Lng,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		PooledAt:    r.PooledAt,
		PickupTime:  r.PickupTime,
		CompletedAt: r.CompletedAt,
	}
	if r.AddOn != "" {
		resp.AddOn = &r.AddOn
	}
	return resp
}

func nearbyToResponse(s domain.NearbySummary) NearbyResponse {
	return NearbyResponse{
		Waiting:   s.Waiting,
		Threshold: s.Threshold,
		RadiusKm:  s.RadiusKm,
		Remaining: max(s.Threshold-s.Waiting, 0),
	}
}
