package handler

import (
	"net/http"

	"github.com/ecopickup/pooling/internal/auth"
	"github.com/ecopickup/pooling/internal/domain"
)

// SubmitRequest handles POST /requests.
// The request is saved and evaluated for pooling in the same call; the
// response says whether it is still waiting or formed a pool. A verified
// bearer identity takes precedence over the body's user_id.
func (s *Server) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	sub := submitRequestToDomain(body)
	if userID, ok := auth.UserIDFrom(r.Context()); ok {
		sub.UserID = userID
	}

	res, err := s.pooling.Submit(r.Context(), sub)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	w.Header().Set("Location", "/requests/"+res.Request.ID.String())
	writeJSON(w, http.StatusCreated, submissionToResponse(res))
}

// ListRequests handles GET /requests.
// Supports ?status=, ?user_id=, ?page= and ?limit= (defaults: page=1, limit=20, max=100).
func (s *Server) ListRequests(w http.ResponseWriter, r *http.Request) {
	var (
		page, limit *int
		status      *string
		userID      *string
	)
	for _, p := range []struct {
		name string
		dest any
	}{
		{"page", &page},
		{"limit", &limit},
		{"status", &status},
		{"user_id", &userID},
	} {
		if err := queryParam(r, p.name, false, p.dest); err != nil {
			s.writeError(w, r, "", err)
			return
		}
	}

	var filter domain.RequestFilter
	if status != nil {
		filter.Status = domain.Status(*status)
	}
	if userID != nil {
		filter.UserID = *userID
	}
	params := domain.NewPaginationParams(page, limit)

	reqs, total, err := s.lifecycle.List(r.Context(), filter, params)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	data := make([]PickupRequest, len(reqs))
	for i, req := range reqs {
		data[i] = requestToResponse(req)
	}
	writeJSON(w, http.StatusOK, PickupRequestList{
		Data: data,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// GetRequest handles GET /requests/{id}.
func (s *Server) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	req, err := s.lifecycle.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "pickup request", err)
		return
	}
	writeJSON(w, http.StatusOK, requestToResponse(req))
}

// GetRequestHistory handles GET /requests/{id}/history.
func (s *Server) GetRequestHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	history, err := s.lifecycle.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "pickup request", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{ID: id, History: history})
}

// AssignRequest handles POST /requests/{id}/assign.
// Only a pooled request can be assigned; anything else is 409.
func (s *Server) AssignRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	var body AssignRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	req, err := s.lifecycle.Assign(r.Context(), id, body.PickupTime)
	if err != nil {
		s.writeError(w, r, "pickup request", err)
		return
	}
	writeJSON(w, http.StatusOK, requestToResponse(req))
}

// CompleteRequest handles POST /requests/{id}/complete.
// Only an assigned request can be completed; anything else is 409.
func (s *Server) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	req, err := s.lifecycle.Complete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "pickup request", err)
		return
	}
	writeJSON(w, http.StatusOK, requestToResponse(req))
}
