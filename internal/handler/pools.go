package handler

import "net/http"

// GetNearby handles GET /pools/nearby?lat=&lng=.
// It previews how many waiting requests lie within the pooling radius of a
// location and how many more are needed to form a pool. Nothing is changed.
func (s *Server) GetNearby(w http.ResponseWriter, r *http.Request) {
	var lat, lng float64
	if err := queryParam(r, "lat", true, &lat); err != nil {
		s.writeError(w, r, "", err)
		return
	}
	if err := queryParam(r, "lng", true, &lng); err != nil {
		s.writeError(w, r, "", err)
		return
	}

	summary, err := s.pooling.CountNearby(r.Context(), lat, lng)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, nearbyToResponse(summary))
}
