package handler

import "net/http"

// ClassifyItem handles POST /items/classify.
// The body is the raw image; the optional filename query parameter is passed
// to the classifier as a hint.
func (s *Server) ClassifyItem(w http.ResponseWriter, r *http.Request) {
	if s.items == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("not_implemented", "item classification is not configured"))
		return
	}

	desc, err := s.items.Classify(r.Context(), r.Header.Get("Content-Type"), r.URL.Query().Get("filename"), r.Body)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}
