package handler

import "net/http"

// UploadPhoto handles PUT /requests/{id}/photo.
// The body is the raw image; Content-Type selects its format.
func (s *Server) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	if s.photos == nil {
		writePhotosDisabled(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	photo, err := s.photos.Upload(r.Context(), id, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		s.writeError(w, r, "pickup request", err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

// GetPhotoLink handles GET /requests/{id}/photo.
// It returns a short-lived download URL rather than the image itself.
func (s *Server) GetPhotoLink(w http.ResponseWriter, r *http.Request) {
	if s.photos == nil {
		writePhotosDisabled(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	link, err := s.photos.Link(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "photo", err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func writePhotosDisabled(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotImplemented, errorBody("not_implemented", "photo storage is not configured"))
}
