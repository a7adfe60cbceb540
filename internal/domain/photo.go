package domain

import "time"

// Photo describes an image attached to a pickup request.
type Photo struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// PhotoLink is a time-limited download URL for a stored photo.
type PhotoLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
