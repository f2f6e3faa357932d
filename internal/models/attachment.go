package models

import "time"

// Attachment describes a stored upload and a signed URL to fetch it.
type Attachment struct {
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
