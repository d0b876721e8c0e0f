package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccessKey is a webhook secret. At most one key is active at a time.
type AccessKey struct {
	ID            uuid.UUID  `json:"id"`
	Value         string     `json:"value"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// AccessLogEntry records one webhook invocation.
type AccessLogEntry struct {
	ID           uuid.UUID  `json:"id"`
	KeyID        *uuid.UUID `json:"key_id,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	SourceIP     string     `json:"source_ip"`
	Browser      string     `json:"browser"`
	OS           string     `json:"os"`
	Geolocation  string     `json:"geolocation"`
	Success      bool       `json:"success"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
