package events

import "time"

const (
	UserRegistered = "user_registered"
	UserLoggedIn   = "user_logged_in"
	FileUploaded   = "file_uploaded"
)

type UserEvent struct {
	Type       string    `json:"type"`
	UserID     uint      `json:"user_id"`
	Email      string    `json:"email"`
	Role       int       `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

type UploadEvent struct {
	Type        string    `json:"type"`
	UploadID    uint      `json:"upload_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  uint      `json:"uploaded_by"`
	OccurredAt  time.Time `json:"occurred_at"`
}
