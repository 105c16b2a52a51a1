package models

import (
	"time"

	"github.com/Skotchmaster/learnhub/internal/tokens"
)

type User struct {
	ID           uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string      `gorm:"uniqueIndex;not null"     json:"email"`
	FullName     string      `gorm:"not null;default:''"      json:"full_name"`
	PasswordHash string      `gorm:"not null"                 json:"-"`
	Role         tokens.Role `gorm:"not null;default:1"       json:"role"`
	AvatarURL    string      `gorm:"type:text"                json:"avatar_url,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (u *User) Identity() tokens.Identity {
	return tokens.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"            json:"id"`
	JTI       string `gorm:"uniqueIndex;not null"  json:"jti"`
	TokenHash string `gorm:"uniqueIndex;not null"  json:"-"`
	UserID    uint   `gorm:"index;not null"        json:"user_id"`
	ExpiresAt int64  `gorm:"not null"              json:"expires_at"`
	Revoked   bool   `gorm:"default:false"         json:"revoked"`
	CreatedAt time.Time
}

type Upload struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"uniqueIndex;not null"     json:"name"`
	OriginalName string    `gorm:"not null"                 json:"original_name"`
	ContentType  string    `gorm:"not null"                 json:"content_type"`
	Size         int64     `gorm:"not null"                 json:"size"`
	URL          string    `gorm:"type:text;not null"       json:"url"`
	UploadedBy   uint      `gorm:"index;not null"           json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&User{}, &RefreshToken{}, &Upload{}}
}
