package tokens

import "github.com/golang-jwt/jwt/v5"

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type AccessClaims struct {
	UserID uint   `json:"uid"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

type RefreshClaims struct {
	UserID uint   `json:"uid"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *RefreshClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}
