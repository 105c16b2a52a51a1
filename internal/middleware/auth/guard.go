package auth

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/learnhub/internal/logging"
	"github.com/Skotchmaster/learnhub/internal/tokens"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	ctxIdentity = "identity"
)

type AccessVerifier interface {
	VerifyAccessToken(raw string) (tokens.Identity, error)
}

// AccessGuard requires a valid access token, taken from the Authorization
// bearer header or, when no Authorization header is sent, the access cookie.
// A header that fails verification is final: the cookie is not consulted.
// On success the decoded identity is placed on the request context; on any
// failure the chain stops with 401.
func AccessGuard(v AccessVerifier) echo.MiddlewareFunc {
	fromHeader := guardWithLookup(v, "header:Authorization:Bearer ")
	fromCookie := guardWithLookup(v, "cookie:"+AccessCookie)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		header, cookie := fromHeader(next), fromCookie(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
				return header(c)
			}
			return cookie(c)
		}
	}
}

func guardWithLookup(v AccessVerifier, lookup string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ctxIdentity,
		TokenLookup: lookup,
		ParseTokenFunc: func(c echo.Context, raw string) (interface{}, error) {
			id, err := v.VerifyAccessToken(raw)
			if err != nil {
				return nil, err
			}
			return id, nil
		},
		SuccessHandler: func(c echo.Context) {
			id, _ := c.Get(ctxIdentity).(tokens.Identity)
			req := c.Request()
			c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			reason := "missing_token"
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				reason = "expired_token"
			case errors.Is(err, tokens.ErrInvalidToken):
				reason = "invalid_token"
			}
			logging.FromContext(c.Request().Context()).
				Warn("access_denied", "status", http.StatusUnauthorized, "reason", reason)
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		},
	})
}
