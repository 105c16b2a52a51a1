package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/learnhub/internal/logging"
	"github.com/Skotchmaster/learnhub/internal/middleware/auth"
	"github.com/Skotchmaster/learnhub/internal/service"
)

type AuthHandler struct {
	Svc              *service.AuthService
	AccessCookieTTL  time.Duration
	RefreshCookieTTL time.Duration
	CookieSecure     bool
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return err
	}

	user, err := h.Svc.Register(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return err
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.setTokenCookies(c, res)
	l.Info("login_successful", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, tokenResponse(res))
}

// Refresh takes the refresh token from its cookie or, for non-browser
// clients, from the JSON body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	raw := refreshTokenFrom(c)
	if raw == "" {
		l.Warn("refresh_error", "status", 401, "reason", "missing refresh token")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	res, err := h.Svc.Refresh(ctx, raw)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			c.SetCookie(DeleteCookie(auth.RefreshCookie, h.CookieSecure))
		}
		return httpError(err)
	}

	h.setTokenCookies(c, res)
	return c.JSON(http.StatusOK, tokenResponse(res))
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	err := h.Svc.LogOut(ctx, refreshTokenFrom(c))

	c.SetCookie(DeleteCookie(auth.RefreshCookie, h.CookieSecure))
	c.SetCookie(DeleteCookie(auth.AccessCookie, h.CookieSecure))
	if err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot revoke refresh token", "error", err)
		return httpError(err)
	}

	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	user, err := h.Svc.Me(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) setTokenCookies(c echo.Context, res *service.LoginResult) {
	now := time.Now()
	c.SetCookie(CreateCookie(auth.AccessCookie, res.AccessToken.Value, cookieExpiry(now, h.AccessCookieTTL, res.AccessToken.ExpiresAt), h.CookieSecure))
	c.SetCookie(CreateCookie(auth.RefreshCookie, res.RefreshToken.Value, cookieExpiry(now, h.RefreshCookieTTL, res.RefreshToken.ExpiresAt), h.CookieSecure))
}

// cookieExpiry never outlives the token it carries.
func cookieExpiry(now time.Time, ttl time.Duration, tokenExp time.Time) time.Time {
	if ttl <= 0 {
		return tokenExp
	}
	exp := now.Add(ttl)
	if exp.After(tokenExp) {
		return tokenExp
	}
	return exp
}

func refreshTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(auth.RefreshCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req RefreshRequest
	if err := c.Bind(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func tokenResponse(res *service.LoginResult) TokenResponse {
	return TokenResponse{
		AccessToken:      res.AccessToken.Value,
		RefreshToken:     res.RefreshToken.Value,
		AccessExpiresAt:  res.AccessToken.ExpiresAt,
		RefreshExpiresAt: res.RefreshToken.ExpiresAt,
		User:             res.User,
	}
}
