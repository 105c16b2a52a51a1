package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/Skotchmaster/learnhub/internal/db"
	"github.com/Skotchmaster/learnhub/internal/handlers"
	"github.com/Skotchmaster/learnhub/internal/middleware/auth"
	"github.com/Skotchmaster/learnhub/internal/middleware/csrf"
	"github.com/Skotchmaster/learnhub/internal/tokens"
	"github.com/Skotchmaster/learnhub/internal/upload"
)

const (
	uploadField = "file"
	// room for multipart framing around the file itself
	multipartOverhead = 1 << 20
)

// Pinger is an optional dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	DB             *gorm.DB
	Storage        Pinger
	Metrics        http.Handler
	Tokens         auth.AccessVerifier
	Relay          *upload.Relay
	MaxUploadBytes int64
	CookieSecure   bool

	AuthHandler   *handlers.AuthHandler
	UserHandler   *handlers.UserHandler
	UploadHandler *handlers.UploadHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = handlers.NewValidator()

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, d.DB); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
		}
		if d.Storage != nil {
			if err := d.Storage.Ping(ctx); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	csrfMw := csrf.Middleware(csrf.Config{
		Secure:            d.CookieSecure,
		EnforceSameOrigin: true,
		SkipBearer:        true,
		SkipPaths: []string{
			"/api/v1/auth/register",
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
		},
	})
	guard := auth.AccessGuard(d.Tokens)
	relay := []echo.MiddlewareFunc{
		middleware.BodyLimit(fmt.Sprintf("%dB", d.MaxUploadBytes+multipartOverhead)),
		upload.Middleware(d.Relay, uploadField, d.MaxUploadBytes),
	}

	authGroup := e.Group("/api/v1/auth", csrfMw)
	authGroup.POST("/register", d.AuthHandler.Register)
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.POST("/refresh", d.AuthHandler.Refresh)
	authGroup.POST("/logout", d.AuthHandler.LogOut)

	users := e.Group("/api/v1/users", guard, csrfMw)
	users.GET("/me", d.AuthHandler.Me)
	users.PUT("/me/avatar", d.UserHandler.UploadAvatar, relay...)

	uploads := e.Group("/api/v1/uploads", guard, auth.RequireRoles(tokens.RoleInstructor, tokens.RoleAdmin), csrfMw)
	uploads.POST("", d.UploadHandler.Create, relay...)
	uploads.GET("", d.UploadHandler.List)
	uploads.GET("/search", d.UploadHandler.Search)

	admin := e.Group("/api/v1/admin", guard, auth.RequireRoles(tokens.RoleAdmin), csrfMw)
	admin.GET("/users", d.UserHandler.ListUsers)
	admin.PATCH("/users/:id/role", d.UserHandler.SetRole)
}
