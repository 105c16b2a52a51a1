package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/learnhub/internal/logging"
	"github.com/Skotchmaster/learnhub/internal/middleware/auth"
	"github.com/Skotchmaster/learnhub/internal/service"
	"github.com/Skotchmaster/learnhub/internal/tokens"
	"github.com/Skotchmaster/learnhub/internal/upload"
)

type UserHandler struct {
	Svc *service.UserService
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 0)

	res, err := h.Svc.ListUsers(c.Request().Context(), page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *UserHandler) SetRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_set_role")

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var req SetRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("set_role_error", "status", 400, "error", err)
		return err
	}
	role, err := tokens.ParseRole(req.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.Svc.SetRole(ctx, uint(id), role); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": role})
}

// UploadAvatar runs behind the upload relay and stores the relayed URL.
func (h *UserHandler) UploadAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	url := upload.FileURLFrom(ctx)
	if url == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	user, err := h.Svc.SetAvatar(ctx, id.UserID, url)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
