package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/learnhub/internal/middleware/auth"
	"github.com/Skotchmaster/learnhub/internal/service"
	"github.com/Skotchmaster/learnhub/internal/upload"
)

type UploadHandler struct {
	Svc *service.UploadService
}

func (h *UploadHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	obj, ok := upload.ObjectFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	rec, err := h.Svc.Record(ctx, id, obj)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *UploadHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 0)
	res, err := h.Svc.List(ctx, id, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *UploadHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query error")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 0)
	res, err := h.Svc.Search(c.Request().Context(), q, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
