package upload

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/learnhub/internal/logging"
)

// Middleware reads the multipart file in field, relays it to storage and
// hands the stored object to the next handler through the request context.
// The next handler is never called without a URL.
func Middleware(r *Relay, field string, maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("middleware", "upload_relay")

			fh, err := c.FormFile(field)
			if err != nil {
				if errors.Is(err, http.ErrMissingFile) {
					l.Warn("upload_rejected", "status", http.StatusBadRequest, "reason", "missing file")
					return echo.NewHTTPError(http.StatusBadRequest, "file is required")
				}
				l.Warn("upload_rejected", "status", http.StatusBadRequest, "reason", "invalid multipart body", "error", err)
				return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
			}
			if maxBytes > 0 && fh.Size > maxBytes {
				l.Warn("upload_rejected", "status", http.StatusRequestEntityTooLarge, "reason", "file too large", "size", fh.Size)
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
			}

			src, err := fh.Open()
			if err != nil {
				l.Error("upload_failed", "status", http.StatusBadRequest, "reason", "cannot open file", "error", err)
				return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
			}
			defer src.Close()

			obj, err := r.Upload(ctx, File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Size:        fh.Size,
				Body:        src,
			})
			if err != nil {
				if errors.Is(err, ErrEmptyFile) {
					l.Warn("upload_rejected", "status", http.StatusBadRequest, "reason", "empty file")
					return echo.NewHTTPError(http.StatusBadRequest, "file is empty")
				}
				l.Error("upload_failed", "status", http.StatusBadGateway, "error", err)
				return echo.NewHTTPError(http.StatusBadGateway, "upload failed")
			}

			l.Info("upload_stored", "name", obj.Name, "size", obj.Size, "content_type", obj.ContentType)
			c.SetRequest(c.Request().WithContext(WithObject(ctx, obj)))
			return next(c)
		}
	}
}
