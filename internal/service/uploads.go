package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/learnhub/internal/events"
	"github.com/Skotchmaster/learnhub/internal/logging"
	"github.com/Skotchmaster/learnhub/internal/models"
	"github.com/Skotchmaster/learnhub/internal/repo"
	"github.com/Skotchmaster/learnhub/internal/tokens"
	"github.com/Skotchmaster/learnhub/internal/upload"
	"github.com/Skotchmaster/learnhub/internal/util"
)

type UploadIndex interface {
	Index(ctx context.Context, doc models.Upload) error
	Search(ctx context.Context, query string, from, size int) (int64, []models.Upload, error)
}

// ObjectRemover deletes a stored object whose metadata could not be saved.
type ObjectRemover interface {
	RemoveObject(ctx context.Context, name string) error
}

type UploadService struct {
	Repo    *repo.GormRepo
	Events  events.Publisher
	Index   UploadIndex
	Objects ObjectRemover
}

// Record stores metadata for an object the relay has already written.
// Publishing and indexing are best-effort.
func (s *UploadService) Record(ctx context.Context, by tokens.Identity, obj upload.Object) (*models.Upload, error) {
	l := logging.FromContext(ctx).With("svc", "uploads.record", "user_id", by.UserID, "name", obj.Name)

	rec := &models.Upload{
		Name:         obj.Name,
		OriginalName: obj.OriginalName,
		ContentType:  obj.ContentType,
		Size:         obj.Size,
		URL:          obj.URL,
		UploadedBy:   by.UserID,
	}
	if err := s.Repo.CreateUpload(ctx, rec); err != nil {
		l.Error("upload_record_error", "status", 500, "error", err)
		s.discard(ctx, l, obj.Name)
		return nil, err
	}

	if s.Events != nil {
		ev := events.UploadEvent{
			Type:        events.FileUploaded,
			UploadID:    rec.ID,
			Name:        rec.Name,
			ContentType: rec.ContentType,
			Size:        rec.Size,
			UploadedBy:  rec.UploadedBy,
			OccurredAt:  time.Now().UTC(),
		}
		if err := s.Events.PublishEvent(ctx, events.TopicUploads, strconv.FormatUint(uint64(rec.ID), 10), ev); err != nil {
			l.Warn("publish_failed", "event", events.FileUploaded, "error", err)
		}
	}
	if s.Index != nil {
		if err := s.Index.Index(ctx, *rec); err != nil {
			l.Warn("index_failed", "error", err)
		}
	}

	l.Info("upload_recorded", "upload_id", rec.ID)
	return rec, nil
}

// discard removes an object left without a metadata row. When that fails
// too the object name is logged at error level for manual cleanup.
func (s *UploadService) discard(ctx context.Context, l *slog.Logger, name string) {
	if s.Objects == nil {
		l.Error("upload_orphaned", "object", name)
		return
	}
	if err := s.Objects.RemoveObject(context.WithoutCancel(ctx), name); err != nil {
		l.Error("upload_orphaned", "object", name, "error", err)
		return
	}
	l.Info("upload_discarded", "object", name)
}

func (s *UploadService) List(ctx context.Context, by tokens.Identity, page, size int) (Page[models.Upload], error) {
	offset, limit := util.Calculate(page, size)
	total, items, err := s.Repo.ListUploads(ctx, by.UserID, offset, limit)
	if err != nil {
		logging.FromContext(ctx).Error("list_uploads_error", "status", 500, "error", err)
		return Page[models.Upload]{}, err
	}
	return newPage(items, total, offset, limit), nil
}

func (s *UploadService) Search(ctx context.Context, query string, page, size int) (Page[models.Upload], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Page[models.Upload]{}, fmt.Errorf("%w: empty query", ErrValidation)
	}
	offset, limit := util.Calculate(page, size)
	if s.Index == nil {
		return newPage([]models.Upload{}, 0, offset, limit), nil
	}

	total, items, err := s.Index.Search(ctx, query, offset, limit)
	if err != nil {
		logging.FromContext(ctx).Error("search_error", "status", 500, "error", err)
		return Page[models.Upload]{}, err
	}
	return newPage(items, total, offset, limit), nil
}
