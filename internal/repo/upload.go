package repo

import (
	"context"

	"github.com/Skotchmaster/learnhub/internal/models"
)

func (r *GormRepo) CreateUpload(ctx context.Context, u *models.Upload) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *GormRepo) ListUploads(ctx context.Context, uploaderID uint, offset, limit int) (int64, []models.Upload, error) {
	q := r.DB.WithContext(ctx).Model(&models.Upload{}).Where("uploaded_by = ?", uploaderID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Upload, 0, limit)
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
