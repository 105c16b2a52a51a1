package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/learnhub/internal/logging"
	"github.com/Skotchmaster/learnhub/internal/models"
	"github.com/Skotchmaster/learnhub/internal/repo"
	"github.com/Skotchmaster/learnhub/internal/tokens"
	"github.com/Skotchmaster/learnhub/internal/util"
)

type UserService struct {
	Repo *repo.GormRepo
}

type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func newPage[T any](items []T, total int64, offset, limit int) Page[T] {
	return Page[T]{Items: items, Total: total, Page: offset/limit + 1, Size: limit}
}

func (s *UserService) ListUsers(ctx context.Context, page, size int) (Page[models.User], error) {
	offset, limit := util.Calculate(page, size)
	total, items, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		logging.FromContext(ctx).Error("list_users_error", "status", 500, "error", err)
		return Page[models.User]{}, err
	}
	return newPage(items, total, offset, limit), nil
}

// SetRole changes the stored role. Tokens already issued keep the role they
// were signed with until they expire.
func (s *UserService) SetRole(ctx context.Context, userID uint, role tokens.Role) error {
	l := logging.FromContext(ctx).With("svc", "users.set_role", "user_id", userID)
	if !role.Valid() {
		l.Warn("set_role_error", "status", 400, "reason", "unknown role", "role", int(role))
		return fmt.Errorf("%w: unknown role %d", ErrValidation, role)
	}
	if err := s.Repo.SetRole(ctx, userID, role); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("set_role_error", "status", 404, "reason", "user not found")
			return ErrNotFound
		}
		l.Error("set_role_error", "status", 500, "error", err)
		return err
	}
	l.Info("role_changed", "role", role.String())
	return nil
}

func (s *UserService) SetAvatar(ctx context.Context, userID uint, url string) (*models.User, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty avatar url", ErrValidation)
	}
	if err := s.Repo.SetAvatar(ctx, userID, url); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		logging.FromContext(ctx).Error("set_avatar_error", "status", 500, "user_id", userID, "error", err)
		return nil, err
	}
	return s.Repo.UserByID(ctx, userID)
}
