package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/learnhub/internal/events"
	"github.com/Skotchmaster/learnhub/internal/hash"
	"github.com/Skotchmaster/learnhub/internal/logging"
	"github.com/Skotchmaster/learnhub/internal/models"
	"github.com/Skotchmaster/learnhub/internal/repo"
	"github.com/Skotchmaster/learnhub/internal/tokens"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordLen = 72
)

// dummyHash keeps Login timing the same for unknown emails.
var dummyHash, _ = hash.HashPassword("not-a-real-password")

type AuthService struct {
	Repo   *repo.GormRepo
	Tokens *tokens.Issuer
	Events events.Publisher
}

type LoginResult struct {
	AccessToken  tokens.Token
	RefreshToken tokens.Token
	User         *models.User
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d to %d bytes", ErrValidation, minPasswordLen, maxPasswordLen)
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.register", "email", email)

	if err := validateCredentials(email, password); err != nil {
		l.Warn("register_error", "status", 400, "reason", err.Error())
		return nil, err
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: pwHash,
		Role:         tokens.RoleStudent,
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 409, "reason", "user already exist")
			return nil, ErrConflict
		}
		l.Error("register_error", "status", 500, "reason", "internal server error", "error", err)
		return nil, err
	}

	s.publish(ctx, events.UserRegistered, user)
	l.Info("user_registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			hash.CheckPassword(dummyHash, password)
			l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
		return nil, ErrInvalidCredentials
	}

	res, refreshRow, err := s.issuePair(user)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}
	if err := s.Repo.AddRefresh(ctx, refreshRow); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, err
	}

	s.publish(ctx, events.UserLoggedIn, user)
	l.Info("user_logged_in", "user_id", user.ID)
	return res, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked; presenting it again fails.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Tokens.ParseRefreshToken(raw)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "refresh token verification failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	// the role may have changed since the token was minted
	user, err := s.Repo.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "user not found", "user_id", claims.UserID)
			return nil, ErrInvalidRefreshToken
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	res, next, err := s.issuePair(user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	if err := s.Repo.RotateRefreshToken(ctx, claims.ID, repo.HashToken(raw), next); err != nil {
		if errors.Is(err, repo.ErrRefreshUnavailable) {
			l.Warn("refresh_failed", "status", 401, "reason", "refresh token expired, revoked or unknown", "user_id", user.ID)
			return nil, ErrInvalidRefreshToken
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("token_refreshed", "user_id", user.ID)
	return res, nil
}

func (s *AuthService) LogOut(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if err := s.Repo.RevokeRefresh(ctx, repo.HashToken(raw)); err != nil {
		logging.FromContext(ctx).Error("logout_error", "status", 500, "error", err)
		return err
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, id tokens.Identity) (*models.User, error) {
	user, err := s.Repo.UserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issuePair(user *models.User) (*LoginResult, *models.RefreshToken, error) {
	id := user.Identity()

	access, err := s.Tokens.IssueAccessToken(id)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := s.Tokens.IssueRefreshToken(id)
	if err != nil {
		return nil, nil, err
	}

	row := &models.RefreshToken{
		JTI:       refresh.ID,
		TokenHash: repo.HashToken(refresh.Value),
		UserID:    user.ID,
		ExpiresAt: refresh.ExpiresAt.Unix(),
	}
	return &LoginResult{AccessToken: access, RefreshToken: refresh, User: user}, row, nil
}

func (s *AuthService) publish(ctx context.Context, typ string, user *models.User) {
	if s.Events == nil {
		return
	}
	ev := events.UserEvent{
		Type:       typ,
		UserID:     user.ID,
		Email:      user.Email,
		Role:       int(user.Role),
		OccurredAt: time.Now().UTC(),
	}
	key := strconv.FormatUint(uint64(user.ID), 10)
	if err := s.Events.PublishEvent(ctx, events.TopicUsers, key, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_failed", "event", typ, "error", err)
	}
}
