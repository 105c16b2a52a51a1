package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/learnhub/internal/db"
	"github.com/Skotchmaster/learnhub/internal/models"
	"github.com/Skotchmaster/learnhub/internal/tokens"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	gdb, err := db.Open(context.Background(), "sqlite://:memory:")
	require.NoError(t, err)
	return New(gdb)
}

func createUser(t *testing.T, r *GormRepo, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: tokens.RoleStudent}
	require.NoError(t, r.CreateUserIfNotExists(context.Background(), u))
	return u
}

func TestCreateUserIfNotExists_Conflict(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := createUser(t, r, "a@b.com")
	assert.NotZero(t, u.ID)

	err := r.CreateUserIfNotExists(ctx, &models.User{Email: "a@b.com", PasswordHash: "y"})
	assert.ErrorIs(t, err, ErrUserAlreadyExist)
}

func TestCreateUserIfNotExists_ConcurrentOneWins(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.CreateUserIfNotExists(ctx, &models.User{Email: "race@b.com", PasswordHash: "x", Role: tokens.RoleStudent})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrUserAlreadyExist), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestUserLookups(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "a@b.com")

	byEmail, err := r.UserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := r.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)
	assert.Equal(t, tokens.RoleStudent, byID.Role)

	_, err = r.UserByEmail(ctx, "missing@b.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.UserByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUsers_Paginates(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	for _, e := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		createUser(t, r, e)
	}

	total, items, err := r.ListUsers(ctx, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "b@x.io", items[0].Email)
}

func TestSetRoleAndAvatar(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "a@b.com")

	require.NoError(t, r.SetRole(ctx, u.ID, tokens.RoleInstructor))
	require.NoError(t, r.SetAvatar(ctx, u.ID, "https://cdn/x.png"))

	got, err := r.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, tokens.RoleInstructor, got.Role)
	assert.Equal(t, "https://cdn/x.png", got.AvatarURL)

	assert.ErrorIs(t, r.SetRole(ctx, 999, tokens.RoleAdmin), ErrNotFound)
	assert.ErrorIs(t, r.SetAvatar(ctx, 999, "u"), ErrNotFound)
}

func refreshRow(userID uint, raw string, ttl time.Duration) *models.RefreshToken {
	return &models.RefreshToken{
		JTI:       "jti-" + raw,
		TokenHash: HashToken(raw),
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
}

func TestRotateRefreshToken(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "a@b.com")

	old := refreshRow(u.ID, "old", time.Hour)
	require.NoError(t, r.AddRefresh(ctx, old))

	next := refreshRow(u.ID, "next", time.Hour)
	require.NoError(t, r.RotateRefreshToken(ctx, old.JTI, old.TokenHash, next))

	stored, err := r.FindRefreshByJTI(ctx, old.JTI)
	require.NoError(t, err)
	assert.True(t, stored.Revoked)

	_, err = r.FindRefreshByJTI(ctx, next.JTI)
	require.NoError(t, err)

	// reuse of a rotated token fails and does not store the successor
	again := refreshRow(u.ID, "again", time.Hour)
	err = r.RotateRefreshToken(ctx, old.JTI, old.TokenHash, again)
	assert.ErrorIs(t, err, ErrRefreshUnavailable)
	_, err = r.FindRefreshByJTI(ctx, again.JTI)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRotateRefreshToken_ExpiredOrMismatched(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "a@b.com")

	expired := refreshRow(u.ID, "expired", -time.Minute)
	require.NoError(t, r.AddRefresh(ctx, expired))
	err := r.RotateRefreshToken(ctx, expired.JTI, expired.TokenHash, refreshRow(u.ID, "n1", time.Hour))
	assert.ErrorIs(t, err, ErrRefreshUnavailable)

	live := refreshRow(u.ID, "live", time.Hour)
	require.NoError(t, r.AddRefresh(ctx, live))
	err = r.RotateRefreshToken(ctx, live.JTI, HashToken("other"), refreshRow(u.ID, "n2", time.Hour))
	assert.ErrorIs(t, err, ErrRefreshUnavailable)
}

func TestRotateRefreshToken_ConcurrentOnlyOneWins(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "a@b.com")

	old := refreshRow(u.ID, "old", time.Hour)
	require.NoError(t, r.AddRefresh(ctx, old))

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.RotateRefreshToken(ctx, old.JTI, old.TokenHash, refreshRow(u.ID, "n"+string(rune('a'+i)), time.Hour))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrRefreshUnavailable), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestRevokeRefresh(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "a@b.com")

	tok := refreshRow(u.ID, "raw", time.Hour)
	require.NoError(t, r.AddRefresh(ctx, tok))
	require.NoError(t, r.RevokeRefresh(ctx, HashToken("raw")))

	got, err := r.FindRefreshByJTI(ctx, tok.JTI)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestUploads(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "a@b.com")

	for _, name := range []string{"one", "two"} {
		require.NoError(t, r.CreateUpload(ctx, &models.Upload{
			Name: name, OriginalName: name + ".pdf", ContentType: "application/pdf",
			Size: 3, URL: "memory://b/" + name, UploadedBy: u.ID,
		}))
	}

	total, items, err := r.ListUploads(ctx, u.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].Name)

	total, _, err = r.ListUploads(ctx, u.ID+1, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
