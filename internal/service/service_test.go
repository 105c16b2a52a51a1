package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/learnhub/internal/db"
	"github.com/Skotchmaster/learnhub/internal/events"
	"github.com/Skotchmaster/learnhub/internal/models"
	"github.com/Skotchmaster/learnhub/internal/repo"
	"github.com/Skotchmaster/learnhub/internal/storage/memory"
	"github.com/Skotchmaster/learnhub/internal/tokens"
	"github.com/Skotchmaster/learnhub/internal/upload"
)

type published struct {
	topic, key string
	event      any
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{topic: topic, key: key, event: event})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.sent))
	for _, s := range p.sent {
		switch ev := s.event.(type) {
		case events.UserEvent:
			out = append(out, ev.Type)
		case events.UploadEvent:
			out = append(out, ev.Type)
		}
	}
	return out
}

type testEnv struct {
	repo   *repo.GormRepo
	issuer *tokens.Issuer
	pub    *recordingPublisher
	auth   *AuthService
	users  *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb, err := db.Open(context.Background(), "sqlite://:memory:")
	require.NoError(t, err)

	rp := repo.New(gdb)
	issuer := tokens.NewIssuer(tokens.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
	pub := &recordingPublisher{}

	return &testEnv{
		repo:   rp,
		issuer: issuer,
		pub:    pub,
		auth:   &AuthService{Repo: rp, Tokens: issuer, Events: pub},
		users:  &UserService{Repo: rp},
	}
}

func TestRegister_SuccessAndConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.auth.Register(ctx, "  A@B.com ", "Secret123", "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, tokens.RoleStudent, u.Role)
	assert.NotEqual(t, "Secret123", u.PasswordHash)

	_, err = env.auth.Register(ctx, "a@b.com", "Secret123", "")
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, []string{events.UserRegistered}, env.pub.types())
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "not-an-email", "Secret123", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.auth.Register(ctx, "a@b.com", "short", "")
	assert.ErrorIs(t, err, ErrValidation)

	long := make([]byte, maxPasswordLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = env.auth.Register(ctx, "a@b.com", string(long), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.auth.Register(ctx, "a@b.com", "Secret123", "")
	require.NoError(t, err)

	res, err := env.auth.Login(ctx, "a@b.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)

	id, err := env.issuer.VerifyAccessToken(res.AccessToken.Value)
	require.NoError(t, err)
	assert.Equal(t, tokens.Identity{UserID: u.ID, Email: "a@b.com", Role: tokens.RoleStudent}, id)

	stored, err := env.repo.FindRefreshByJTI(ctx, res.RefreshToken.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.HashToken(res.RefreshToken.Value), stored.TokenHash)
	assert.False(t, stored.Revoked)

	assert.Contains(t, env.pub.types(), events.UserLoggedIn)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "a@b.com", "Secret123", "")
	require.NoError(t, err)

	_, errWrongPass := env.auth.Login(ctx, "a@b.com", "Wrong1234")
	_, errUnknown := env.auth.Login(ctx, "nobody@b.com", "Secret123")

	assert.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrongPass.Error(), errUnknown.Error())
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "a@b.com", "Secret123", "")
	require.NoError(t, err)
	login, err := env.auth.Login(ctx, "a@b.com", "Secret123")
	require.NoError(t, err)

	next, err := env.auth.Refresh(ctx, login.RefreshToken.Value)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken.Value, next.RefreshToken.Value)
	_, err = env.issuer.VerifyAccessToken(next.AccessToken.Value)
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, login.RefreshToken.Value)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = env.auth.Refresh(ctx, next.RefreshToken.Value)
	require.NoError(t, err)
}

func TestRefresh_RejectsAccessTokenAndGarbage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "a@b.com", "Secret123", "")
	require.NoError(t, err)
	login, err := env.auth.Login(ctx, "a@b.com", "Secret123")
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, login.AccessToken.Value)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)

	_, err = env.auth.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_PicksUpRoleChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.auth.Register(ctx, "a@b.com", "Secret123", "")
	require.NoError(t, err)
	login, err := env.auth.Login(ctx, "a@b.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, env.users.SetRole(ctx, u.ID, tokens.RoleInstructor))

	// the old access token still carries the old role
	old, err := env.issuer.VerifyAccessToken(login.AccessToken.Value)
	require.NoError(t, err)
	assert.Equal(t, tokens.RoleStudent, old.Role)

	next, err := env.auth.Refresh(ctx, login.RefreshToken.Value)
	require.NoError(t, err)
	fresh, err := env.issuer.VerifyAccessToken(next.AccessToken.Value)
	require.NoError(t, err)
	assert.Equal(t, tokens.RoleInstructor, fresh.Role)
}

func TestLogOut_RevokesRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "a@b.com", "Secret123", "")
	require.NoError(t, err)
	login, err := env.auth.Login(ctx, "a@b.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, env.auth.LogOut(ctx, ""))
	require.NoError(t, env.auth.LogOut(ctx, login.RefreshToken.Value))

	_, err = env.auth.Refresh(ctx, login.RefreshToken.Value)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.auth.Register(ctx, "a@b.com", "Secret123", "Ada")
	require.NoError(t, err)

	got, err := env.auth.Me(ctx, u.Identity())
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FullName)

	_, err = env.auth.Me(ctx, tokens.Identity{UserID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	env := newTestEnv(t)
	env.pub.err = errors.New("broker down")

	_, err := env.auth.Register(context.Background(), "a@b.com", "Secret123", "")
	require.NoError(t, err)
}

func TestUserService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, e := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		_, err := env.auth.Register(ctx, e, "Secret123", "")
		require.NoError(t, err)
	}

	page, err := env.users.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c@x.io", page.Items[0].Email)

	assert.ErrorIs(t, env.users.SetRole(ctx, 1, tokens.Role(9)), ErrValidation)
	assert.ErrorIs(t, env.users.SetRole(ctx, 999, tokens.RoleAdmin), ErrNotFound)
	require.NoError(t, env.users.SetRole(ctx, 1, tokens.RoleAdmin))

	u, err := env.users.SetAvatar(ctx, 1, "https://cdn/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", u.AvatarURL)
	assert.Equal(t, tokens.RoleAdmin, u.Role)

	_, err = env.users.SetAvatar(ctx, 999, "https://cdn/a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeIndex struct {
	docs []models.Upload
	err  error
}

func (f *fakeIndex) Index(_ context.Context, doc models.Upload) error {
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, from, size int) (int64, []models.Upload, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	end := min(from+size, len(f.docs))
	if from > end {
		from = end
	}
	return int64(len(f.docs)), f.docs[from:end], nil
}

func TestUploadService_Record(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, err := env.auth.Register(ctx, "teacher@b.com", "Secret123", "")
	require.NoError(t, err)

	idx := &fakeIndex{}
	svc := &UploadService{Repo: env.repo, Events: env.pub, Index: idx}

	obj := upload.Object{Name: "1-abc-notes.pdf", OriginalName: "notes.pdf", ContentType: "application/pdf", Size: 12, URL: "memory://b/1-abc-notes.pdf"}
	rec, err := svc.Record(ctx, u.Identity(), obj)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, u.ID, rec.UploadedBy)

	require.Len(t, idx.docs, 1)
	assert.Equal(t, rec.ID, idx.docs[0].ID)
	assert.Contains(t, env.pub.types(), events.FileUploaded)

	page, err := svc.List(ctx, u.Identity(), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	found, err := svc.Search(ctx, "notes", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, found.Total)

	_, err = svc.Search(ctx, "   ", 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUploadService_IndexFailureIsBestEffort(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	svc := &UploadService{Repo: env.repo, Index: &fakeIndex{err: errors.New("es down")}}
	_, err := svc.Record(ctx, tokens.Identity{UserID: 1}, upload.Object{Name: "n", OriginalName: "n", ContentType: "text/plain", Size: 1, URL: "u"})
	require.NoError(t, err)
}

func TestUploadService_RecordFailureRemovesObject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	store := memory.New("uploads")
	require.NoError(t, store.PutObject(ctx, "1-abc-notes.pdf", strings.NewReader("hello"), 5, "application/pdf"))
	require.NoError(t, env.repo.DB.Migrator().DropTable(&models.Upload{}))

	pub := &recordingPublisher{}
	svc := &UploadService{Repo: env.repo, Events: pub, Objects: store}
	_, err := svc.Record(ctx, tokens.Identity{UserID: 1}, upload.Object{Name: "1-abc-notes.pdf", OriginalName: "notes.pdf", ContentType: "application/pdf", Size: 5, URL: "u"})
	require.Error(t, err)

	assert.Zero(t, store.Len())
	assert.Empty(t, pub.types())
}
