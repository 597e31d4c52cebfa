package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/akademika-id/akademika/internal/shared"
)

type memoryAuthRepo struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*User
	sessions map[string]Session
}

func newMemoryAuthRepo() *memoryAuthRepo {
	return &memoryAuthRepo{
		users:    make(map[int64]*User),
		sessions: make(map[string]Session),
	}
}

func (m *memoryAuthRepo) FindUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryAuthRepo) FindUserByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryAuthRepo) CreateUser(_ context.Context, email, name, passwordHash string, roleID int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return nil, shared.ErrDuplicate
		}
	}
	m.nextID++
	u := &User{
		ID:           m.nextID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		RoleID:       roleID,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memoryAuthRepo) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memoryAuthRepo) UpdateEmail(_ context.Context, userID int64, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if id != userID && strings.EqualFold(u.Email, email) {
			return shared.ErrDuplicate
		}
	}
	u, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.Email = email
	return nil
}

func (m *memoryAuthRepo) SetUserActive(_ context.Context, userID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *memoryAuthRepo) CreateSession(_ context.Context, sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.TokenHash] = sess
	return nil
}

func (m *memoryAuthRepo) ClaimSessionByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[tokenHash]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, shared.ErrNotFound
	}
	delete(m.sessions, tokenHash)
	return &sess, nil
}

func (m *memoryAuthRepo) DeleteSessionByTokenHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

func (m *memoryAuthRepo) DeleteSessionsByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, sess := range m.sessions {
		if sess.UserID == userID {
			delete(m.sessions, hash)
		}
	}
	return nil
}

func (m *memoryAuthRepo) DeleteExpiredSessions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for hash, sess := range m.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(m.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (m *memoryAuthRepo) sessionCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sess := range m.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

var _ Repository = (*memoryAuthRepo)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	issuer := NewTokenIssuer("test-secret", time.Hour)
	return NewService(repo, issuer, nil, discardLogger(), nil, true)
}

func registerAndLogin(t *testing.T, svc *Service, repo *memoryAuthRepo) (*User, *TokenPair) {
	t.Helper()
	ctx := context.Background()
	user, err := svc.Register(ctx, "wali@sekolah.test", "Wali Kelas", "rahasia-123", 1)
	require.NoError(t, err)
	pair, err := svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{IPAddress: "10.0.0.9", UserAgent: "ujian"})
	require.NoError(t, err)
	return user, pair
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, "wali@sekolah.test", "Wali Kelas", "rahasia-123", 1)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "wali@sekolah.test", "salah", ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrInvalidCredentials))

	_, err = svc.Login(ctx, "tidak-ada@sekolah.test", "rahasia-123", ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrInvalidCredentials), "unknown email must look like a wrong password")
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, "wali@sekolah.test", "Wali Kelas", "rahasia-123", 1)
	require.NoError(t, err)
	require.NoError(t, repo.SetUserActive(ctx, user.ID, false))

	_, err = svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrInvalidCredentials))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, "wali@sekolah.test", "Wali Kelas", "rahasia-123", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "wali@sekolah.test", "Penyusup", "rahasia-456", 1)
	require.True(t, errors.Is(err, shared.ErrDuplicate))
}

func TestRefreshIsSingleUse(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, first := registerAndLogin(t, svc, repo)

	second, err := svc.Refresh(ctx, first.RefreshToken, ClientInfo{})
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Replaying the spent token must fail.
	_, err = svc.Refresh(ctx, first.RefreshToken, ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrUnauthenticated))

	// The rotated token keeps working.
	third, err := svc.Refresh(ctx, second.RefreshToken, ClientInfo{})
	require.NoError(t, err)
	require.NotEqual(t, second.RefreshToken, third.RefreshToken)
}

func TestRefreshLeavesOtherSessionsIntact(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, "wali@sekolah.test", "Wali Kelas", "rahasia-123", 1)
	require.NoError(t, err)

	// Three independent logins, three independent sessions.
	var pairs []*TokenPair
	for i := 0; i < 3; i++ {
		pair, err := svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{})
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}
	require.Equal(t, 3, repo.sessionCount(user.ID))

	// Rotating the first session does not touch the others.
	rotated, err := svc.Refresh(ctx, pairs[0].RefreshToken, ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, 3, repo.sessionCount(user.ID))

	_, err = svc.Refresh(ctx, pairs[0].RefreshToken, ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrUnauthenticated))

	for _, pair := range pairs[1:] {
		_, err := svc.Refresh(ctx, pair.RefreshToken, ClientInfo{})
		require.NoError(t, err)
	}
	_, err = svc.Refresh(ctx, rotated.RefreshToken, ClientInfo{})
	require.NoError(t, err)
}

func TestRefreshDoesNotGrowSessionCount(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	user, pair := registerAndLogin(t, svc, repo)

	for i := 0; i < 5; i++ {
		next, err := svc.Refresh(ctx, pair.RefreshToken, ClientInfo{})
		require.NoError(t, err)
		pair = next
	}
	require.Equal(t, 1, repo.sessionCount(user.ID))
}

func TestRefreshCarriesClientMetadata(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, pair := registerAndLogin(t, svc, repo)

	next, err := svc.Refresh(ctx, pair.RefreshToken, ClientInfo{})
	require.NoError(t, err)

	sess, ok := repo.sessions[HashToken(next.RefreshToken)]
	require.True(t, ok)
	require.Equal(t, "10.0.0.9", sess.IPAddress)
	require.Equal(t, "ujian", sess.UserAgent)
}

func TestRefreshExpiredSession(t *testing.T) {
	repo := newMemoryAuthRepo()
	issuer := NewTokenIssuer("test-secret", -time.Minute)
	svc := NewService(repo, issuer, nil, discardLogger(), nil, false)
	ctx := context.Background()

	user, err := svc.Register(ctx, "wali@sekolah.test", "Wali Kelas", "rahasia-123", 1)
	require.NoError(t, err)
	pair, err := svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.RefreshToken, ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestLogoutIsIdempotent(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	user, pair := registerAndLogin(t, svc, repo)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.Equal(t, 0, repo.sessionCount(user.ID))
	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, err := svc.Refresh(ctx, pair.RefreshToken, ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestChangePasswordInvalidatesSessions(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	user, pair := registerAndLogin(t, svc, repo)
	other, err := svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, 2, repo.sessionCount(user.ID))

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "rahasia-123", "rahasia-baru"))
	require.Equal(t, 0, repo.sessionCount(user.ID))

	for _, token := range []string{pair.RefreshToken, other.RefreshToken} {
		_, err := svc.Refresh(ctx, token, ClientInfo{})
		require.True(t, errors.Is(err, shared.ErrUnauthenticated))
	}

	_, err = svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrInvalidCredentials))
	_, err = svc.Login(ctx, user.Email, "rahasia-baru", ClientInfo{})
	require.NoError(t, err)
}

func TestChangePasswordWrongOld(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	user, _ := registerAndLogin(t, svc, repo)

	err := svc.ChangePassword(ctx, user.ID, "salah", "rahasia-baru")
	require.True(t, errors.Is(err, shared.ErrInvalidCredentials))
	require.Equal(t, 1, repo.sessionCount(user.ID), "failed change must not touch sessions")
}

func TestChangeEmailInvalidatesSessions(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	user, pair := registerAndLogin(t, svc, repo)

	require.NoError(t, svc.ChangeEmail(ctx, user.ID, "baru@sekolah.test"))
	require.Equal(t, 0, repo.sessionCount(user.ID))

	_, err := svc.Refresh(ctx, pair.RefreshToken, ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestLockoutDeactivatesAndRevokes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryAuthRepo()
	issuer := NewTokenIssuer("test-secret", time.Hour)
	lockout := NewLockout(client, 3, time.Minute)
	svc := NewService(repo, issuer, lockout, discardLogger(), nil, false)
	ctx := context.Background()

	user, err := svc.Register(ctx, "wali@sekolah.test", "Wali Kelas", "rahasia-123", 1)
	require.NoError(t, err)
	pair, err := svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, user.Email, "salah", ClientInfo{})
		require.True(t, errors.Is(err, shared.ErrInvalidCredentials))
	}

	locked, err := repo.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, locked.IsActive)
	require.Equal(t, 0, repo.sessionCount(user.ID))

	// The correct password no longer helps, and the old session is gone.
	_, err = svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrInvalidCredentials))
	_, err = svc.Refresh(ctx, pair.RefreshToken, ClientInfo{})
	require.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestLockoutResetsOnSuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryAuthRepo()
	issuer := NewTokenIssuer("test-secret", time.Hour)
	lockout := NewLockout(client, 3, time.Minute)
	svc := NewService(repo, issuer, lockout, discardLogger(), nil, false)
	ctx := context.Background()

	user, err := svc.Register(ctx, "wali@sekolah.test", "Wali Kelas", "rahasia-123", 1)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, user.Email, "salah", ClientInfo{})
		require.True(t, errors.Is(err, shared.ErrInvalidCredentials))
	}
	_, err = svc.Login(ctx, user.Email, "rahasia-123", ClientInfo{})
	require.NoError(t, err)

	// Two more failures start a fresh window instead of finishing the old one.
	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, user.Email, "salah", ClientInfo{})
		require.True(t, errors.Is(err, shared.ErrInvalidCredentials))
	}
	current, err := repo.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, current.IsActive)
}

func TestLoadPrincipal(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	user, _ := registerAndLogin(t, svc, repo)

	p, err := svc.LoadPrincipal(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, p.UserID)
	require.Equal(t, user.Email, p.Email)

	require.NoError(t, repo.SetUserActive(ctx, user.ID, false))
	_, err = svc.LoadPrincipal(ctx, user.ID)
	require.True(t, errors.Is(err, shared.ErrUnauthenticated))

	_, err = svc.LoadPrincipal(ctx, 9999)
	require.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestSweepExpiredSessions(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, Session{ID: "stale", UserID: 1, TokenHash: "a", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, repo.CreateSession(ctx, Session{ID: "live", UserID: 1, TokenHash: "b", ExpiresAt: time.Now().Add(time.Hour)}))

	n, err := svc.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 1, repo.sessionCount(1))
}
