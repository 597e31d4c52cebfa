package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/akademika-id/akademika/internal/observability"
	"github.com/akademika-id/akademika/internal/shared"
)

// ClientInfo carries request metadata captured alongside a session.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Service wraps the session and credential business rules.
type Service struct {
	repo           Repository
	tokens         *TokenIssuer
	lockout        *Lockout
	logger         *slog.Logger
	metrics        *observability.Metrics
	captureClients bool
}

// NewService constructs a new Service. lockout and metrics may be nil.
func NewService(repo Repository, tokens *TokenIssuer, lockout *Lockout, logger *slog.Logger, metrics *observability.Metrics, captureClients bool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		tokens:         tokens,
		lockout:        lockout,
		logger:         logger,
		metrics:        metrics,
		captureClients: captureClients,
	}
}

// Register creates a new account with a hashed password.
func (s *Service) Register(ctx context.Context, email, name, password string, roleID int64) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		s.logger.Error("register hash", slog.Any("error", err))
		return nil, fmt.Errorf("auth: register: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, email, name, hash, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return nil, shared.ErrDuplicate
		}
		s.logger.Error("register create user", slog.Any("error", err))
		return nil, fmt.Errorf("auth: register: %w", err)
	}
	return user, nil
}

// Login validates credentials and opens a new session. Every failure mode
// collapses to ErrInvalidCredentials so the caller cannot probe which check
// failed; the distinguishing reason is logged for operators.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*TokenPair, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("login unknown email")
			s.observeLogin(false)
			return nil, shared.ErrInvalidCredentials
		}
		s.logger.Error("login lookup", slog.Any("error", err))
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	if !user.IsActive {
		s.logger.Warn("login inactive account", slog.Int64("user_id", user.ID))
		s.observeLogin(false)
		return nil, shared.ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		s.noteFailure(ctx, user)
		s.observeLogin(false)
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.lockout.Reset(ctx, email); err != nil {
		s.logger.Warn("lockout reset", slog.Any("error", err))
	}

	pair, err := s.openSession(ctx, user, client)
	if err != nil {
		return nil, err
	}
	s.observeLogin(true)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The matched session is
// deleted before anything else so a replay of the same token always fails,
// even under concurrent presentation. A failure after that deletion forces a
// fresh login rather than resurrecting the spent session.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*TokenPair, error) {
	sess, err := s.repo.ClaimSessionByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.observeRefresh(false)
			return nil, shared.ErrUnauthenticated
		}
		s.logger.Error("refresh claim session", slog.Any("error", err))
		return nil, fmt.Errorf("auth: refresh: %w", err)
	}

	user, err := s.repo.FindUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Session without an owner is a consistency fault, not a
			// caller mistake.
			s.logger.Error("refresh orphan session", slog.Int64("user_id", sess.UserID), slog.String("session_id", sess.ID))
			return nil, fmt.Errorf("auth: refresh: orphan session %s", sess.ID)
		}
		s.logger.Error("refresh load user", slog.Any("error", err))
		return nil, fmt.Errorf("auth: refresh: %w", err)
	}
	if !user.IsActive {
		s.observeRefresh(false)
		return nil, shared.ErrUnauthenticated
	}

	// New sessions keep the original client metadata when the caller
	// provided none, so device history survives rotation.
	if client.IPAddress == "" {
		client.IPAddress = sess.IPAddress
	}
	if client.UserAgent == "" {
		client.UserAgent = sess.UserAgent
	}

	pair, err := s.openSession(ctx, user, client)
	if err != nil {
		return nil, err
	}
	s.observeRefresh(true)
	return pair, nil
}

// Logout deletes the session matching the refresh token. Unknown tokens are
// ignored; repeated logout is harmless.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.DeleteSessionByTokenHash(ctx, HashToken(refreshToken)); err != nil {
		s.logger.Error("logout delete session", slog.Any("error", err))
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}

// ChangePassword rotates the credential and synchronously invalidates every
// session of the user before returning, so an in-flight refresh against the
// old credential cannot win the race.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, oldPassword); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		s.logger.Error("change password hash", slog.Any("error", err))
		return fmt.Errorf("auth: change password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		s.logger.Error("change password update", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("auth: change password: %w", err)
	}
	return s.InvalidateAllSessions(ctx, userID)
}

// ChangeEmail rotates the login credential and invalidates every session.
func (s *Service) ChangeEmail(ctx context.Context, userID int64, newEmail string) error {
	if err := s.repo.UpdateEmail(ctx, userID, newEmail); err != nil {
		if errors.Is(err, shared.ErrDuplicate) || errors.Is(err, shared.ErrNotFound) {
			return err
		}
		s.logger.Error("change email update", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("auth: change email: %w", err)
	}
	return s.InvalidateAllSessions(ctx, userID)
}

// InvalidateAllSessions deletes every session owned by the user.
func (s *Service) InvalidateAllSessions(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteSessionsByUser(ctx, userID); err != nil {
		s.logger.Error("invalidate sessions", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("auth: invalidate sessions: %w", err)
	}
	return nil
}

// LoadPrincipal resolves the user's current identity and role from the store.
// The authorization gate uses this instead of trusting role claims baked into
// the access token, so a role change takes effect on the next request.
func (s *Service) LoadPrincipal(ctx context.Context, userID int64) (*shared.Principal, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrUnauthenticated
	}
	return &shared.Principal{
		UserID:   user.ID,
		Email:    user.Email,
		RoleID:   user.RoleID,
		RoleName: user.RoleName,
	}, nil
}

// SweepExpiredSessions deletes sessions past their expiry.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx)
}

func (s *Service) openSession(ctx context.Context, user *User, client ClientInfo) (*TokenPair, error) {
	pair, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("issue tokens", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, fmt.Errorf("auth: issue: %w", err)
	}
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: HashToken(pair.RefreshToken),
		CreatedAt: time.Now(),
		ExpiresAt: pair.ExpiresAt,
	}
	if s.captureClients {
		sess.IPAddress = client.IPAddress
		sess.UserAgent = client.UserAgent
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		s.logger.Error("create session", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, fmt.Errorf("auth: create session: %w", err)
	}
	return pair, nil
}

// noteFailure records a failed password check and locks the account when the
// threshold is crossed. Locking deactivates the account and revokes every
// outstanding session before the caller sees the login response.
func (s *Service) noteFailure(ctx context.Context, user *User) {
	s.logger.Warn("login password mismatch", slog.Int64("user_id", user.ID))
	locked, err := s.lockout.Note(ctx, user.Email)
	if err != nil {
		s.logger.Warn("lockout note", slog.Any("error", err))
		return
	}
	if !locked {
		return
	}
	s.logger.Warn("account locked", slog.Int64("user_id", user.ID))
	if err := s.repo.SetUserActive(ctx, user.ID, false); err != nil {
		s.logger.Error("lockout deactivate", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	if err := s.InvalidateAllSessions(ctx, user.ID); err != nil {
		s.logger.Error("lockout invalidate", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
}

func (s *Service) observeLogin(success bool) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(success)
	}
}

func (s *Service) observeRefresh(success bool) {
	if s.metrics != nil {
		s.metrics.ObserveRefresh(success)
	}
}
