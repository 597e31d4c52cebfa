package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akademika-id/akademika/internal/shared"
)

// Repository defines persistence operations for the auth module. Session rows
// are owned exclusively by this repository; nothing else mutates them.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, email, name, passwordHash string, roleID int64) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	UpdateEmail(ctx context.Context, userID int64, email string) error
	SetUserActive(ctx context.Context, userID int64, active bool) error

	CreateSession(ctx context.Context, sess Session) error
	// ClaimSessionByTokenHash atomically deletes and returns the unexpired
	// session matching the hash. Two concurrent claims of the same token
	// yield at most one session; the loser gets ErrNotFound.
	ClaimSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteSessionsByUser(ctx context.Context, userID int64) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `u.id, u.email, u.name, u.password_hash, u.role_id, COALESCE(r.name, ''), u.is_active, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.RoleID, &user.RoleName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByEmail fetches a user together with its current role name.
func (r *PGRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u LEFT JOIN roles r ON r.id = u.role_id WHERE u.email = $1`, email)
	return scanUser(row)
}

// FindUserByID fetches a user together with its current role name.
func (r *PGRepository) FindUserByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u LEFT JOIN roles r ON r.id = u.role_id WHERE u.id = $1`, id)
	return scanUser(row)
}

// CreateUser inserts a new account. Duplicate emails map to ErrDuplicate.
func (r *PGRepository) CreateUser(ctx context.Context, email, name, passwordHash string, roleID int64) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, role_id, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, TRUE, now(), now())
		 RETURNING id, email, name, password_hash, role_id, '', is_active, created_at, updated_at`,
		email, name, passwordHash, roleID)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// UpdatePasswordHash stores a new password hash.
func (r *PGRepository) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateEmail stores a new credential email.
func (r *PGRepository) UpdateEmail(ctx context.Context, userID int64, email string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $2, updated_at = now() WHERE id = $1`, userID, email)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetUserActive toggles the account's active state.
func (r *PGRepository) SetUserActive(ctx context.Context, userID int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateSession persists a new login session.
func (r *PGRepository) CreateSession(ctx context.Context, sess Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token_hash, user_agent, ip_address, created_at, expires_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
		sess.ID, sess.UserID, sess.TokenHash, sess.UserAgent, sess.IPAddress, sess.CreatedAt, sess.ExpiresAt)
	return err
}

// ClaimSessionByTokenHash deletes and returns the matching unexpired session
// in a single statement. Expired rows are left for the sweep and reported as
// not found.
func (r *PGRepository) ClaimSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	row := r.pool.QueryRow(ctx,
		`DELETE FROM sessions
		 WHERE refresh_token_hash = $1 AND expires_at > $2
		 RETURNING id, user_id, refresh_token_hash, COALESCE(user_agent, ''), COALESCE(ip_address, ''), created_at, expires_at`,
		tokenHash, time.Now())
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.UserAgent, &sess.IPAddress, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// DeleteSessionByTokenHash removes a session on logout. Unknown hashes are
// not an error; logout is idempotent.
func (r *PGRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_token_hash = $1`, tokenHash)
	return err
}

// DeleteSessionsByUser removes every session owned by the user.
func (r *PGRepository) DeleteSessionsByUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// DeleteExpiredSessions sweeps rows past their expiry.
func (r *PGRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, time.Now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
