package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// Admin errors.
var (
	ErrAdminNotFound     = errors.New("admin user not found")
	ErrChallengeNotFound = errors.New("otp challenge not found")
)

// OTPChallenge is a pending one-time code for an admin login.
type OTPChallenge struct {
	ID        string
	AdminID   int64
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
}

// AdminRepository handles admin users and their pending one-time codes.
type AdminRepository struct {
	q db.Querier
}

// NewAdminRepository creates a new AdminRepository instance.
func NewAdminRepository(q db.Querier) *AdminRepository {
	return &AdminRepository{q: q}
}

const adminColumns = `id, username, password_hash, telegram_user_id, is_active, created_at`

func scanAdmin(row pgx.Row) (*model.AdminUser, error) {
	var a model.AdminUser
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.TelegramID, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an admin user.
func (r *AdminRepository) Create(ctx context.Context, username, passwordHash string, telegramID int64) (*model.AdminUser, error) {
	query := `
		INSERT INTO admin_users (username, password_hash, telegram_user_id)
		VALUES ($1, $2, $3)
		RETURNING ` + adminColumns

	a, err := scanAdmin(r.q.QueryRow(ctx, query, username, passwordHash, telegramID))
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return a, nil
}

// GetByUsername returns an admin by login name.
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*model.AdminUser, error) {
	return r.getOne(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE username = $1`, username)
}

// GetByID returns an admin by id.
func (r *AdminRepository) GetByID(ctx context.Context, id int64) (*model.AdminUser, error) {
	return r.getOne(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1`, id)
}

func (r *AdminRepository) getOne(ctx context.Context, query string, arg any) (*model.AdminUser, error) {
	a, err := scanAdmin(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return a, nil
}

// CreateChallenge stores a pending code.
func (r *AdminRepository) CreateChallenge(ctx context.Context, c *OTPChallenge) error {
	const query = `
		INSERT INTO admin_otp_codes (challenge_id, admin_id, code_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.q.Exec(ctx, query, c.ID, c.AdminID, c.CodeHash, c.ExpiresAt); err != nil {
		return fmt.Errorf("failed to create otp challenge: %w", err)
	}
	return nil
}

// GetChallenge returns a pending code, expired or not.
func (r *AdminRepository) GetChallenge(ctx context.Context, id string) (*OTPChallenge, error) {
	const query = `
		SELECT challenge_id, admin_id, code_hash, attempts, expires_at
		FROM admin_otp_codes WHERE challenge_id = $1
	`
	var c OTPChallenge
	err := r.q.QueryRow(ctx, query, id).Scan(&c.ID, &c.AdminID, &c.CodeHash, &c.Attempts, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get otp challenge: %w", err)
	}
	return &c, nil
}

// ReplaceCode swaps the code of a challenge. Expiry and attempt count are kept.
func (r *AdminRepository) ReplaceCode(ctx context.Context, id, codeHash string) error {
	const query = `UPDATE admin_otp_codes SET code_hash = $2 WHERE challenge_id = $1`

	tag, err := r.q.Exec(ctx, query, id, codeHash)
	if err != nil {
		return fmt.Errorf("failed to replace otp code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

// IncrementAttempts counts a failed verification and returns the new count.
func (r *AdminRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	const query = `UPDATE admin_otp_codes SET attempts = attempts + 1 WHERE challenge_id = $1 RETURNING attempts`

	var n int
	if err := r.q.QueryRow(ctx, query, id).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrChallengeNotFound
		}
		return 0, fmt.Errorf("failed to count otp attempt: %w", err)
	}
	return n, nil
}

// DeleteChallenge removes a challenge.
func (r *AdminRepository) DeleteChallenge(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM admin_otp_codes WHERE challenge_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete otp challenge: %w", err)
	}
	return nil
}

// PurgeExpired deletes challenges that expired before now.
func (r *AdminRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM admin_otp_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge otp challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}
