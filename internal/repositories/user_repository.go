package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"securesign/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateVerificationCode: код уже выдан другому неподтверждённому аккаунту.
	ErrDuplicateVerificationCode = errors.New("verification code already pending")
)

const (
	// код ошибки Postgres unique_violation
	pqUniqueViolation = "23505"

	verificationCodeConstraint = "users_verification_code_key"
)

// UserRepository is the account store adapter. Every mutation that depends on
// a precondition (code/token match and expiry) is a single conditional write.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ConsumeVerificationCode marks the owner of an unexpired code verified and
	// clears the code in the same statement. ErrNotFound when nothing matched.
	ConsumeVerificationCode(ctx context.Context, code string, now time.Time) (*models.User, error)

	SetResetToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	// ConsumeResetToken swaps the password hash and clears the reset token.
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*models.User, error)

	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `
	id, email, name, password_hash, is_verified,
	verification_code, verification_code_expires_at,
	reset_token, reset_token_expires_at,
	last_login_at, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (
			email, name, password_hash, is_verified,
			verification_code, verification_code_expires_at
		)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRowContext(ctx, q,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.IsVerified,
		user.VerificationCode,
		user.VerificationCodeExpiresAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			if pqErr.Constraint == verificationCodeConstraint {
				return ErrDuplicateVerificationCode
			}
			return ErrDuplicateEmail
		}
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, id), "user get by id")
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, email), "user get by email")
}

func (r *userRepository) ConsumeVerificationCode(ctx context.Context, code string, now time.Time) (*models.User, error) {
	q := `
		UPDATE users
		SET
			is_verified = TRUE,
			verification_code = NULL,
			verification_code_expires_at = NULL,
			updated_at = $2
		WHERE verification_code = $1
		  AND verification_code_expires_at > $2
		RETURNING` + userColumns
	return r.scanOne(r.DB.QueryRowContext(ctx, q, code, now), "user consume verification code")
}

func (r *userRepository) SetResetToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	const q = `
		UPDATE users
		SET reset_token = $1, reset_token_expires_at = $2, updated_at = NOW()
		WHERE id = $3
	`
	res, err := r.DB.ExecContext(ctx, q, token, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("user set reset token: %w", err)
	}
	return expectOneRow(res, "user set reset token")
}

func (r *userRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*models.User, error) {
	q := `
		UPDATE users
		SET
			password_hash = $2,
			reset_token = NULL,
			reset_token_expires_at = NULL,
			updated_at = $3
		WHERE reset_token = $1
		  AND reset_token_expires_at > $3
		RETURNING` + userColumns
	return r.scanOne(r.DB.QueryRowContext(ctx, q, token, passwordHash, now), "user consume reset token")
}

func (r *userRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	const q = `UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, q, at, userID)
	if err != nil {
		return fmt.Errorf("user touch last login: %w", err)
	}
	return expectOneRow(res, "user touch last login")
}

func (r *userRepository) scanOne(row *sql.Row, op string) (*models.User, error) {
	u := &models.User{}
	var (
		code      sql.NullString
		codeExp   sql.NullTime
		reset     sql.NullString
		resetExp  sql.NullTime
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsVerified,
		&code, &codeExp,
		&reset, &resetExp,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if code.Valid && codeExp.Valid {
		s, t := code.String, codeExp.Time
		u.VerificationCode, u.VerificationCodeExpiresAt = &s, &t
	}
	if reset.Valid && resetExp.Valid {
		s, t := reset.String, resetExp.Time
		u.ResetToken, u.ResetTokenExpiresAt = &s, &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
