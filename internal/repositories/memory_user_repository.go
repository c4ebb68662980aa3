package repositories

import (
	"context"
	"sync"
	"time"

	"securesign/internal/models"
	"securesign/internal/utils"
)

// memoryUserRepository keeps accounts in process memory. One mutex covers every
// operation, which gives the same uniqueness (email, pending code) and
// single-redemption guarantees as the conditional SQL statements.
type memoryUserRepository struct {
	mu      sync.Mutex
	seq     int64
	byID    map[int64]*models.User
	byEmail map[string]int64
}

func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byID:    make(map[int64]*models.User),
		byEmail: make(map[string]int64),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	if user.VerificationCode != nil {
		for _, u := range r.byID {
			if u.VerificationCode != nil && *u.VerificationCode == *user.VerificationCode {
				return ErrDuplicateVerificationCode
			}
		}
	}
	r.seq++
	now := time.Now()
	user.ID = r.seq
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = user.Clone()
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *memoryUserRepository) ConsumeVerificationCode(ctx context.Context, code string, now time.Time) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.VerificationCode == nil || *u.VerificationCode != code {
			continue
		}
		if !utils.IsUnexpired(u.VerificationCodeExpiresAt, now) {
			continue
		}
		u.IsVerified = true
		u.VerificationCode = nil
		u.VerificationCodeExpiresAt = nil
		u.UpdatedAt = now
		return u.Clone(), nil
	}
	return nil, ErrNotFound
}

func (r *memoryUserRepository) SetResetToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	exp := expiresAt
	u.ResetToken = &token
	u.ResetTokenExpiresAt = &exp
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memoryUserRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.ResetToken == nil || *u.ResetToken != token {
			continue
		}
		if !utils.IsUnexpired(u.ResetTokenExpiresAt, now) {
			continue
		}
		u.PasswordHash = passwordHash
		u.ResetToken = nil
		u.ResetTokenExpiresAt = nil
		u.UpdatedAt = now
		return u.Clone(), nil
	}
	return nil, ErrNotFound
}

func (r *memoryUserRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	t := at
	u.LastLoginAt = &t
	u.UpdatedAt = at
	return nil
}
