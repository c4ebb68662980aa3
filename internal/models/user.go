package models

import "time"

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"` // не отдаём наружу
	IsVerified   bool   `json:"isVerified"`

	// одноразовые секреты: код и срок живут только парой
	VerificationCode          *string    `json:"-"`
	VerificationCodeExpiresAt *time.Time `json:"-"`
	ResetToken                *string    `json:"-"`
	ResetTokenExpiresAt       *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy so callers can't mutate stored pointers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.VerificationCode = cloneString(u.VerificationCode)
	c.VerificationCodeExpiresAt = cloneTime(u.VerificationCodeExpiresAt)
	c.ResetToken = cloneString(u.ResetToken)
	c.ResetTokenExpiresAt = cloneTime(u.ResetTokenExpiresAt)
	c.LastLoginAt = cloneTime(u.LastLoginAt)
	return &c
}

// HasPendingVerification reports whether a verification code is still stored.
func (u *User) HasPendingVerification() bool {
	return u.VerificationCode != nil && u.VerificationCodeExpiresAt != nil
}

// HasPendingReset reports whether a reset token is stored (the ResetPending sub-state).
func (u *User) HasPendingReset() bool {
	return u.ResetToken != nil && u.ResetTokenExpiresAt != nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyEmailRequest struct {
	Code string `json:"code"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}
