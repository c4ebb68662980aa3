package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultVerificationCodeTTL = 60 * time.Second
	DefaultResetTokenTTL       = time.Hour

	// 20 байт = 160 бит энтропии, 40 hex-символов
	ResetTokenBytes = 20

	verificationCodeMin  = 100000
	verificationCodeSpan = 900000 // 100000..999999
)

func NewRefreshToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32 // 256 бит по умолчанию
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// TokenGenerator issues one-time secrets with their expiry instants.
type TokenGenerator struct {
	CodeTTL  time.Duration
	ResetTTL time.Duration
}

func NewTokenGenerator(codeTTL, resetTTL time.Duration) *TokenGenerator {
	if codeTTL <= 0 {
		codeTTL = DefaultVerificationCodeTTL
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	return &TokenGenerator{CodeTTL: codeTTL, ResetTTL: resetTTL}
}

// NewVerificationCode returns a uniformly drawn 6-digit code and now+CodeTTL.
func (g *TokenGenerator) NewVerificationCode(now time.Time) (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeSpan))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("verification code: %w", err)
	}
	code := fmt.Sprintf("%06d", verificationCodeMin+n.Int64())
	return code, now.Add(g.CodeTTL), nil
}

// NewResetToken returns a 160-bit hex token and now+ResetTTL.
func (g *TokenGenerator) NewResetToken(now time.Time) (string, time.Time, error) {
	token, err := NewRefreshToken(ResetTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reset token: %w", err)
	}
	return token, now.Add(g.ResetTTL), nil
}

// IsUnexpired is the single expiry rule for codes and reset tokens.
func IsUnexpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.After(now)
}
