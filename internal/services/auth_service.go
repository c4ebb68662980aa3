package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// AuthService is the credential hasher.
type AuthService interface {
	HashPassword(password string) (string, error)
	// CheckPassword never errors: mismatch and malformed hashes are both false.
	CheckPassword(password, hash string) bool
}

type authService struct {
	cost int
}

// NewAuthService uses bcrypt.DefaultCost when cost is out of bcrypt's range.
func NewAuthService(cost int) AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &authService{cost: cost}
}

func (s *authService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *authService) CheckPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
