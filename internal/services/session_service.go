package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"securesign/internal/repositories"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

var ErrInvalidSession = errors.New("invalid or expired session token")

type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// SessionService mints and checks stateless session tokens. The only server
// side state is the optional revocation set consulted after logout.
type SessionService interface {
	Issue(userID int64) (token string, expiresAt time.Time, err error)
	Parse(token string) (*Claims, error)
	Revoke(ctx context.Context, claims *Claims) error
	IsRevoked(ctx context.Context, claims *Claims) (bool, error)
}

type sessionService struct {
	secret  []byte
	ttl     time.Duration
	revoked repositories.SessionRevocationRepository
	now     func() time.Time
}

func NewSessionService(secret []byte, ttl time.Duration, revoked repositories.SessionRevocationRepository, now func() time.Time) SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if revoked == nil {
		revoked = repositories.NewNoopSessionRevocationRepository()
	}
	if now == nil {
		now = time.Now
	}
	return &sessionService{secret: secret, ttl: ttl, revoked: revoked, now: now}
}

func (s *sessionService) Issue(userID int64) (string, time.Time, error) {
	now := s.now()
	// JWT хранит секунды, поэтому срок считаем от усечённого времени
	exp := now.Add(s.ttl).Truncate(time.Second)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, exp, nil
}

func (s *sessionService) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// принимаем только HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

func (s *sessionService) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	return s.revoked.Revoke(ctx, claims.ID, ttl)
}

func (s *sessionService) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	if claims == nil {
		return false, nil
	}
	return s.revoked.IsRevoked(ctx, claims.ID)
}
