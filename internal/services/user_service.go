package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"securesign/internal/models"
	"securesign/internal/repositories"
	"securesign/internal/utils"
)

const (
	minPasswordLength = 6
	// попыток выдать код, не занятый другим неподтверждённым аккаунтом
	maxCodeAttempts = 5
)

// SessionResult is what signup and login hand to the transport layer: the
// scrubbed account plus the session token to put into the cookie.
type SessionResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// UserService orchestrates the account lifecycle.
type UserService interface {
	Signup(ctx context.Context, email, password, name string) (*SessionResult, error)
	VerifyEmail(ctx context.Context, code string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*SessionResult, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	CheckAuth(ctx context.Context, userID int64) (*models.User, error)
}

type UserServiceOptions struct {
	// ClientURL is the frontend base used to build reset links.
	ClientURL string
	// HideAccountExistence makes forgot-password succeed silently for unknown emails.
	HideAccountExistence bool
	Now                  func() time.Time
	Logger               *slog.Logger
}

type userService struct {
	repo         repositories.UserRepository
	emailService EmailService
	authService  AuthService
	sessions     SessionService
	tokens       *utils.TokenGenerator
	resets       PasswordResetService

	now func() time.Time
	log *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(
	repo repositories.UserRepository,
	emailService EmailService,
	authService AuthService,
	sessions SessionService,
	tokens *utils.TokenGenerator,
	opts UserServiceOptions,
) UserService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if tokens == nil {
		tokens = utils.NewTokenGenerator(0, 0)
	}
	return &userService{
		repo:         repo,
		emailService: emailService,
		authService:  authService,
		sessions:     sessions,
		tokens:       tokens,
		resets:       NewPasswordResetService(repo, emailService, authService, tokens, opts),
		now:          opts.Now,
		log:          opts.Logger.With("component", "auth"),
	}
}

func (s *userService) Signup(ctx context.Context, email, password, name string) (*SessionResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, validationError("All fields are required")
	}
	if !looksLikeEmail(email) {
		return nil, validationError("Invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, validationError("Password must be at least 6 characters")
	}

	hash, err := s.authService.HashPassword(password)
	if err != nil {
		return nil, internalError("SIGNUP_HASH_FAILED", "HashPassword", err)
	}

	var (
		user *models.User
		code string
	)
	for attempt := 1; ; attempt++ {
		var codeExp time.Time
		code, codeExp, err = s.tokens.NewVerificationCode(s.now())
		if err != nil {
			return nil, internalError("SIGNUP_CODE_FAILED", "NewVerificationCode", err)
		}
		user = &models.User{
			Email:                     email,
			Name:                      name,
			PasswordHash:              hash,
			VerificationCode:          &code,
			VerificationCodeExpiresAt: &codeExp,
		}
		// уникальность email и ожидающего кода гарантирует хранилище
		err = s.repo.Create(ctx, user)
		if err == nil {
			break
		}
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			s.log.InfoContext(ctx, "signup rejected: duplicate email", "email", email)
			return nil, ErrDuplicateAccount
		}
		if errors.Is(err, repositories.ErrDuplicateVerificationCode) && attempt < maxCodeAttempts {
			s.log.DebugContext(ctx, "verification code collision, regenerating", "attempt", attempt)
			continue
		}
		return nil, internalError("SIGNUP_CREATE_FAILED", "Create", err)
	}

	token, tokenExp, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, internalError("SIGNUP_SESSION_FAILED", "Issue", err)
	}

	if err := s.emailService.SendVerificationEmail(user.Email, code); err != nil {
		s.log.WarnContext(ctx, "signup committed but verification email failed",
			"user_id", user.ID, "email", user.Email, "err", err)
		return nil, newError(KindNotificationFailed, "Error sending verification email", err)
	}

	s.log.InfoContext(ctx, "signup ok", "user_id", user.ID, "email", user.Email)
	return &SessionResult{User: scrub(user), Token: token, ExpiresAt: tokenExp}, nil
}

func (s *userService) VerifyEmail(ctx context.Context, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationError("Verification code is required")
	}

	user, err := s.repo.ConsumeVerificationCode(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(KindInvalidOrExpired, "Invalid or expired verification code", nil)
		}
		return nil, internalError("VERIFY_EMAIL_FAILED", "ConsumeVerificationCode", err)
	}

	if err := s.emailService.SendWelcomeEmail(user.Email, user.Name); err != nil {
		s.log.WarnContext(ctx, "email verified but welcome email failed",
			"user_id", user.ID, "email", user.Email, "err", err)
		return nil, newError(KindNotificationFailed, "Error sending welcome email", err)
	}

	s.log.InfoContext(ctx, "email verified", "user_id", user.ID)
	return scrub(user), nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*SessionResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("Email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// тратим столько же времени, сколько на проверку реального хеша
			s.authService.CheckPassword(password, s.dummyPasswordHash())
			s.log.InfoContext(ctx, "login failed: unknown email", "email", email)
			return nil, ErrInvalidCredentials
		}
		return nil, internalError("LOGIN_LOOKUP_FAILED", "GetByEmail", err)
	}

	if !s.authService.CheckPassword(password, user.PasswordHash) {
		s.log.InfoContext(ctx, "login failed: password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	token, tokenExp, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, internalError("LOGIN_SESSION_FAILED", "Issue", err)
	}

	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, internalError("LOGIN_TOUCH_FAILED", "TouchLastLogin", err)
	}
	user.LastLoginAt = &now

	s.log.InfoContext(ctx, "login ok", "user_id", user.ID)
	return &SessionResult{User: scrub(user), Token: token, ExpiresAt: tokenExp}, nil
}

// Logout always succeeds. A still-valid token is added to the revocation set
// when one is configured.
func (s *userService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.sessions.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims); err != nil {
		s.log.WarnContext(ctx, "logout: session revoke failed", "user_id", claims.UserID, "err", err)
	}
	return nil
}

func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	return s.resets.RequestReset(ctx, email)
}

func (s *userService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.resets.ResetPassword(ctx, token, newPassword)
}

func (s *userService) CheckAuth(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError("CHECK_AUTH_FAILED", "GetByID", err)
	}
	return scrub(user), nil
}

func (s *userService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.authService.HashPassword("securesign-dummy-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func scrub(u *models.User) *models.User {
	c := u.Clone()
	c.PasswordHash = ""
	c.VerificationCode = nil
	c.VerificationCodeExpiresAt = nil
	c.ResetToken = nil
	c.ResetTokenExpiresAt = nil
	return c
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func looksLikeEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
