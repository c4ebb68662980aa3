package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"securesign/internal/repositories"
	"securesign/internal/utils"
)

// PasswordResetService issues and redeems one-time reset tokens. Tokens live
// on the account row; issuing a new one replaces the previous token.
type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type passwordResetService struct {
	userRepo repositories.UserRepository
	emails   EmailService
	auth     AuthService
	tokens   *utils.TokenGenerator

	clientURL            string
	hideAccountExistence bool
	now                  func() time.Time
	log                  *slog.Logger
}

func NewPasswordResetService(
	userRepo repositories.UserRepository,
	emails EmailService,
	auth AuthService,
	tokens *utils.TokenGenerator,
	opts UserServiceOptions,
) PasswordResetService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if tokens == nil {
		tokens = utils.NewTokenGenerator(0, 0)
	}
	return &passwordResetService{
		userRepo:             userRepo,
		emails:               emails,
		auth:                 auth,
		tokens:               tokens,
		clientURL:            strings.TrimRight(opts.ClientURL, "/"),
		hideAccountExistence: opts.HideAccountExistence,
		now:                  opts.Now,
		log:                  opts.Logger.With("component", "password-reset"),
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return validationError("Email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			if s.hideAccountExistence {
				s.log.InfoContext(ctx, "reset requested for unknown email", "email", email)
				return nil
			}
			return ErrAccountNotFound
		}
		return internalError("RESET_REQUEST_FAILED", "GetByEmail", err)
	}

	token, exp, err := s.tokens.NewResetToken(s.now())
	if err != nil {
		return internalError("RESET_REQUEST_FAILED", "NewResetToken", err)
	}
	if err := s.userRepo.SetResetToken(ctx, user.ID, token, exp); err != nil {
		return internalError("RESET_REQUEST_FAILED", "SetResetToken", err)
	}

	if err := s.emails.SendPasswordResetEmail(user.Email, s.resetURL(token)); err != nil {
		s.log.WarnContext(ctx, "reset token stored but email failed",
			"user_id", user.ID, "email", user.Email, "err", err)
		return newError(KindNotificationFailed, "Error sending password reset email", err)
	}

	s.log.InfoContext(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return validationError("Token and password are required")
	}
	if len(newPassword) < minPasswordLength {
		return validationError("Password must be at least 6 characters")
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return internalError("RESET_PASSWORD_FAILED", "HashPassword", err)
	}

	// проверка срока и гашение токена одним UPDATE
	user, err := s.userRepo.ConsumeResetToken(ctx, token, hash, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return newError(KindInvalidOrExpired, "Invalid or expired reset token", nil)
		}
		return internalError("RESET_PASSWORD_FAILED", "ConsumeResetToken", err)
	}

	// пароль уже сменён, уведомление best effort
	if err := s.emails.SendResetSuccessEmail(user.Email); err != nil {
		s.log.WarnContext(ctx, "password reset but confirmation email failed",
			"user_id", user.ID, "err", err)
	}

	s.log.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

func (s *passwordResetService) resetURL(token string) string {
	return s.clientURL + "/reset-password/" + url.PathEscape(token)
}
