package services

import (
	"fmt"
	"html"
	"log/slog"

	"gopkg.in/gomail.v2"

	"securesign/internal/metrics"
)

const companyName = "SecureSign"

// EmailService is the notification gateway. Delivery is attempted once; the
// caller decides what a failure means.
type EmailService interface {
	SendVerificationEmail(email, code string) error
	SendWelcomeEmail(email, name string) error
	SendPasswordResetEmail(email, resetURL string) error
	SendResetSuccessEmail(email string) error
}

// MailSender is satisfied by *gomail.Dialer.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	sender  MailSender
	from    string
	dryRun  bool
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, dryRun bool, log *slog.Logger, m *metrics.Metrics) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return NewEmailServiceWithSender(dialer, fromEmail, dryRun, log, m)
}

func NewEmailServiceWithSender(sender MailSender, fromEmail string, dryRun bool, log *slog.Logger, m *metrics.Metrics) EmailService {
	if log == nil {
		log = slog.Default()
	}
	return &emailService{
		sender:  sender,
		from:    fromEmail,
		dryRun:  dryRun,
		log:     log.With("component", "email"),
		metrics: m,
	}
}

func (s *emailService) SendVerificationEmail(email, code string) error {
	body := fmt.Sprintf(`
		<h2>Verify your email</h2>
		<p>Thank you for signing up with %s.</p>
		<p>Your verification code is: <strong style="font-size:28px;letter-spacing:4px">%s</strong></p>
		<p>Enter this code on the verification page to complete your registration.</p>
		<p>This code expires shortly for security reasons.</p>
		<p>If you didn't create an account with us, please ignore this email.</p>
	`, companyName, html.EscapeString(code))

	if err := s.send("verification", email, "Verify your email", body); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

func (s *emailService) SendWelcomeEmail(email, name string) error {
	body := fmt.Sprintf(`
		<h2>Welcome to %s, %s!</h2>
		<p>Your email address has been verified and your account is ready.</p>
		<p>Best regards,<br>The %s Team</p>
	`, companyName, html.EscapeString(name), companyName)

	if err := s.send("welcome", email, "Welcome to "+companyName+"!", body); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

func (s *emailService) SendPasswordResetEmail(email, resetURL string) error {
	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p><a href="%s">Reset Password</a></p>
		<p>This link will expire in 1 hour.</p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, html.EscapeString(resetURL))

	if err := s.send("password_reset", email, "Reset your password", body); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

func (s *emailService) SendResetSuccessEmail(email string) error {
	body := `
		<h3>Password reset successful</h3>
		<p>Your password has been changed.</p>
		<p>If you did not initiate this change, please contact support immediately.</p>
	`
	if err := s.send("password_reset_success", email, "Password reset successful", body); err != nil {
		return fmt.Errorf("failed to send password reset success email: %w", err)
	}
	return nil
}

func (s *emailService) send(template, to, subject, body string) error {
	if s.dryRun || s.sender == nil {
		// dry-run: письмо не отправляем, только пишем в лог
		s.log.Info("email dry-run", "template", template, "to", to, "subject", subject, "body", body)
		s.metrics.ObserveNotification(template, nil)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	err := s.sender.DialAndSend(m)
	s.metrics.ObserveNotification(template, err)
	if err != nil {
		return err
	}
	s.log.Info("email sent", "template", template, "to", to)
	return nil
}
