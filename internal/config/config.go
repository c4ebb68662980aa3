package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config/config.yaml"
	EnvPrefix   = "SECURESIGN_"
)

type ServerConfig struct {
	Port int `yaml:"port" env:"PORT"`
}

type DatabaseConfig struct {
	// пустой DSN: аккаунты хранятся в памяти процесса
	DSN          string `yaml:"url" env:"URL"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int    `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	FromEmail    string `yaml:"from_email" env:"FROM_EMAIL"`
	// DryRun пишет письма в лог вместо отправки
	DryRun bool `yaml:"dry_run" env:"DRY_RUN"`
}

type AppConfig struct {
	Env       string `yaml:"env" env:"ENV"`
	ClientURL string `yaml:"client_url" env:"CLIENT_URL"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
}

func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

type JWTConfig struct {
	Secret string        `yaml:"secret" env:"SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"TTL"`
}

type RedisConfig struct {
	// пустой адрес: без лимитов и без отзыва сессий
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

type AuthConfig struct {
	VerificationCodeTTL  time.Duration `yaml:"verification_code_ttl" env:"VERIFICATION_CODE_TTL"`
	ResetTokenTTL        time.Duration `yaml:"reset_token_ttl" env:"RESET_TOKEN_TTL"`
	BcryptCost           int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	HideAccountExistence bool          `yaml:"hide_account_existence" env:"HIDE_ACCOUNT_EXISTENCE"`
}

type RateLimitRule struct {
	Max    int           `yaml:"max" env:"MAX"`
	Window time.Duration `yaml:"window" env:"WINDOW"`
}

type RateLimitConfig struct {
	Prefix         string        `yaml:"prefix" env:"PREFIX"`
	Login          RateLimitRule `yaml:"login" envPrefix:"LOGIN_"`
	VerifyEmail    RateLimitRule `yaml:"verify_email" envPrefix:"VERIFY_EMAIL_"`
	ForgotPassword RateLimitRule `yaml:"forgot_password" envPrefix:"FORGOT_PASSWORD_"`
	ResetPassword  RateLimitRule `yaml:"reset_password" envPrefix:"RESET_PASSWORD_"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Email     EmailConfig     `yaml:"email" envPrefix:"EMAIL_"`
	App       AppConfig       `yaml:"app" envPrefix:"APP_"`
	JWT       JWTConfig       `yaml:"jwt" envPrefix:"JWT_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	RateLimit RateLimitConfig `yaml:"ratelimit" envPrefix:"RATELIMIT_"`
}

// LoadConfig reads the yaml file at path (a missing file is fine), applies
// SECURESIGN_* environment overrides and fills defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// только окружение
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.ClientURL == "" {
		c.App.ClientURL = "http://localhost:5173"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = 7 * 24 * time.Hour
	}
	if c.Auth.VerificationCodeTTL <= 0 {
		c.Auth.VerificationCodeTTL = 60 * time.Second
	}
	if c.Auth.ResetTokenTTL <= 0 {
		c.Auth.ResetTokenTTL = time.Hour
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}

	window := 15 * time.Minute
	defaultRule(&c.RateLimit.Login, 10, window)
	defaultRule(&c.RateLimit.VerifyEmail, 10, window)
	defaultRule(&c.RateLimit.ForgotPassword, 5, window)
	defaultRule(&c.RateLimit.ResetPassword, 10, window)
}

func defaultRule(r *RateLimitRule, limit int, window time.Duration) {
	if r.Max == 0 {
		r.Max = limit
	}
	if r.Window <= 0 {
		r.Window = window
	}
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.App.IsProduction() {
		if strings.TrimSpace(c.JWT.Secret) == "" {
			errs = append(errs, errors.New("jwt.secret is required in production"))
		}
		if c.Email.DryRun {
			errs = append(errs, errors.New("email.dry_run is not allowed in production"))
		}
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost out of range: %d", c.Auth.BcryptCost))
	}
	return errors.Join(errs...)
}
