package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	_ "securesign/docs"
	"securesign/internal/config"
	"securesign/internal/handlers"
	"securesign/internal/metrics"
	"securesign/internal/migrations"
	"securesign/internal/ratelimit"
	"securesign/internal/repositories"
	"securesign/internal/routes"
	"securesign/internal/services"
	"securesign/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the HTTP router is built from.
type Deps struct {
	Users       repositories.UserRepository
	Revocations repositories.SessionRevocationRepository
	Emails      services.EmailService
	Redis       redis.UniversalClient
	Registry    *prometheus.Registry
	JWTSecret   []byte
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.App.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "securesign")
}

// NewRouter wires services, handlers and routes into a gin engine.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	var m *metrics.Metrics
	var gatherer prometheus.Gatherer
	if d.Registry != nil {
		m = metrics.New(d.Registry)
		gatherer = d.Registry
	}

	emails := d.Emails
	if emails == nil {
		emails = services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
			cfg.Email.DryRun,
			log,
			m,
		)
	}

	var limiter *ratelimit.Limiter
	if d.Redis != nil {
		limiter = ratelimit.New(d.Redis, cfg.RateLimit.Prefix, map[string]ratelimit.Rule{
			routes.ActionLogin:          rule(cfg.RateLimit.Login),
			routes.ActionVerifyEmail:    rule(cfg.RateLimit.VerifyEmail),
			routes.ActionForgotPassword: rule(cfg.RateLimit.ForgotPassword),
			routes.ActionResetPassword:  rule(cfg.RateLimit.ResetPassword),
		})
	}

	// === Services ===
	authService := services.NewAuthService(cfg.Auth.BcryptCost)
	sessions := services.NewSessionService(d.JWTSecret, cfg.JWT.TTL, d.Revocations, d.Now)
	tokens := utils.NewTokenGenerator(cfg.Auth.VerificationCodeTTL, cfg.Auth.ResetTokenTTL)
	userService := services.NewUserService(d.Users, emails, authService, sessions, tokens, services.UserServiceOptions{
		ClientURL:            cfg.App.ClientURL,
		HideAccountExistence: cfg.Auth.HideAccountExistence,
		Now:                  d.Now,
		Logger:               log.With("component", "user-service"),
	})

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(userService, m, cfg.App.IsProduction(), log)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(corsMiddleware(cfg.App.ClientURL))

	return routes.SetupRoutes(router, authHandler, sessions, limiter, m, gatherer, log)
}

// Run opens storage, builds the router and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	secret := []byte(cfg.JWT.Secret)
	if len(secret) == 0 {
		// только вне production: Validate это уже проверил
		s, err := utils.NewRefreshToken(32)
		if err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		secret = []byte(s)
		log.Warn("jwt.secret is empty, using a random secret; sessions will not survive a restart")
	}

	// === DB ===
	var users repositories.UserRepository
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		log.Warn("database.url is empty, accounts are kept in memory")
		users = repositories.NewMemoryUserRepository()
	} else {
		db, err := openDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("db close failed", "err", err)
			}
		}()
		if cfg.Database.AutoMigrate {
			if err := migrations.Up(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}
		users = repositories.NewUserRepository(db)
	}

	// === Redis ===
	var rdb *redis.Client
	revocations := repositories.NewNoopSessionRevocationRepository()
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// лимиты и отзыв работают в режиме fail-open
			log.Warn("redis ping failed", "addr", cfg.Redis.Addr, "err", err)
		}
		cancel()
		revocations = repositories.NewRedisSessionRevocationRepository(rdb, "")
	} else {
		log.Warn("redis.addr is empty, rate limiting and session revocation are disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := Deps{
		Users:       users,
		Revocations: revocations,
		Registry:    reg,
		JWTSecret:   secret,
		Logger:      log,
	}
	if rdb != nil {
		deps.Redis = rdb
	}
	router := NewRouter(cfg, deps)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// Migrate applies the embedded schema to database.url.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrations.Up(ctx, db)
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func rule(r config.RateLimitRule) ratelimit.Rule {
	return ratelimit.Rule{Max: r.Max, Window: r.Window}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"took", time.Since(start).Truncate(time.Millisecond),
		)
	}
}

// corsMiddleware разрешает фронтенд с client_url; cookie сессии требует credentials.
func corsMiddleware(origin string) gin.HandlerFunc {
	origin = strings.TrimRight(origin, "/")
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Writer.Header().Add("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
