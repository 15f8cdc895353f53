package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/habitus/internal/db"
	"github.com/nkiryanov/habitus/internal/handlers"
	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/mail"
	"github.com/nkiryanov/habitus/internal/metrics"
	"github.com/nkiryanov/habitus/internal/repository/postgres"
	"github.com/nkiryanov/habitus/internal/service/account"
	"github.com/nkiryanov/habitus/internal/service/audit"
	"github.com/nkiryanov/habitus/internal/service/auth"
	"github.com/nkiryanov/habitus/internal/service/auth/hasher"
	"github.com/nkiryanov/habitus/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/habitus/internal/service/ratelimit"
	"github.com/nkiryanov/habitus/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	passwordHasher, err := hasher.ByName(c.PasswordHasher)
	if err != nil {
		return nil, err
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger, pool: pool}

	// Initialize repositories
	storage := postgres.NewStorage(pool)
	m := metrics.New()

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	}, storage)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	userService := user.NewService(passwordHasher, storage)
	auditService := audit.NewService(storage, logger)
	accountService := account.NewService(
		account.Config{Logger: logger}, storage, passwordHasher, mail.NewLogMailer(logger, c.PublicURL),
	)
	authService, err := auth.NewService(auth.Config{
		InsecureCookie: c.InsecureCookie,
		Logger:         logger,
		Metrics:        m,
	}, tokenManager, userService)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	// Login throttling is optional
	var limiter ratelimit.Limiter = ratelimit.Nop{}
	if c.RedisAddr != "" {
		app.redis, err = ratelimit.Connect(ctx, c.RedisAddr, c.RedisPassword)
		if err != nil {
			app.Close()
			return nil, err
		}
		limiter = ratelimit.NewRedis(app.redis, ratelimit.Config{
			MaxFailures: c.LoginMaxFailures,
			Window:      c.LoginFailureWindow,
		})
	} else {
		logger.Warn("Redis address is not set, login throttling is disabled")
	}

	app.Handler = handlers.NewRouter(
		handlers.Options{TrustProxy: c.TrustProxy},
		authService, userService, accountService, auditService, limiter, m, logger,
	)

	return app, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

// Release db and redis connections
func (s *ServerApp) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
