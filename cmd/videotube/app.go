package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/videotube/internal/db"
	"github.com/nkiryanov/videotube/internal/handlers"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/objectstore"
	"github.com/nkiryanov/videotube/internal/ratelimit"
	"github.com/nkiryanov/videotube/internal/repository/postgres"
	"github.com/nkiryanov/videotube/internal/service/account"
	"github.com/nkiryanov/videotube/internal/service/auth"
	"github.com/nkiryanov/videotube/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/videotube/internal/service/sweeper"
	"github.com/nkiryanov/videotube/internal/service/video"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger

	// Background deletion of orphan objects, runs while server runs
	Sweeper *sweeper.Sweeper

	// Release resources the app holds, called when server stops
	closers []func() error
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app := &ServerApp{ListenAddr: c.ListenAddr, Logger: log}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, func() error { pool.Close(); return nil })

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	s3Store, err := objectstore.NewS3Store(ctx, objectstore.Config{
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		PublicBaseURL:   c.S3PublicURL,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating object store. Err: %w", err)
	}
	store := sweeper.NewTrackingStore(s3Store, storage.Orphan(), log)
	app.Sweeper = sweeper.New(sweeper.Config{Interval: c.OrphanSweepInterval}, s3Store, storage.Orphan(), log)

	limiter, err := app.newLoginLimiter(ctx, c)
	if err != nil {
		return nil, err
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
	}, storage.Account())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.DefaultHasher, tokenManager, storage.Account())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	accountService := account.NewService(storage.Account(), store, auth.DefaultHasher, log)
	videoService := video.NewService(storage, store, log)

	app.Handler = handlers.NewRouter(
		handlers.Config{
			SecureCookies: c.Environment == logger.EnvProduction,
			LoginLimiter:  limiter,
		},
		authService,
		accountService,
		videoService,
		log,
	)

	return app, nil
}

// Redis limiter if redis is configured, in-memory one otherwise
func (s *ServerApp) newLoginLimiter(ctx context.Context, c *Config) (ratelimit.Limiter, error) {
	if c.RedisAddr == "" {
		s.Logger.Warn("redis is not configured, login rate limit is per instance")
		return ratelimit.NewMemory(c.LoginRateLimit, c.LoginRateWindow), nil
	}

	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	s.closers = append(s.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}

	limiter, err := ratelimit.NewRedis(client, c.LoginRateLimit, c.LoginRateWindow, "")
	if err != nil {
		return nil, fmt.Errorf("error while creating rate limiter. Err: %w", err)
	}
	return limiter, nil
}

func (s *ServerApp) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.Close() // nolint:errcheck

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.Sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.Logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	return err
}
