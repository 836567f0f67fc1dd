package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/labstack/echo/v4"
	sloghttp "github.com/samber/slog-http"

	"postbox/docs" // swagger docs
	"postbox/internal/auth"
	"postbox/internal/cache"
	"postbox/internal/config"
	"postbox/internal/db"
	"postbox/internal/handler"
	"postbox/internal/httpserver"
	"postbox/internal/logging"
	"postbox/internal/repository"
	"postbox/internal/router"
	"postbox/internal/service"
)

// @title Postbox API
// @version 1.0
// @description Multi-user post store with per-post visibility and JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.UsesDevSecret() {
		logger.Warn("jwt_secret is the development default; set POSTBOX_JWT_SECRET in production")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	if cfg.ResetDB {
		logger.Warn("reset_db set, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			return fmt.Errorf("reset database: %w", err)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	store, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	logger.Info("cache ready", "backend", cfg.CacheBackend)

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	postRepo := repository.NewPostRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	// Initialize services
	authService := service.NewAuthService(userRepo, hasher, jwtService, logger)
	userService := service.NewUserService(userRepo, store, cfg.UserCacheTTL)
	postService := service.NewPostService(postRepo, userService, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.Register(e, jwtService, router.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		Users: handler.NewUserHandler(userService),
		Posts: handler.NewPostHandler(postService),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}
	logger.Info("swagger documentation available", "url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html")

	h := sloghttp.Recovery(e)
	h = sloghttp.New(logger.WithGroup("http"))(h)

	return httpserver.Serve(ctx, logger, ":"+cfg.ServerPort, h)
}

// newCache returns the configured user profile cache. A nil Store disables
// caching.
func newCache(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		client := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		return client, func() { _ = client.Close() }, nil
	case "memory":
		mem, err := cache.NewMemory(ctx, cfg.UserCacheTTL)
		if err != nil {
			return nil, nil, err
		}
		return mem, func() { _ = mem.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
