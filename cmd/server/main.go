package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hearth-app/backend/internal/config"
	delivery "github.com/hearth-app/backend/internal/delivery/http"
	"github.com/hearth-app/backend/internal/middleware"
	"github.com/hearth-app/backend/internal/migrations"
	"github.com/hearth-app/backend/internal/ratelimit"
	"github.com/hearth-app/backend/internal/repository/postgres"
	"github.com/hearth-app/backend/internal/token"
	"github.com/hearth-app/backend/internal/usecase"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("hearth backend starting", zap.String("port", cfg.Server.Port))

	pool := connectDB(logger, cfg.Database.URL)
	defer pool.Close()

	if err := runMigrations(pool); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	// The counter service gets an explicit lifecycle here; a failed ping is
	// only a warning because the rate gate fails open without it.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limiting will fail open", zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}
	pingCancel()

	// Repositories
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)
	eventRepo := postgres.NewLoginEventRepository(pool)
	projectRepo := postgres.NewProjectRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)

	// Usecases
	codec := token.NewCodec(cfg.Auth.Secret)
	sessions := usecase.NewSessionUsecase(userRepo, tokenRepo, eventRepo, codec, &cfg.Auth, logger)
	projects := usecase.NewProjectUsecase(projectRepo)
	tasks := usecase.NewTaskUsecase(taskRepo, projectRepo)

	// HTTP pipeline
	limiter := ratelimit.New(rdb, ratelimit.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
	}, logger)

	handler := delivery.NewHandler(sessions, projects, tasks, userRepo, eventRepo, limiter, &cfg.Auth)
	authMiddleware := middleware.NewAuthMiddleware(sessions)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit.ExemptPaths)

	router := delivery.NewRouter(handler, authMiddleware, rateLimitMiddleware, cfg.CORS.AllowedOrigins, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func connectDB(logger *zap.Logger, url string) *pgxpool.Pool {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := pgxpool.New(ctx, url)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				logger.Info("connected to postgres")
				return pool
			} else {
				pool.Close()
				err = pingErr
			}
		}
		cancel()
		if attempt == 5 {
			logger.Fatal("could not connect to postgres", zap.Error(err))
		}
		logger.Warn("postgres connection failed, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
}

func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}
