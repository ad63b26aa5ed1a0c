// Package main runs the video HTTP server with graceful shutdown.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/videohub/backend/config"
	"github.com/videohub/backend/internal/auth"
	"github.com/videohub/backend/internal/middleware"
	"github.com/videohub/backend/internal/videos"
	"github.com/videohub/backend/pkg/database"
	"github.com/videohub/backend/pkg/redis"
	"github.com/videohub/backend/pkg/response"
	"github.com/videohub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("record store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore.Close()

	data, err := newDataStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("blob store", zap.String("backend", cfg.Blob.Backend), zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(cfg.Auth.Users, jwtService, logger)
	if len(cfg.Auth.Users) == 0 {
		logger.Warn("AUTH_USERS is empty; no tokens can be issued")
	}

	videoService := videos.NewService(store, data, logger)
	videoHandler := videos.NewHandler(videoService, cfg.Server.PublicBaseURL, int64(cfg.Server.MaxUploadMB)<<20, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/auth/token", authHandler.Token)

	// Videos (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	videoHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Backend),
			zap.String("blob", cfg.Blob.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (videos.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxConns),
			MaxConnLifetime: time.Duration(cfg.Database.MaxConnLifetimeMin) * time.Minute,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return videos.NewRepository(pool), closerFunc(func() error { pool.Close(); return nil }), nil
	case config.StoreRedis:
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return videos.NewRedisStore(rdb.Client, cfg.Redis.KeyPrefix), rdb, nil
	default:
		logger.Warn("using in-memory record store; videos are lost on restart")
		return videos.NewMemoryStore(), closerFunc(func() error { return nil }), nil
	}
}

func newDataStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (videos.DataStore, error) {
	if cfg.Blob.Backend == config.BlobS3 {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.VideosBucket,
			Endpoint:        cfg.AWS.Endpoint,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s3Client, nil
	}
	fs, err := storage.NewFS(cfg.Blob.Dir)
	if err != nil {
		return nil, err
	}
	logger.Info("storing video data on disk", zap.String("dir", cfg.Blob.Dir))
	return fs, nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
