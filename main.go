package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beijjati-server/auth"
	"beijjati-server/config"
	"beijjati-server/handlers"
	"beijjati-server/middleware"
	"beijjati-server/services"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, keeping info")
	}

	ctx := context.Background()

	// MongoDB
	mongoClient, err := services.ConnectMongo(ctx, cfg.MongoURI, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.MongoDatabase)
	if err := services.EnsureIndexes(ctx, db); err != nil {
		logger.WithError(err).Fatal("Failed to create indexes")
	}

	// Redis is optional: without it the cache and the rate limiter are no-ops.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running without cache and rate limiting")
			rdb = nil
		} else {
			logger.Info("Connected to Redis")
		}
	}

	metrics := middleware.NewMetrics()
	cache := services.NewUserCache(rdb, cfg.CacheTTL, metrics, logger)
	userService := services.NewUserService(db, cache, logger, cfg.MongoTransactions)
	postService := services.NewPostService(db, userService, metrics, logger)

	postConfig := handlers.PostHandlerConfig{MaxUploadBytes: cfg.MaxUploadBytes()}
	if cfg.EvidenceGate {
		extractor := services.NewOCRSpaceExtractor(cfg.OCRURL, cfg.OCRAPIKey)
		postConfig.Evidence = services.NewEvidenceService(extractor, metrics, logger)
		logger.WithField("ocr_url", cfg.OCRURL).Info("Evidence gate enabled")
	}
	if cfg.S3Bucket != "" {
		archive, err := services.NewEvidenceArchive(ctx, services.ArchiveConfig{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.WithError(err).Warn("Evidence archive disabled")
		} else {
			postConfig.Archive = archive
		}
	}

	rateLimit := cfg.AuthRateLimit
	if cfg.Env == "development" || cfg.Env == "test" {
		rateLimit = 0
	}

	router := newRouter(routerDeps{
		Users:          userService,
		Posts:          postService,
		PostConfig:     postConfig,
		Tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Metrics:        metrics,
		Redis:          rdb,
		AuthRateLimit:  rateLimit,
		AuthRateWindow: cfg.AuthRateWindow,
		AllowedOrigins: cfg.Origins(),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
		if rdb != nil {
			rdb.Close()
		}
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.WithError(err).Error("MongoDB disconnect error")
		}
	}()

	logger.WithField("port", cfg.Port).Info("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("Server failed")
	}
	<-idle
	logger.Info("Server stopped")
}
