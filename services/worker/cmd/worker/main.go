package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"filesmanager/internal/util"
	"filesmanager/pkg/queue"
	"filesmanager/pkg/storage"
	"filesmanager/pkg/store"
	"filesmanager/services/worker/internal/app"
	"filesmanager/services/worker/internal/config"
	"filesmanager/services/worker/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	metaStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open metadata store: %v", err)
	}
	defer metaStore.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	content, err := storage.Open(cfg.Storage())
	if err != nil {
		log.Fatalf("failed to open content store: %v", err)
	}

	jobs, err := queue.NewRedisJobQueue(redisClient, queue.RedisQueueConfig{
		Stream:     cfg.QueueStream,
		Group:      cfg.QueueGroup,
		MaxRetries: cfg.QueueMaxRetries,
		RetryDelay: cfg.RetryDelay(),
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("failed to init thumbnail queue: %v", err)
	}

	appCore, err := app.New(app.Config{
		Nodes:       metaStore,
		Content:     content,
		Jobs:        jobs,
		Concurrency: cfg.QueueConcurrency,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(appCore)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("worker server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	if err := appCore.Run(ctx); err != nil {
		logger.Error("worker stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
