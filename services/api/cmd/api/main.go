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
	"filesmanager/services/api/internal/app"
	"filesmanager/services/api/internal/config"
	"filesmanager/services/api/internal/server"
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
		Stream: cfg.QueueStream,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to init thumbnail queue: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:    metaStore,
		Sessions: store.NewRedisSessionStore(redisClient, cfg.SessionTTLDuration()),
		Content:  content,
		Jobs:     jobs,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
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
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("api server listening", "addr", addr, "storage", cfg.StorageBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
