package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prettylittleliars/backend/internal/auth"
	"github.com/prettylittleliars/backend/internal/config"
	"github.com/prettylittleliars/backend/internal/httpapi"
	"github.com/prettylittleliars/backend/internal/persist"
	"github.com/prettylittleliars/backend/internal/room"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	var store persist.Store
	switch cfg.SnapshotBackend {
	case "file":
		store = persist.NewFileStore(cfg.SnapshotPath)
	case "redis":
		store = persist.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	default:
		store = persist.NopStore{}
	}

	ctx := context.Background()

	// Pick the show back up if a snapshot survived the last process.
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	initial, err := store.Load(loadCtx)
	cancel()
	if err != nil {
		logger.Warn("load snapshot", zap.Error(err))
	}
	if initial != nil {
		logger.Info("restored session", zap.String("session", initial.SessionID))
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)

	rm := room.New(ctx, room.Options{
		Initial:         initial,
		Tokens:          tokens,
		Store:           store,
		Logger:          logger,
		LeaderboardSize: cfg.LeaderboardSize,
		PersistInterval: time.Duration(cfg.PersistIntervalSec) * time.Second,
	})

	handler := httpapi.SetupRoutes(rm, cfg.AllowedOrigins, logger)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
