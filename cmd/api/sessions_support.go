package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/blog-api/internal/auth"
	"github.com/yourusername/blog-api/internal/config"
)

const memorySweepInterval = 5 * time.Minute

// setupSessionStore は設定に応じてセッションストアを作成します。
// 戻り値の cleanup はシャットダウン時に呼び出します。
func setupSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.SessionStore, func(), error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := auth.NewRedisClient(ctx, cfg.SessionRedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis session store", slog.String("addr", client.Options().Addr))
		return auth.NewRedisStore(client), closeRedis(client, logger), nil

	default:
		store := auth.NewMemoryStore(nil)
		janitorCtx, cancel := context.WithCancel(ctx)
		go store.RunJanitor(janitorCtx, memorySweepInterval)
		logger.Info("using in-memory session store")
		return store, cancel, nil
	}
}

func closeRedis(client *redis.Client, logger *slog.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", slog.Any("error", err))
		}
	}
}
