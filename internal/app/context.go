package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/match-relay/internal/cache"
	"github.com/oggyb/match-relay/internal/config"
	"github.com/oggyb/match-relay/internal/notify"
)

// AppContext holds shared dependencies (DB, Redis, Logger, transport, config).
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	// Messenger is the outbound transport every notification goes through.
	Messenger notify.Messenger
}

// New creates a new AppContext
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, messenger notify.Messenger) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Messenger:  messenger,
	}
}

// Notifier builds the notify policies over the shared transport.
func (a *AppContext) Notifier() *notify.Notifier {
	return notify.New(a.Messenger, a.Logger)
}
