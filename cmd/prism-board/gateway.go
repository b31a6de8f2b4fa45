package main

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-board/board"
	"prism-board/config"
	"prism-board/domain"
	"prism-board/storage"
)

// gatewaySet is the persistence stack built from config.
type gatewaySet struct {
	gateway board.Gateway
	redis   *redis.Client
	cache   *storage.Cache
	closers []func() error
}

func (g *gatewaySet) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		_ = g.closers[i]()
	}
}

func openGateway(cfg config.Config, logger *log.Logger) (*gatewaySet, error) {
	set := &gatewaySet{}
	var base board.Gateway
	switch cfg.Storage.Backend {
	case config.BackendTables:
		tables, err := storage.NewTables(cfg.Storage.ConnectionString, cfg.Storage.TasksTable, cfg.Storage.EventsQueue, logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		base = tables
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		set.closers = append(set.closers, db.Close)
		base = db
	default:
		base = storage.NewMemory()
	}
	set.gateway = base

	if cfg.Redis.ConnectionString == "" {
		return set, nil
	}
	redisOpts, err := config.RedisOptions(cfg.Redis.ConnectionString)
	if err != nil {
		set.Close()
		return nil, err
	}
	set.redis = redis.NewClient(redisOpts)
	set.closers = append(set.closers, set.redis.Close)
	set.cache = storage.NewCache(base, set.redis, config.Duration(cfg.Redis.CacheTTL, 5*time.Minute), cfg.Redis.UpdatesChannel, logger)
	set.gateway = set.cache
	return set, nil
}

func storeOptions(cfg config.Config, logger *log.Logger) []board.Option {
	return []board.Option{
		board.WithLogger(logger),
		board.WithDefaultColumn(domain.ColumnID(cfg.Board.DefaultColumn)),
		board.WithRollbackFailedCreates(cfg.Board.RollbackFailedCreates),
		board.WithSiblingPersistence(cfg.Board.PersistSiblingPositions),
		board.WithReloadTimeout(config.Duration(cfg.Board.ReloadTimeout, 15*time.Second)),
	}
}
