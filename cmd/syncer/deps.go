package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"channex_sync/internal/adapters/channex"
	"channex_sync/internal/adapters/observability"
	redisad "channex_sync/internal/adapters/redis"
	"channex_sync/internal/app"
	"channex_sync/internal/domain"
	"channex_sync/internal/shared"
	mysqlrepo "channex_sync/internal/storage/mysql"
)

type deps struct {
	cfg   shared.Config
	db    *sql.DB
	rc    *redis.Client
	store domain.MappingStore
	sync  *app.SyncService
}

func setup(ctx context.Context) (*deps, error) {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "syncer")
	observability.Serve(cfg.MetricsAddr)

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Msg("db ping ok")

	rc := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	var store domain.MappingStore = redisad.NewMappingStore(rc)
	if cfg.MappingBackend == "mysql" {
		store = mysqlrepo.NewMappingStore(db)
	}

	client, err := channex.New(cfg.ChannexBase, cfg.ChannexKey, cfg.ChannexRPS)
	if err != nil {
		_ = rc.Close()
		_ = db.Close()
		return nil, err
	}
	repo := mysqlrepo.New(db)
	res := app.NewResolver(store, client, cfg.ResolveTTL)

	return &deps{
		cfg:   cfg,
		db:    db,
		rc:    rc,
		store: store,
		sync:  app.NewSyncService(repo, client, store, res, redisad.NewCache(rc), cfg.HorizonDays),
	}, nil
}

func (d *deps) Close() {
	_ = d.rc.Close()
	_ = d.db.Close()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
