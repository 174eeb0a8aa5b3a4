package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"channex_sync/internal/adapters/channex"
	server "channex_sync/internal/adapters/http_server"
	"channex_sync/internal/adapters/observability"
	redisad "channex_sync/internal/adapters/redis"
	"channex_sync/internal/app"
	"channex_sync/internal/domain"
	"channex_sync/internal/shared"
	mysqlrepo "channex_sync/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	rc := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	cache := redisad.NewCache(rc)

	var store domain.MappingStore = redisad.NewMappingStore(rc)
	if cfg.MappingBackend == "mysql" {
		store = mysqlrepo.NewMappingStore(db)
	}
	log.Info().Str("backend", cfg.MappingBackend).Msg("mapping store ready")

	client, err := channex.New(cfg.ChannexBase, cfg.ChannexKey, cfg.ChannexRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Channex client")
	}
	resolver := app.NewResolver(store, client, cfg.ResolveTTL)

	h := &server.Handlers{
		Q:       app.NewQueryService(repo, cache, cfg.CacheTTL),
		S:       app.NewSyncService(repo, client, store, resolver, cache, cfg.HorizonDays),
		M:       store,
		E:       app.NewEventService(repo, cache),
		Workers: cfg.Workers,
	}

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	_ = rc.Close()
	_ = db.Close()
	log.Info().Msg("API stopped")
}
