package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oarkflow/squealx"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/trusty"
	"github.com/oarkflow/trusty/server"
	"github.com/oarkflow/trusty/stores"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := trusty.NewPhusluLogger()

	cfg, err := trusty.LoadConfig(*configPath)
	if err != nil {
		logger.Error("load configuration", "error", err.Error())
		os.Exit(1)
	}

	sqlDB, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("open database", "dsn", cfg.Database.DSN, "error", err.Error())
		os.Exit(1)
	}
	defer sqlDB.Close()
	db := squealx.NewDb(sqlDB, cfg.Database.Driver, "trusty")
	if err := stores.Migrate(db); err != nil {
		logger.Error("migrate database", "error", err.Error())
		os.Exit(1)
	}

	directory := stores.NewSQLDirectory(db)
	var decisionStore trusty.DirectoryStore = directory

	var dirOpts []trusty.DirectoryOption
	dirOpts = append(dirOpts, trusty.WithDirectoryLogger(logger))

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		mirror := stores.NewRedisRoleMembership(client)
		decisionStore = stores.NewMembershipDirectory(directory, mirror)
		dirOpts = append(dirOpts, trusty.WithMembershipMirror(mirror))
		logger.Info("role membership mirror enabled", "addr", cfg.Redis.Addr)
	}

	var engineOpts []trusty.EngineOption
	engineOpts = append(engineOpts, trusty.WithLogger(logger))

	if cfg.Cache.Enabled {
		cache, err := trusty.NewDecisionCache(cfg.Cache.CacheConfig())
		if err != nil {
			logger.Error("build decision cache", "error", err.Error())
			os.Exit(1)
		}
		engineOpts = append(engineOpts, trusty.WithDecisionCache(cache))
		dirOpts = append(dirOpts, trusty.WithDirectoryCache(cache))
		logger.Info("decision cache enabled", "ttl", cfg.Cache.TTL.String())
	}

	engine, err := trusty.NewAccessControlEngine(decisionStore, engineOpts...)
	if err != nil {
		logger.Error("build access control engine", "error", err.Error())
		os.Exit(1)
	}

	admin := trusty.NewDirectory(directory, directory, directory, directory, dirOpts...)

	router := server.NewRouter(server.Deps{Engine: engine, Directory: admin}, server.Options{EnableCORS: true})
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err.Error())
	}
}
