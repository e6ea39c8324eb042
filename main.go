// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/cliparse"
	"github.com/danielhkuo/referral-funnel/db"
	"github.com/danielhkuo/referral-funnel/metrics"
	"github.com/danielhkuo/referral-funnel/middleware"
	"github.com/danielhkuo/referral-funnel/router"
	"github.com/danielhkuo/referral-funnel/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Verify connection
	if err := dbConn.PingContext(ctx); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	g, gctx := errgroup.WithContext(ctx)

	hub := changefeed.NewHub(slog.Default())
	// Local writes always publish so the live inbox goes stale before the
	// response is sent. On Postgres the triggers repeat them and add writes
	// from other instances.
	opts := router.Options{Hub: hub, Publisher: hub}

	if cfg.DatabaseType == cliparse.DatabasePostgres {
		if err := db.CreateNotifyTriggers(dbConn); err != nil {
			slog.Error("notify trigger creation failed", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			err := changefeed.ListenPostgres(gctx, cfg.DatabaseURL, db.NotifyChannel, hub, slog.Default())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	var store session.Store = session.NewMemoryStore()
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		slog.Info("Attribution sessions in redis")
	}
	opts.Attribution = session.NewAttribution(store, cfg.SessionKey, cfg.SessionTTL)

	metrics.Init()

	rt := router.NewRouter(dbConn, cfg, opts)
	rt.Watch(gctx)

	server := http.Server{
		Handler: middleware.Recoverer(middleware.WithMetrics(middleware.CORS(rt))),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port, "origin", cfg.PublicOrigin)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}

	// Let background attributions finish before the database closes
	rt.Wait()
}
