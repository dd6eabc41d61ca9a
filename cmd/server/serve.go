package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/jobs"
	"phonestore-backend/internal/metrics"
	"phonestore-backend/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ProductImagePath, 0o755); err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	var blacklist auth.Store = auth.NewDBStore(db)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, token blacklist uses the database only", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			blacklist = auth.NewCachedStore(blacklist, rdb, log)
			log.Info("token blacklist cached in redis", zap.String("addr", cfg.RedisAddr))
		}
	}

	srv := server.New(cfg, db, blacklist, m, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
		return srv.App.Listen(":" + cfg.HTTPPort)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return srv.App.ShutdownWithTimeout(shutdownTimeout)
	})

	if cfg.JobsEnabled {
		sched := jobs.New(log, m)
		if err := sched.Add(cfg.BlacklistPurgeSpec, jobs.JobPurgeBlacklist, jobs.PurgeBlacklist(srv.Blacklist, log)); err != nil {
			return err
		}
		if err := sched.Add(cfg.WarrantyExpireSpec, jobs.JobExpireWarranties, jobs.ExpireWarranties(srv.AfterSales)); err != nil {
			return err
		}
		g.Go(func() error { return sched.Start(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
