// Command cleanup removes expired PENDING email reservations and expired
// coded sessions. It is intended to be invoked by an external cron job, not
// as an in-process goroutine.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avoropay/accounts-core/internal/adapter/docstore"
	"github.com/avoropay/accounts-core/internal/adapter/docstore/codedsession"
	"github.com/avoropay/accounts-core/internal/adapter/docstore/reservation"
	"github.com/avoropay/accounts-core/internal/app"
	"github.com/avoropay/accounts-core/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)
	logger.Info("starting cleanup", slog.String("version", app.BuildVersion()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := docstore.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	store := docstore.NewStore(pool)
	tx := docstore.NewTxManager(pool)
	reservations := reservation.New(store, tx, logger)
	sessions := codedsession.New(store, logger)

	var reservationsDeleted, sessionsDeleted int64

	// The two sweeps touch disjoint collections, so they run concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reservationsDeleted, err = reservations.DeleteExpiredPending(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sessionsDeleted, err = sessions.DeleteExpired(gctx, time.Now())
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("cleanup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("cleanup completed",
		slog.Int64("reservations_deleted", reservationsDeleted),
		slog.Int64("sessions_deleted", sessionsDeleted),
	)
}
