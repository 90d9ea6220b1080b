// The sweeper enforces retention: it permanently purges soft-deleted
// documents past the retention window and drops expired API tokens, on a
// cron schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/blueline/blueline/pkg/config"
	"github.com/blueline/blueline/pkg/identity"
	"github.com/blueline/blueline/pkg/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "blueline-sweeper: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	conns, err := postgres.NewConnectionManager(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conns.Close()

	docStore := postgres.NewDocumentStore(conns)
	tokenStore := identity.NewTokenStore(conns.Primary())
	retention := cfg.Retention.DocumentRetention

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		cutoff := time.Now().UTC().Add(-retention)
		purged, err := docStore.PurgeDeletedBefore(ctx, cutoff)
		if err != nil {
			log.WithError(err).Error("document purge failed")
		} else {
			log.WithFields(logrus.Fields{
				"purged": purged,
				"cutoff": cutoff.Format(time.RFC3339),
			}).Info("purged soft-deleted documents")
		}

		dropped, err := tokenStore.DeleteExpired(ctx)
		if err != nil {
			log.WithError(err).Error("token cleanup failed")
		} else {
			log.WithField("dropped", dropped).Info("removed expired API tokens")
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Retention.SweepSchedule, sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", cfg.Retention.SweepSchedule, err)
	}

	log.WithField("schedule", cfg.Retention.SweepSchedule).Info("sweeper started")
	c.Start()

	// One immediate pass on startup so a crashed schedule never leaves
	// retention unenforced for a full cycle.
	sweep()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Info("sweeper stopped")
	return nil
}
