package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"docmapper/internal/feature/rbac"
	"docmapper/internal/health"
	"docmapper/internal/logging"
	"docmapper/internal/metrics"
	"docmapper/internal/store"
)

var processStart = time.Now()

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect, seed the RBAC catalog and serve health and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	rt, err := connect()
	if err != nil {
		return err
	}
	defer rt.close()

	registry := prometheus.NewRegistry()
	metrics.RegisterCollectors(registry)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if rt.cfg.SyncIndexes {
		if err := rt.syncIndexes(); err != nil {
			return err
		}
	}

	if err := seed(rt); err != nil {
		return err
	}

	statsCtx, cancelStats := context.WithTimeout(context.Background(), statsTimeout)
	counts, err := store.NewStatsProvider(rt.counters()...).Counts(statsCtx)
	cancelStats()
	if err != nil {
		rt.logger.WithError(err).Warn("collection stats unavailable")
	} else {
		fields := logging.Fields{"event": "collection_stats"}
		for name, count := range counts {
			fields[name] = count
		}
		rt.logger.WithFields(fields).Info("collection document counts")
	}

	server := health.NewServer(rt.cfg.HTTPPort, rt.conn, registry, rt.logger)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	rt.logger.WithFields(logging.Fields{
		"event":      "ready",
		"startup_ms": time.Since(processStart).Milliseconds(),
	}).Info("docmapper ready")

	select {
	case <-signalCtx.Done():
		rt.logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping health server")
	case err := <-serveErr:
		if err != nil {
			return err
		}
		rt.logger.WithField("event", "health_stopped_early").Warn("health server stopped before shutdown signal")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), healthShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.logger.WithError(err).Error("health server shutdown error")
	}

	rt.logger.WithField("event", "shutdown_complete").Info("shutdown complete")
	return nil
}

func seed(rt *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	seeder := rbac.NewSeeder(rt.registry, rt.logger)
	if _, err := seeder.EnsureSystemRoles(ctx); err != nil {
		return fmt.Errorf("rbac bootstrap error: %w", err)
	}

	if rt.cfg.AdminEmail == "" {
		rt.logger.WithField("event", "rbac_head_admin_skipped").Info("no admin email configured, skipping head administrator")
		return nil
	}
	if err := seeder.EnsureHeadAdmin(ctx, rt.cfg.AdminEmail, rt.cfg.AdminPass); err != nil {
		return fmt.Errorf("head administrator bootstrap error: %w", err)
	}
	return nil
}
