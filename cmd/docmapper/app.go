package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"docmapper/internal/config"
	"docmapper/internal/domain"
	"docmapper/internal/logging"
	"docmapper/internal/odm"
	"docmapper/internal/store"
)

const (
	mongoConnectTimeout    = 10 * time.Second
	mongoIndexTimeout      = 30 * time.Second
	mongoDisconnectTimeout = 5 * time.Second
	seedTimeout            = 10 * time.Second
	statsTimeout           = 5 * time.Second
	staffTimeout           = 10 * time.Second
	healthShutdownTimeout  = 5 * time.Second
)

// app is the connected state every database-backed command starts from.
type app struct {
	cfg      config.Config
	logger   *logrus.Entry
	conn     *odm.Connection
	registry *domain.Registry
}

// dialStore is overridable for tests.
var dialStore = store.Dialer

// connect loads configuration, sets up logging and opens the mapper
// connection.
func connect() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		logging.WithContext(logging.Context{Event: "config_error"}).WithError(err).Error("configuration error")
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		return nil, fmt.Errorf("logger setup error: %w", err)
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
	}).Info("configuration loaded")

	mode, _ := odm.ParseIDCoercion(cfg.IDCoercion)
	conn := odm.NewConnection(dialStore(cfg),
		odm.WithLogger(logger),
		odm.WithIDCoercion(mode),
	)
	conn.On(odm.EventError, func(err error) {
		logger.WithField("event", "mongo_connect_error").WithError(err).Error("mongo connection failed")
	})

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	if err := conn.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("mongo connection error: %w", err)
	}

	logger.WithFields(logging.Fields{
		"event":       "mongo_connect",
		"connection":  conn.ID(),
		"id_coercion": mode.String(),
	}).Info("connected to mongo")

	return &app{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		registry: domain.NewRegistry(conn),
	}, nil
}

func (r *app) syncIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoIndexTimeout)
	defer cancel()

	if err := store.SyncConnectionIndexes(ctx, r.conn, r.registry.Models()...); err != nil {
		return fmt.Errorf("mongo index setup error: %w", err)
	}

	r.logger.WithField("event", "mongo_indexes").Info("synced declared mongo indexes")
	return nil
}

func (r *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()

	if err := r.conn.Close(ctx); err != nil {
		r.logger.WithError(err).Error("mongo disconnect error")
		return
	}
	r.logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
}

// counters adapts the registry models for store.NewStatsProvider.
func (r *app) counters() []store.Counter {
	models := r.registry.Models()
	out := make([]store.Counter, 0, len(models))
	for _, model := range models {
		out = append(out, model)
	}
	return out
}
