// Package store encapsulates MongoDB client management and exposes it to the
// mapping layer as an odm.Database.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"docmapper/internal/config"
	"docmapper/internal/odm"
)

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// Manager owns a MongoDB client and the configured database handle.
type Manager struct {
	client mongoClient
	db     *mongo.Database
}

// NewManager initializes the Mongo client using the supplied configuration and
// verifies connectivity with a ping.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{
		client: client,
		db:     client.Database(cfg.MongoDB),
	}, nil
}

// Dialer returns an odm.Dialer that opens a Manager for cfg on every dial.
// The resulting odm.Connection owns the client: closing it disconnects.
func Dialer(cfg config.Config) odm.Dialer {
	return func(ctx context.Context) (odm.Database, error) {
		manager, err := NewManager(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return manager.ODM(), nil
	}
}

// Database returns the configured database handle.
func (m *Manager) Database() *mongo.Database {
	return m.db
}

// Collection returns a collection handle for the given name.
func (m *Manager) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// ODM adapts the manager to odm.Database. Ping and Disconnect go to the
// manager, so an odm.Connection built on it can health-check and close it.
func (m *Manager) ODM() odm.Database {
	return &database{manager: m}
}

// Ping verifies the primary is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.client == nil {
		return errors.New("store manager is not initialized")
	}

	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// Close disconnects the Mongo client.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Disconnect(ctx)
}

type database struct {
	manager *Manager
}

func (d *database) Collection(name string) odm.Collection {
	return d.manager.Collection(name)
}

func (d *database) Ping(ctx context.Context) error {
	return d.manager.Ping(ctx)
}

func (d *database) Disconnect(ctx context.Context) error {
	return d.manager.Close(ctx)
}
