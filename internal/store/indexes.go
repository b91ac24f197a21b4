package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"docmapper/internal/odm"
)

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// SyncIndexes creates the indexes each model's schema declares, one CreateMany
// per collection. Models without declared indexes are skipped. It stops at
// the first failure.
func SyncIndexes(ctx context.Context, db *mongo.Database, models ...*odm.Model) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if db == nil {
		return errors.New("database is not initialized")
	}

	for _, model := range models {
		specs := model.Schema().Indexes()
		if len(specs) == 0 {
			continue
		}

		indexModels := make([]mongo.IndexModel, 0, len(specs))
		for _, idx := range specs {
			indexModels = append(indexModels, mongo.IndexModel{
				Keys:    idx.Keys,
				Options: idx.Options,
			})
		}

		if _, err := createIndexes(ctx, db.Collection(model.CollectionName()), indexModels); err != nil {
			return fmt.Errorf("create %s indexes: %w", model.CollectionName(), err)
		}
	}

	return nil
}

// SyncIndexes runs SyncIndexes against the manager's database.
func (m *Manager) SyncIndexes(ctx context.Context, models ...*odm.Model) error {
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}
	return SyncIndexes(ctx, m.db, models...)
}

// SyncConnectionIndexes runs SyncIndexes against the database behind conn,
// which must have been dialed with Dialer.
func SyncConnectionIndexes(ctx context.Context, conn *odm.Connection, models ...*odm.Model) error {
	if conn == nil {
		return errors.New("connection is not initialized")
	}
	db, err := conn.Database()
	if err != nil {
		return err
	}
	backed, ok := db.(*database)
	if !ok {
		return fmt.Errorf("connection database %T is not managed by store", db)
	}
	return backed.manager.SyncIndexes(ctx, models...)
}
