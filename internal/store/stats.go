package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Counter is satisfied by *odm.Model.
type Counter interface {
	Name() string
	CollectionName() string
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
}

// StatsProvider exposes per-model document counts for basic diagnostics
// without leaking MongoDB internals to callers.
type StatsProvider struct {
	models []Counter
}

// NewStatsProvider constructs a StatsProvider over the given models.
func NewStatsProvider(models ...Counter) *StatsProvider {
	return &StatsProvider{models: models}
}

// Count returns the number of documents stored for the named model.
func (p *StatsProvider) Count(ctx context.Context, name string) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	for _, model := range p.models {
		if model.Name() != name {
			continue
		}
		count, err := model.CountDocuments(ctx, bson.D{})
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", model.CollectionName(), err)
		}
		return count, nil
	}

	return 0, fmt.Errorf("unknown model %q", name)
}

// Counts returns document counts keyed by collection name.
func (p *StatsProvider) Counts(ctx context.Context) (map[string]int64, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if p == nil {
		return nil, errors.New("stats provider is not initialized")
	}

	counts := make(map[string]int64, len(p.models))
	for _, model := range p.models {
		count, err := model.CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", model.CollectionName(), err)
		}
		counts[model.CollectionName()] = count
	}

	return counts, nil
}
