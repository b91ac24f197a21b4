// Package odm is a lightweight object-document mapper over the MongoDB driver.
// It exposes a schema/model/query API, batched reference population and
// lifecycle hooks while leaving every read and write to the driver.
package odm

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection captures the subset of mongo.Collection behavior the mapper relies
// on. *mongo.Collection satisfies it directly.
type Collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// Database hands out collection handles by physical name.
type Database interface {
	Collection(name string) Collection
}

// Dialer establishes the driver connection and returns the database handle.
type Dialer func(ctx context.Context) (Database, error)

type pinger interface {
	Ping(ctx context.Context) error
}

type disconnecter interface {
	Disconnect(ctx context.Context) error
}
