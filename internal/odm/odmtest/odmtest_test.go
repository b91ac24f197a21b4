package odmtest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docmapper/internal/odm/odmtest"
)

func TestFindOneOnEmptyCollectionReportsNoDocuments(t *testing.T) {
	c := odmtest.NewDatabase().C("widgets")

	err := c.FindOne(context.Background(), bson.M{"a": 1}).Err()
	require.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestFailOnReachesSingleResultCallers(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	c := odmtest.NewDatabase().C("widgets")
	c.Seed(bson.M{"a": 1})

	c.FailOn("findOne", boom)
	require.ErrorIs(t, c.FindOne(ctx, bson.M{"a": 1}).Err(), boom)

	c.FailOn("findOneAndUpdate", boom)
	res := c.FindOneAndUpdate(ctx, bson.M{"a": 1}, bson.M{"$set": bson.M{"b": 2}})
	require.ErrorIs(t, res.Err(), boom)
}

func TestFindOneAndUpdateMissReportsNoDocuments(t *testing.T) {
	c := odmtest.NewDatabase().C("widgets")

	res := c.FindOneAndUpdate(context.Background(), bson.M{"a": 1}, bson.M{"$set": bson.M{"b": 2}})
	require.ErrorIs(t, res.Err(), mongo.ErrNoDocuments)
}

func TestFindOneAndUpdateUpsertReturnsNewDocument(t *testing.T) {
	c := odmtest.NewDatabase().C("widgets")

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	res := c.FindOneAndUpdate(context.Background(), bson.M{"a": "x"}, bson.M{"$set": bson.M{"b": "y"}}, opts)
	require.NoError(t, res.Err())

	var got bson.M
	require.NoError(t, res.Decode(&got))
	require.Equal(t, "x", got["a"])
	require.Equal(t, "y", got["b"])
	require.Len(t, c.Docs(), 1)
}

func TestRecordedInsertIsNotChangedByAssignedID(t *testing.T) {
	c := odmtest.NewDatabase().C("widgets")

	res, err := c.InsertOne(context.Background(), bson.M{"n": 1})
	require.NoError(t, err)
	require.NotNil(t, res.InsertedID)

	calls := c.Calls()
	require.Len(t, calls, 1)
	require.NotContains(t, calls[0].Update, "_id")
	require.Contains(t, c.Docs()[0], "_id")
}

func TestRecordedUpdateKeepsCallerValues(t *testing.T) {
	ctx := context.Background()
	c := odmtest.NewDatabase().C("widgets")
	c.Seed(bson.M{"a": 1})

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	set := bson.M{"b": 2, "at": at}
	_, err := c.UpdateOne(ctx, bson.M{"a": 1}, bson.M{"$set": set})
	require.NoError(t, err)

	set["b"] = 3

	calls := c.Calls()
	recorded := calls[len(calls)-1].Update["$set"].(bson.M)
	require.Equal(t, 2, recorded["b"])
	require.Equal(t, at, recorded["at"])
}
