package odm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docmapper/internal/odm"
)

func TestSchemaRecordsIndexesWithoutQueryingThem(t *testing.T) {
	schema := odm.NewSchema(odm.Definition{
		"employment.department": {Type: "string"},
		"roles":                 {Type: "[ObjectId]", Ref: "Role"},
	})
	schema.Index(bson.D{{Key: "employment.department", Value: 1}}, nil)
	schema.Index(bson.D{{Key: "email", Value: 1}}, options.Index().SetUnique(true))

	indexes := schema.Indexes()
	require.Len(t, indexes, 2)
	require.Equal(t, "email", indexes[1].Keys[0].Key)
	require.True(t, *indexes[1].Options.Unique)

	indexes[0].Keys = nil
	require.NotNil(t, schema.Indexes()[0].Keys)

	require.Equal(t, "Role", schema.Definition()["roles"].Ref)
}

func TestSchemaHooksReturnsCopy(t *testing.T) {
	schema := odm.NewSchema(nil)
	schema.Pre(odm.EventSave, func(context.Context, *odm.Document) error { return nil })

	hooks := schema.Hooks(odm.EventSave)
	require.Len(t, hooks, 1)
	hooks[0] = nil
	require.NotNil(t, schema.Hooks(odm.EventSave)[0])
	require.Empty(t, schema.Hooks("remove"))
}

type widget struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Qty       int                `bson:"qty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func TestDecodeRoundTripsThroughBSON(t *testing.T) {
	ctx := context.Background()
	conn, _ := connect(t)
	m := odm.NewModel(conn, "Widget", nil)

	created, err := m.Create(ctx, bson.M{"name": "gear", "qty": 4})
	require.NoError(t, err)

	doc, err := m.FindByID(ctx, created["_id"], nil)
	require.NoError(t, err)

	w, err := odm.Decode[widget](doc)
	require.NoError(t, err)
	require.Equal(t, "gear", w.Name)
	require.Equal(t, 4, w.Qty)
	require.True(t, w.CreatedAt.Equal(t0))

	all, err := odm.DecodeAll[widget]([]bson.M{doc, doc})
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = odm.Decode[widget](nil)
	require.Error(t, err)
}

func TestToDocumentUsesBSONTags(t *testing.T) {
	doc, err := odm.ToDocument(widget{Name: "cog", Qty: 2})
	require.NoError(t, err)
	require.Equal(t, "cog", doc["name"])
	require.EqualValues(t, 2, doc["qty"])
}
