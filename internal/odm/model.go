package odm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docmapper/internal/logging"
)

// Timestamp fields maintained on every write issued through a Model.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// UpdateOptions controls FindByIDAndUpdate.
type UpdateOptions struct {
	// New returns the document as it is after the update.
	New bool
	// Upsert inserts the document when no match exists.
	Upsert bool
}

// Model binds a Schema to a resolved collection on a Connection. It holds no
// other state and is safe to share.
type Model struct {
	conn       *Connection
	name       string
	collection string
	schema     *Schema
	methods    map[string]MethodFunc
	statics    map[string]StaticFunc
	logger     *logrus.Entry
}

// NewModel resolves the collection for name and snapshots the schema's
// methods and statics. Entries added to the schema afterwards are not seen.
func NewModel(conn *Connection, name string, schema *Schema) *Model {
	if schema == nil {
		schema = NewSchema(nil)
	}

	collection := ResolveCollectionName(name, schema)

	methods := make(map[string]MethodFunc, len(schema.methods))
	for k, fn := range schema.methods {
		methods[k] = fn
	}
	statics := make(map[string]StaticFunc, len(schema.statics))
	for k, fn := range schema.statics {
		statics[k] = fn
	}

	logger := logging.Logger()
	if conn != nil {
		logger = conn.logger
	}

	return &Model{
		conn:       conn,
		name:       name,
		collection: collection,
		schema:     schema,
		methods:    methods,
		statics:    statics,
		logger:     logger.WithField("model", name),
	}
}

// Name returns the logical model name.
func (m *Model) Name() string {
	return m.name
}

// CollectionName returns the resolved physical collection name.
func (m *Model) CollectionName() string {
	return m.collection
}

// Schema returns the schema the model was built from.
func (m *Model) Schema() *Schema {
	return m.schema
}

// Connection returns the connection the model is bound to.
func (m *Model) Connection() *Connection {
	return m.conn
}

// New creates an unsaved document holding a copy of fields.
func (m *Model) New(fields bson.M) *Document {
	return &Document{model: m, fields: copyDoc(fields)}
}

// Hydrate wraps an existing document, typically a query result, so its
// methods and virtuals can be used. The map is used without copying.
func (m *Model) Hydrate(doc bson.M) *Document {
	if doc == nil {
		doc = bson.M{}
	}
	return &Document{model: m, fields: doc}
}

// Static invokes a model-level function registered on the schema.
func (m *Model) Static(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	fn, ok := m.statics[name]
	if !ok {
		return nil, fmt.Errorf("odm: static %q is not defined on model %s", name, m.name)
	}
	return fn(ctx, m, args...)
}

// Find returns a lazy query over filter. Nothing is sent until Exec or Lean.
func (m *Model) Find(filter interface{}, projection interface{}) *Query {
	return &Query{model: m, filter: filter, projection: projection}
}

// FindOne returns the first document matching filter, or nil when none does.
func (m *Model) FindOne(ctx context.Context, filter interface{}, projection interface{}) (bson.M, error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}
	f, err := m.filter(filter, true)
	if err != nil {
		return nil, err
	}
	return m.findOne(ctx, coll, f, projection)
}

// FindByID is FindOne({_id: id}) with the id always coerced.
func (m *Model) FindByID(ctx context.Context, id interface{}, projection interface{}) (bson.M, error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}
	target, err := CoerceID(id)
	if err != nil {
		return nil, err
	}
	return m.findOne(ctx, coll, bson.M{IDField: target}, projection)
}

func (m *Model) findOne(ctx context.Context, coll Collection, filter interface{}, projection interface{}) (doc bson.M, err error) {
	defer observe(m.logger, m.collection, "findOne", time.Now(), &err)

	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}

	result := coll.FindOne(ctx, filter, opts)
	if err = result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = nil
			return nil, nil
		}
		return nil, err
	}

	if err = result.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// CountDocuments counts documents matching filter.
func (m *Model) CountDocuments(ctx context.Context, filter interface{}) (count int64, err error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return 0, err
	}
	f, err := m.filter(filter, false)
	if err != nil {
		return 0, err
	}

	defer observe(m.logger, m.collection, "countDocuments", time.Now(), &err)
	return coll.CountDocuments(ctx, f)
}

// UpdateOne applies update to the first match of filter.
func (m *Model) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (result *mongo.UpdateResult, err error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}
	f, err := m.filter(filter, true)
	if err != nil {
		return nil, err
	}

	defer observe(m.logger, m.collection, "updateOne", time.Now(), &err)
	return coll.UpdateOne(ctx, f, update)
}

// UpdateMany applies update to every match of filter.
func (m *Model) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (result *mongo.UpdateResult, err error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}
	f, err := m.filter(filter, false)
	if err != nil {
		return nil, err
	}

	defer observe(m.logger, m.collection, "updateMany", time.Now(), &err)
	return coll.UpdateMany(ctx, f, update)
}

// DeleteOne removes the first match of filter.
func (m *Model) DeleteOne(ctx context.Context, filter interface{}) (result *mongo.DeleteResult, err error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}
	f, err := m.filter(filter, true)
	if err != nil {
		return nil, err
	}

	defer observe(m.logger, m.collection, "deleteOne", time.Now(), &err)
	return coll.DeleteOne(ctx, f)
}

// FindByIDAndUpdate updates the document with the given id and returns it.
// When update has a $set key, updatedAt is merged into that $set. Otherwise
// the whole update is used as the $set payload, operator keys included.
// It returns nil when nothing matched and Upsert is false.
func (m *Model) FindByIDAndUpdate(ctx context.Context, id interface{}, update interface{}, opts UpdateOptions) (doc bson.M, err error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}
	target, err := CoerceID(id)
	if err != nil {
		return nil, err
	}
	upd, err := asDoc(update)
	if err != nil {
		return nil, err
	}

	now := m.now()
	var payload bson.M
	if set, ok := upd["$set"]; ok {
		setDoc, err := asDoc(set)
		if err != nil {
			return nil, err
		}
		setDoc = copyDoc(setDoc)
		setDoc[FieldUpdatedAt] = now

		payload = copyDoc(upd)
		payload["$set"] = setDoc
	} else {
		setDoc := copyDoc(upd)
		setDoc[FieldUpdatedAt] = now
		payload = bson.M{"$set": setDoc}
	}

	findOpts := options.FindOneAndUpdate().SetUpsert(opts.Upsert)
	if opts.New {
		findOpts.SetReturnDocument(options.After)
	} else {
		findOpts.SetReturnDocument(options.Before)
	}

	defer observe(m.logger, m.collection, "findOneAndUpdate", time.Now(), &err)

	result := coll.FindOneAndUpdate(ctx, bson.M{IDField: target}, payload, findOpts)
	if err = result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = nil
			return nil, nil
		}
		return nil, err
	}
	if err = result.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Aggregate runs pipeline and returns every resulting document.
func (m *Model) Aggregate(ctx context.Context, pipeline interface{}) (docs []bson.M, err error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}

	defer observe(m.logger, m.collection, "aggregate", time.Now(), &err)

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Create inserts doc with createdAt defaulted to now and updatedAt set to
// now, and returns the stored copy including its _id.
func (m *Model) Create(ctx context.Context, doc bson.M) (created bson.M, err error) {
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	out := copyDoc(doc)
	if out[FieldCreatedAt] == nil {
		out[FieldCreatedAt] = now
	}
	out[FieldUpdatedAt] = now

	defer observe(m.logger, m.collection, "insertOne", time.Now(), &err)

	result, err := coll.InsertOne(ctx, out)
	if err != nil {
		return nil, err
	}
	out[IDField] = result.InsertedID
	return out, nil
}

func (m *Model) handle(ctx context.Context) (Collection, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if m == nil || m.conn == nil {
		return nil, ErrNotConnected
	}
	return m.conn.Collection(m.collection)
}

func (m *Model) database() (Database, error) {
	if m == nil || m.conn == nil {
		return nil, ErrNotConnected
	}
	return m.conn.Database()
}

// filter normalizes a nil filter and applies id coercion. always marks the
// operations that coerce regardless of the connection mode.
func (m *Model) filter(filter interface{}, always bool) (interface{}, error) {
	if filter == nil {
		return bson.M{}, nil
	}
	if !always && m.conn.coercion != CoerceEverywhere {
		return filter, nil
	}
	return CoerceFilter(filter)
}

// Now returns the current time from the connection clock, as used for
// timestamps.
func (m *Model) Now() time.Time {
	return m.now()
}

func (m *Model) now() time.Time {
	if m.conn == nil {
		return defaultNow()
	}
	return m.conn.now()
}

func copyDoc(in bson.M) bson.M {
	out := make(bson.M, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
