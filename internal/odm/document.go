package odm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docmapper/internal/logging"
)

// Document is a single in-memory entity of a Model. Fields are ad hoc: any key
// may be set regardless of the schema definition.
type Document struct {
	model  *Model
	fields bson.M
}

// Model returns the model the document belongs to.
func (d *Document) Model() *Model {
	return d.model
}

// ID returns the identity value, nil until the document is first saved.
func (d *Document) ID() interface{} {
	return d.fields[IDField]
}

// IsNew reports whether the document has no identity yet.
func (d *Document) IsNew() bool {
	return d.fields[IDField] == nil
}

// Get reads a field by dotted path.
func (d *Document) Get(path string) interface{} {
	v, _ := getPath(d.fields, path)
	return v
}

// Set writes a field by dotted path, creating intermediate documents.
func (d *Document) Set(path string, value interface{}) {
	setPath(d.fields, path, value)
}

// Unset removes a top-level field.
func (d *Document) Unset(key string) {
	delete(d.fields, key)
}

// Fields returns a shallow copy of the document's fields.
func (d *Document) Fields() bson.M {
	return copyDoc(d.fields)
}

// Call invokes an instance method registered on the schema.
func (d *Document) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	fn, ok := d.model.methods[name]
	if !ok {
		return nil, fmt.Errorf("odm: method %q is not defined on model %s", name, d.model.name)
	}
	return fn(ctx, d, args...)
}

// Virtual evaluates the getter registered under name. ok is false when no
// getter exists.
func (d *Document) Virtual(name string) (value interface{}, ok bool) {
	v, found := d.model.schema.virtuals[name]
	if !found || v.getter == nil {
		return nil, false
	}
	return v.getter(d), true
}

// SetVirtual runs the setter registered under name. It reports false when no
// setter exists.
func (d *Document) SetVirtual(name string, value interface{}) bool {
	v, found := d.model.schema.virtuals[name]
	if !found || v.setter == nil {
		return false
	}
	v.setter(d, value)
	return true
}

// Save runs the schema's save hooks in order and then persists the document.
// A document without an identity is inserted with createdAt and updatedAt set
// to now and receives the assigned _id. A document with an identity is
// upserted by id with updatedAt refreshed; createdAt and _id are left as they
// are. A failing hook aborts before anything is written and its error is
// returned unchanged.
func (d *Document) Save(ctx context.Context) (err error) {
	if ctx == nil {
		return errors.New("context is required")
	}

	if err := d.model.schema.runHooks(ctx, EventSave, d); err != nil {
		d.model.logger.WithFields(logging.Fields{
			"event":      "odm_save_aborted",
			"collection": d.model.collection,
		}).WithError(err).Debug("save hook aborted save")
		return err
	}

	coll, err := d.model.handle(ctx)
	if err != nil {
		return err
	}

	now := d.model.now()

	if d.IsNew() {
		snapshot := copyDoc(d.fields)
		delete(snapshot, IDField)
		snapshot[FieldCreatedAt] = now
		snapshot[FieldUpdatedAt] = now

		defer observe(d.model.logger, d.model.collection, "insertOne", time.Now(), &err)

		var result *mongo.InsertOneResult
		result, err = coll.InsertOne(ctx, snapshot)
		if err != nil {
			return err
		}
		d.fields[FieldCreatedAt] = now
		d.fields[FieldUpdatedAt] = now
		d.fields[IDField] = result.InsertedID
		return nil
	}

	target, err := CoerceID(d.fields[IDField])
	if err != nil {
		return err
	}

	updatedAt := laterThan(d.fields[FieldUpdatedAt], now)

	snapshot := copyDoc(d.fields)
	delete(snapshot, IDField)
	snapshot[FieldUpdatedAt] = updatedAt

	defer observe(d.model.logger, d.model.collection, "updateOne", time.Now(), &err)

	_, err = coll.UpdateOne(ctx,
		bson.M{IDField: target},
		bson.M{"$set": snapshot},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	d.fields[FieldUpdatedAt] = updatedAt
	return nil
}

// laterThan returns now, or one millisecond past prev when now does not move
// past it, so updatedAt always advances on a re-save.
func laterThan(prev interface{}, now time.Time) time.Time {
	var last time.Time
	switch v := prev.(type) {
	case time.Time:
		last = v
	case primitive.DateTime:
		last = v.Time()
	default:
		return now
	}

	if now.After(last) {
		return now
	}
	return last.Add(time.Millisecond).UTC()
}
