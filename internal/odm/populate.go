package odm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docmapper/internal/logging"
	"docmapper/internal/metrics"
)

// PopulateOptions is one population directive.
type PopulateOptions struct {
	// Path is the dotted path holding the reference(s).
	Path string
	// Select is recorded and not applied; populated documents come back whole.
	Select string
	// Collection names the target collection. Empty means the first segment
	// of Path.
	Collection string
}

func (o PopulateOptions) target() string {
	if o.Collection != "" {
		return o.Collection
	}
	head, _, _ := strings.Cut(o.Path, ".")
	return head
}

// Populate replaces the references at directive.Path in docs with the
// referenced documents, using one batched $in lookup. References with no
// matching document keep their original identity value.
func Populate(ctx context.Context, db Database, docs []bson.M, directive PopulateOptions) error {
	return populate(ctx, db, logging.Logger(), docs, directive)
}

func populate(ctx context.Context, db Database, logger *logrus.Entry, docs []bson.M, directive PopulateOptions) (err error) {
	var ids []interface{}
	seen := make(map[string]struct{})
	add := func(id interface{}) {
		if id == nil {
			return
		}
		key := idKey(id)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		ids = append(ids, id)
	}

	for _, doc := range docs {
		value, ok := getPath(doc, directive.Path)
		if !ok {
			continue
		}
		if items, isArray := asArray(value); isArray {
			for _, item := range items {
				add(item)
			}
			continue
		}
		add(value)
	}

	if len(ids) == 0 {
		return nil
	}

	coerced := make(bson.A, 0, len(ids))
	for _, id := range ids {
		oid, err := CoerceID(id)
		if err != nil {
			return err
		}
		coerced = append(coerced, oid)
	}

	collection := directive.target()

	defer observe(logger, collection, "populate", time.Now(), &err)
	metrics.PopulationLookups.WithLabelValues(collection).Inc()

	cursor, err := db.Collection(collection).Find(ctx, bson.M{IDField: bson.M{"$in": coerced}})
	if err != nil {
		return err
	}
	var found []bson.M
	if err = cursor.All(ctx, &found); err != nil {
		return err
	}

	lookup := make(map[string]bson.M, len(found))
	for _, ref := range found {
		lookup[idKey(ref[IDField])] = ref
	}

	resolve := func(id interface{}) interface{} {
		if id == nil {
			return nil
		}
		if ref, ok := lookup[idKey(id)]; ok {
			return ref
		}
		return id
	}

	for _, doc := range docs {
		value, ok := getPath(doc, directive.Path)
		if !ok {
			continue
		}
		if items, isArray := asArray(value); isArray {
			resolved := make(bson.A, len(items))
			for i, item := range items {
				resolved[i] = resolve(item)
			}
			setPath(doc, directive.Path, resolved)
			continue
		}
		setPath(doc, directive.Path, resolve(value))
	}

	return nil
}

// idKey stringifies an identity for lookup matching, so a hex string and the
// equivalent ObjectID compare equal.
func idKey(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func asArray(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case bson.A:
		return v, true
	case []interface{}:
		return v, true
	case []primitive.ObjectID:
		out := make([]interface{}, len(v))
		for i, id := range v {
			out[i] = id
		}
		return out, true
	case []string:
		out := make([]interface{}, len(v))
		for i, id := range v {
			out[i] = id
		}
		return out, true
	default:
		return nil, false
	}
}
