package odm

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Query accumulates filter, projection, sort, skip, limit and populate
// directives. It talks to the driver only when Exec, Lean or Count is called,
// and every call runs against current store state.
type Query struct {
	model      *Model
	filter     interface{}
	projection interface{}
	sort       interface{}
	skip       *int64
	limit      *int64
	populate   []PopulateOptions
}

// Sort sets the sort order. order may be a bson.D, a bson.M, or a string of
// space-separated field names where a leading "-" means descending.
func (q *Query) Sort(order interface{}) *Query {
	if text, ok := order.(string); ok {
		q.sort = parseSort(text)
		return q
	}
	q.sort = order
	return q
}

// Skip sets the number of documents to skip.
func (q *Query) Skip(n int64) *Query {
	q.skip = &n
	return q
}

// Limit caps the number of returned documents.
func (q *Query) Limit(n int64) *Query {
	q.limit = &n
	return q
}

// Select is accepted for call-site compatibility and does not restrict the
// returned fields. Use the projection argument of Find for that.
func (q *Query) Select(fields ...interface{}) *Query {
	return q
}

// Populate adds a population directive for path. The first path segment
// names the target collection. selects are accepted and not applied.
func (q *Query) Populate(path string, selects ...string) *Query {
	return q.PopulateWith(PopulateOptions{Path: path, Select: strings.Join(selects, " ")})
}

// PopulateWith adds a fully specified population directive.
func (q *Query) PopulateWith(opts PopulateOptions) *Query {
	q.populate = append(q.populate, opts)
	return q
}

// Exec runs the query and resolves population directives in the order they
// were added.
func (q *Query) Exec(ctx context.Context) (docs []bson.M, err error) {
	m := q.model
	coll, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := m.filter(q.filter, false)
	if err != nil {
		return nil, err
	}

	docs, err = q.find(ctx, coll, filter)
	if err != nil {
		return nil, err
	}

	if len(q.populate) == 0 {
		return docs, nil
	}

	db, err := m.database()
	if err != nil {
		return nil, err
	}
	for _, directive := range q.populate {
		if err := populate(ctx, db, m.logger, docs, directive); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// Lean is an alias for Exec; results are always plain documents.
func (q *Query) Lean(ctx context.Context) ([]bson.M, error) {
	return q.Exec(ctx)
}

// Count counts the documents matching the query filter. Sort, skip, limit and
// populate directives are ignored.
func (q *Query) Count(ctx context.Context) (int64, error) {
	return q.model.CountDocuments(ctx, q.filter)
}

func (q *Query) find(ctx context.Context, coll Collection, filter interface{}) (docs []bson.M, err error) {
	defer observe(q.model.logger, q.model.collection, "find", time.Now(), &err)

	opts := options.Find()
	if q.projection != nil {
		opts.SetProjection(q.projection)
	}
	if q.sort != nil {
		opts.SetSort(q.sort)
	}
	if q.skip != nil {
		opts.SetSkip(*q.skip)
	}
	if q.limit != nil {
		opts.SetLimit(*q.limit)
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func parseSort(text string) bson.D {
	var sort bson.D
	for _, field := range strings.Fields(text) {
		order := 1
		if strings.HasPrefix(field, "-") {
			order = -1
			field = field[1:]
		}
		sort = append(sort, bson.E{Key: field, Value: order})
	}
	return sort
}
