// Package odmtest provides an in-memory odm.Database for tests. It implements
// the subset of MongoDB query semantics the mapper and its callers use and
// records every driver call so tests can assert round trips.
package odmtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docmapper/internal/odm"
)

// Call is one recorded driver invocation.
type Call struct {
	Op     string
	Filter bson.M
	Update bson.M
	Opts   interface{}
}

// Database is an in-memory odm.Database.
type Database struct {
	mu          sync.Mutex
	collections map[string]*Collection

	PingErr       error
	PingCalls     int
	Disconnected  bool
	DisconnectErr error
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{collections: make(map[string]*Collection)}
}

// Collection returns the named collection, creating it on first use.
func (d *Database) Collection(name string) odm.Collection {
	return d.C(name)
}

// C is Collection with the concrete type, for seeding and assertions.
func (d *Database) C(name string) *Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[name]
	if !ok {
		c = &Collection{name: name, failures: make(map[string]error)}
		d.collections[name] = c
	}
	return c
}

// Ping records the call and returns PingErr.
func (d *Database) Ping(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.PingCalls++
	return d.PingErr
}

// Disconnect records the call and returns DisconnectErr.
func (d *Database) Disconnect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Disconnected = true
	return d.DisconnectErr
}

// Dialer returns an odm.Dialer that yields d.
func (d *Database) Dialer() odm.Dialer {
	return func(context.Context) (odm.Database, error) {
		return d, nil
	}
}

// Collection is an in-memory odm.Collection.
type Collection struct {
	name string

	mu       sync.Mutex
	docs     []bson.M
	calls    []Call
	failures map[string]error
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Seed inserts docs directly, bypassing call recording. Documents without an
// _id get a fresh ObjectID.
func (c *Collection) Seed(docs ...bson.M) []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		stored := normalize(doc)
		if _, ok := stored["_id"]; !ok {
			stored["_id"] = primitive.NewObjectID()
		}
		c.docs = append(c.docs, stored)
		ids = append(ids, stored["_id"])
	}
	return ids
}

// Docs returns copies of every stored document in insertion order.
func (c *Collection) Docs() []bson.M {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bson.M, len(c.docs))
	for i, doc := range c.docs {
		out[i] = normalize(doc)
	}
	return out
}

// Calls returns the recorded calls.
func (c *Collection) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (c *Collection) CallCount(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Op == op {
			n++
		}
	}
	return n
}

// FailOn makes every subsequent op call return err.
func (c *Collection) FailOn(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = err
}

func (c *Collection) record(call Call) error {
	c.calls = append(c.calls, call)
	return c.failures[call.Op]
}

func (c *Collection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := options.MergeFindOptions(opts...)
	f := toDoc(filter)
	if err := c.record(Call{Op: "find", Filter: f, Opts: merged}); err != nil {
		return nil, err
	}

	matched := c.match(f)
	if merged.Sort != nil {
		sortDocs(matched, toSort(merged.Sort))
	}
	if merged.Skip != nil {
		skip := int(*merged.Skip)
		if skip > len(matched) {
			skip = len(matched)
		}
		matched = matched[skip:]
	}
	if merged.Limit != nil && *merged.Limit > 0 && int(*merged.Limit) < len(matched) {
		matched = matched[:int(*merged.Limit)]
	}

	return cursorOf(matched)
}

func (c *Collection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := toDoc(filter)
	if err := c.record(Call{Op: "findOne", Filter: f, Opts: options.MergeFindOneOptions(opts...)}); err != nil {
		return failedResult(err)
	}

	matched := c.match(f)
	if len(matched) == 0 {
		return failedResult(mongo.ErrNoDocuments)
	}
	return mongo.NewSingleResultFromDocument(matched[0], nil, nil)
}

func (c *Collection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := normalize(toDoc(document))
	if err := c.record(Call{Op: "insertOne", Update: cloneDoc(doc)}); err != nil {
		return nil, err
	}

	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	for _, existing := range c.docs {
		if equalValues(existing["_id"], doc["_id"]) {
			return nil, fmt.Errorf("E11000 duplicate key error collection: %s index: _id_", c.name)
		}
	}
	c.docs = append(c.docs, doc)
	return &mongo.InsertOneResult{InsertedID: doc["_id"]}, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.update("updateOne", filter, update, false, opts...)
}

func (c *Collection) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.update("updateMany", filter, update, true, opts...)
}

func (c *Collection) update(op string, filter interface{}, update interface{}, many bool, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := options.MergeUpdateOptions(opts...)
	f := toDoc(filter)
	u := toDoc(update)
	if err := c.record(Call{Op: op, Filter: cloneDoc(f), Update: cloneDoc(u), Opts: merged}); err != nil {
		return nil, err
	}

	result := &mongo.UpdateResult{}
	for i, doc := range c.docs {
		if !matches(doc, f) {
			continue
		}
		if err := applyUpdate(doc, u, false); err != nil {
			return nil, err
		}
		c.docs[i] = normalize(doc)
		result.MatchedCount++
		result.ModifiedCount++
		if !many {
			return result, nil
		}
	}

	if result.MatchedCount == 0 && merged.Upsert != nil && *merged.Upsert {
		doc, err := c.upsert(f, u)
		if err != nil {
			return nil, err
		}
		result.UpsertedCount = 1
		result.UpsertedID = doc["_id"]
	}
	return result, nil
}

func (c *Collection) upsert(filter, update bson.M) (bson.M, error) {
	doc := bson.M{}
	for k, v := range filter {
		if !strings.HasPrefix(k, "$") {
			if _, isOp := v.(bson.M); !isOp {
				setPath(doc, k, v)
			}
		}
	}
	if err := applyUpdate(doc, update, true); err != nil {
		return nil, err
	}
	doc = normalize(doc)
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	c.docs = append(c.docs, doc)
	return doc, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := toDoc(filter)
	if err := c.record(Call{Op: "deleteOne", Filter: f}); err != nil {
		return nil, err
	}

	for i, doc := range c.docs {
		if matches(doc, f) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return &mongo.DeleteResult{DeletedCount: 1}, nil
		}
	}
	return &mongo.DeleteResult{}, nil
}

func (c *Collection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := options.MergeFindOneAndUpdateOptions(opts...)
	f := toDoc(filter)
	u := toDoc(update)
	if err := c.record(Call{Op: "findOneAndUpdate", Filter: cloneDoc(f), Update: cloneDoc(u), Opts: merged}); err != nil {
		return failedResult(err)
	}

	returnNew := merged.ReturnDocument != nil && *merged.ReturnDocument == options.After

	for i, doc := range c.docs {
		if !matches(doc, f) {
			continue
		}
		before := normalize(doc)
		if err := applyUpdate(doc, u, false); err != nil {
			return failedResult(err)
		}
		c.docs[i] = normalize(doc)
		if returnNew {
			return mongo.NewSingleResultFromDocument(c.docs[i], nil, nil)
		}
		return mongo.NewSingleResultFromDocument(before, nil, nil)
	}

	if merged.Upsert != nil && *merged.Upsert {
		doc, err := c.upsert(f, u)
		if err != nil {
			return failedResult(err)
		}
		if returnNew {
			return mongo.NewSingleResultFromDocument(normalize(doc), nil, nil)
		}
	}
	return failedResult(mongo.ErrNoDocuments)
}

// Aggregate supports $match, $sort, $skip, $limit and $count stages.
func (c *Collection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stages, err := toStages(pipeline)
	if err != nil {
		return nil, err
	}
	if err := c.record(Call{Op: "aggregate", Opts: stages}); err != nil {
		return nil, err
	}

	docs := c.match(bson.M{})
	for _, stage := range stages {
		for op, arg := range stage {
			switch op {
			case "$match":
				var out []bson.M
				cond := toDoc(arg)
				for _, doc := range docs {
					if matches(doc, cond) {
						out = append(out, doc)
					}
				}
				docs = out
			case "$sort":
				sortDocs(docs, toSort(arg))
			case "$skip":
				n := int(toFloat(arg))
				if n > len(docs) {
					n = len(docs)
				}
				docs = docs[n:]
			case "$limit":
				n := int(toFloat(arg))
				if n < len(docs) {
					docs = docs[:n]
				}
			case "$count":
				docs = []bson.M{{fmt.Sprint(arg): int32(len(docs))}}
			default:
				return nil, fmt.Errorf("odmtest: unsupported aggregation stage %s", op)
			}
		}
	}
	return cursorOf(docs)
}

func (c *Collection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := toDoc(filter)
	if err := c.record(Call{Op: "countDocuments", Filter: f}); err != nil {
		return 0, err
	}
	return int64(len(c.match(f))), nil
}

func (c *Collection) match(filter bson.M) []bson.M {
	var out []bson.M
	for _, doc := range c.docs {
		if matches(doc, filter) {
			out = append(out, normalize(doc))
		}
	}
	return out
}

func cursorOf(docs []bson.M) (*mongo.Cursor, error) {
	items := make([]interface{}, len(docs))
	for i, doc := range docs {
		items[i] = doc
	}
	return mongo.NewCursorFromDocuments(items, nil, nil)
}

// normalize deep-copies a document through bson so stored values have the
// types a real server would return (int32, primitive.DateTime, bson.A, bson.M).
// failedResult carries err on a SingleResult. The driver discards the error
// when the document is nil, so an empty placeholder is passed.
func failedResult(err error) *mongo.SingleResult {
	return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
}

// cloneDoc copies nested maps and arrays so a recorded call is not changed
// by later writes. Leaf values keep their Go types.
func cloneDoc(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return cloneDoc(val)
	case map[string]interface{}:
		return map[string]interface{}(cloneDoc(bson.M(val)))
	case bson.A:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func normalize(doc bson.M) bson.M {
	raw, err := bson.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("odmtest: marshal document: %v", err))
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("odmtest: unmarshal document: %v", err))
	}
	return out
}

func toDoc(v interface{}) bson.M {
	switch d := v.(type) {
	case nil:
		return bson.M{}
	case bson.M:
		return d
	case map[string]interface{}:
		return bson.M(d)
	case bson.D:
		out := bson.M{}
		for _, elem := range d {
			out[elem.Key] = elem.Value
		}
		return out
	default:
		raw, err := bson.Marshal(v)
		if err != nil {
			return bson.M{}
		}
		var out bson.M
		_ = bson.Unmarshal(raw, &out)
		return out
	}
}

func toStages(pipeline interface{}) ([]bson.M, error) {
	switch p := pipeline.(type) {
	case []bson.M:
		return p, nil
	case mongo.Pipeline:
		out := make([]bson.M, len(p))
		for i, stage := range p {
			out[i] = toDoc(stage)
		}
		return out, nil
	case []bson.D:
		out := make([]bson.M, len(p))
		for i, stage := range p {
			out[i] = toDoc(stage)
		}
		return out, nil
	case []interface{}:
		out := make([]bson.M, len(p))
		for i, stage := range p {
			out[i] = toDoc(stage)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("odmtest: unsupported pipeline type %T", pipeline)
	}
}

func matches(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$and", "$or":
			clauses, _ := asSlice(cond)
			anyMatch := false
			for _, clause := range clauses {
				ok := matches(doc, toDoc(clause))
				if key == "$and" && !ok {
					return false
				}
				if ok {
					anyMatch = true
				}
			}
			if key == "$or" && !anyMatch {
				return false
			}
			continue
		}

		value, present := getPath(doc, key)
		if ops, isOps := operatorDoc(cond); isOps {
			for op, arg := range ops {
				if !evalOperator(op, value, present, arg) {
					return false
				}
			}
			continue
		}
		if !present {
			if cond != nil {
				return false
			}
			continue
		}
		if !matchValue(value, cond) {
			return false
		}
	}
	return true
}

func operatorDoc(cond interface{}) (bson.M, bool) {
	var m bson.M
	switch v := cond.(type) {
	case bson.M:
		m = v
	case map[string]interface{}:
		m = bson.M(v)
	case bson.D:
		m = toDoc(v)
	default:
		return nil, false
	}
	if len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func evalOperator(op string, value interface{}, present bool, arg interface{}) bool {
	switch op {
	case "$eq":
		return present && matchValue(value, arg)
	case "$ne":
		return !present || !matchValue(value, arg)
	case "$in":
		items, _ := asSlice(arg)
		for _, item := range items {
			if present && matchValue(value, item) {
				return true
			}
		}
		return false
	case "$nin":
		items, _ := asSlice(arg)
		for _, item := range items {
			if present && matchValue(value, item) {
				return false
			}
		}
		return true
	case "$exists":
		want, _ := arg.(bool)
		return present == want
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false
		}
		cmp := compareValues(value, arg)
		switch op {
		case "$gt":
			return cmp > 0
		case "$gte":
			return cmp >= 0
		case "$lt":
			return cmp < 0
		default:
			return cmp <= 0
		}
	default:
		return false
	}
}

// matchValue applies MongoDB equality, including "array contains" for array
// fields.
func matchValue(value, cond interface{}) bool {
	if equalValues(value, cond) {
		return true
	}
	if items, ok := asSlice(value); ok {
		for _, item := range items {
			if equalValues(item, cond) {
				return true
			}
		}
	}
	return false
}

func equalValues(a, b interface{}) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	if ta, ok := timeOf(a); ok {
		if tb, ok := timeOf(b); ok {
			return ta.Equal(tb)
		}
	}
	if sa, ok := asSlice(a); ok {
		if sb, ok := asSlice(b); ok {
			if len(sa) != len(sb) {
				return false
			}
			for i := range sa {
				if !equalValues(sa[i], sb[i]) {
					return false
				}
			}
			return true
		}
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b interface{}) int {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, ok := timeOf(a); ok {
		if tb, ok := timeOf(b); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) float64 {
	f, _ := number(v)
	return f
}

func timeOf(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.Truncate(time.Millisecond), true
	case primitive.DateTime:
		return t.Time(), true
	default:
		return time.Time{}, false
	}
}

func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case bson.A:
		return s, true
	case []interface{}:
		return s, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

type sortKey struct {
	field string
	order int
}

func toSort(order interface{}) []sortKey {
	var keys []sortKey
	switch s := order.(type) {
	case bson.D:
		for _, elem := range s {
			keys = append(keys, sortKey{field: elem.Key, order: int(toFloat(elem.Value))})
		}
	case bson.M:
		names := make([]string, 0, len(s))
		for k := range s {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			keys = append(keys, sortKey{field: k, order: int(toFloat(s[k]))})
		}
	}
	return keys
}

func sortDocs(docs []bson.M, keys []sortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			a, _ := getPath(docs[i], key.field)
			b, _ := getPath(docs[j], key.field)
			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if key.order < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func applyUpdate(doc bson.M, update bson.M, inserting bool) error {
	for op, arg := range update {
		fields := toDoc(arg)
		switch op {
		case "$set":
			for k, v := range fields {
				if k == "_id" && !inserting && !equalValues(doc["_id"], v) {
					return errors.New("Performing an update on the path '_id' would modify the immutable field '_id'")
				}
				setPath(doc, k, v)
			}
		case "$setOnInsert":
			if inserting {
				for k, v := range fields {
					setPath(doc, k, v)
				}
			}
		case "$unset":
			for k := range fields {
				delete(doc, k)
			}
		case "$inc":
			for k, v := range fields {
				current, _ := getPath(doc, k)
				setPath(doc, k, toFloat(current)+toFloat(v))
			}
		case "$push":
			for k, v := range fields {
				current, _ := getPath(doc, k)
				items, _ := asSlice(current)
				setPath(doc, k, append(bson.A(items), v))
			}
		default:
			if strings.HasPrefix(op, "$") {
				return fmt.Errorf("odmtest: unsupported update operator %s", op)
			}
			return fmt.Errorf("The dollar ($) prefixed field '%s' is not allowed; update document must contain only atomic operators", op)
		}
	}
	return nil
}

func getPath(doc bson.M, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, segment := range strings.Split(path, ".") {
		node, ok := asMap(current)
		if !ok {
			return nil, false
		}
		v, ok := node[segment]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

func setPath(doc bson.M, path string, value interface{}) {
	segments := strings.Split(path, ".")
	node := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := asMap(node[segment])
		if !ok {
			next = bson.M{}
			node[segment] = next
		}
		node = next
	}
	node[segments[len(segments)-1]] = value
}

func asMap(v interface{}) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]interface{}:
		return bson.M(m), true
	default:
		return nil, false
	}
}
