package odm

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the identity field every document carries once persisted.
const IDField = "_id"

// IDCoercion selects where textual identifiers are converted to ObjectIDs.
type IDCoercion int

const (
	// CoerceCompat converts ids in FindOne, FindByID, UpdateOne, DeleteOne,
	// FindByIDAndUpdate, Save and population lookups, but leaves Find,
	// UpdateMany and CountDocuments filters untouched. Existing callers depend
	// on this asymmetry.
	CoerceCompat IDCoercion = iota
	// CoerceEverywhere converts ids in every filter-taking operation.
	CoerceEverywhere
)

// String returns the configuration spelling of the mode.
func (m IDCoercion) String() string {
	if m == CoerceEverywhere {
		return "everywhere"
	}
	return "compat"
}

// ParseIDCoercion maps "compat" and "everywhere" to their modes.
func ParseIDCoercion(value string) (IDCoercion, bool) {
	switch value {
	case "", "compat":
		return CoerceCompat, true
	case "everywhere":
		return CoerceEverywhere, true
	default:
		return CoerceCompat, false
	}
}

// CoerceID converts a hex string into a primitive.ObjectID. Any other value is
// returned as is. The hex decoding error is returned unwrapped.
func CoerceID(id interface{}) (interface{}, error) {
	text, ok := id.(string)
	if !ok {
		return id, nil
	}

	oid, err := primitive.ObjectIDFromHex(text)
	if err != nil {
		return nil, err
	}
	return oid, nil
}

// CoerceFilter returns filter with a textual _id value converted by CoerceID.
// The caller's filter is never modified; when a conversion happens a shallow
// copy is returned.
func CoerceFilter(filter interface{}) (interface{}, error) {
	switch f := filter.(type) {
	case bson.M:
		return coerceMap(f, func(m map[string]interface{}) interface{} { return bson.M(m) })
	case map[string]interface{}:
		return coerceMap(f, func(m map[string]interface{}) interface{} { return m })
	case bson.D:
		for i, elem := range f {
			if elem.Key != IDField {
				continue
			}
			text, ok := elem.Value.(string)
			if !ok {
				return f, nil
			}
			oid, err := CoerceID(text)
			if err != nil {
				return nil, err
			}
			out := make(bson.D, len(f))
			copy(out, f)
			out[i] = bson.E{Key: IDField, Value: oid}
			return out, nil
		}
		return f, nil
	default:
		return filter, nil
	}
}

func coerceMap(in map[string]interface{}, wrap func(map[string]interface{}) interface{}) (interface{}, error) {
	text, ok := in[IDField].(string)
	if !ok {
		return wrap(in), nil
	}

	oid, err := CoerceID(text)
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	out[IDField] = oid
	return wrap(out), nil
}
