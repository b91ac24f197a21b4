package odm

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Decode converts a result document into T through a bson round trip, so
// bson struct tags apply.
func Decode[T any](doc bson.M) (T, error) {
	var out T
	if doc == nil {
		return out, fmt.Errorf("odm: decode %T: nil document", out)
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return out, err
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeAll decodes every document in docs.
func DecodeAll[T any](docs []bson.M) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ToDocument converts a struct (or any bson-marshalable document) to bson.M.
func ToDocument(v interface{}) (bson.M, error) {
	return asDoc(v)
}

func asDoc(v interface{}) (bson.M, error) {
	switch d := v.(type) {
	case nil:
		return bson.M{}, nil
	case bson.M:
		return d, nil
	case map[string]interface{}:
		return bson.M(d), nil
	}

	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
