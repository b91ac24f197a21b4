package odm

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// getPath reads a dotted path through nested documents.
func getPath(doc bson.M, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case bson.M:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]interface{}:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case bson.D:
			found := false
			for _, elem := range node {
				if elem.Key == segment {
					current = elem.Value
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return current, true
}

// setPath writes value at a dotted path, creating bson.M parents as needed.
func setPath(doc bson.M, path string, value interface{}) {
	segments := strings.Split(path, ".")
	var current interface{} = doc

	for i, segment := range segments {
		last := i == len(segments)-1

		switch node := current.(type) {
		case bson.M:
			if last {
				node[segment] = value
				return
			}
			current = child(node, segment)
		case map[string]interface{}:
			if last {
				node[segment] = value
				return
			}
			current = child(node, segment)
		case bson.D:
			idx := -1
			for j, elem := range node {
				if elem.Key == segment {
					idx = j
					break
				}
			}
			if idx < 0 {
				// bson.D cannot grow in place through an interface value.
				return
			}
			if last {
				node[idx].Value = value
				return
			}
			current = node[idx].Value
		default:
			return
		}
	}
}

func child(node map[string]interface{}, key string) interface{} {
	switch v := node[key].(type) {
	case bson.M, map[string]interface{}, bson.D:
		return v
	default:
		next := bson.M{}
		node[key] = next
		return next
	}
}
