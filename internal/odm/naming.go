package odm

import "strings"

// ResolveCollectionName derives the physical collection for a logical model
// name. An explicit schema collection wins verbatim. Otherwise the name is
// lower-cased, trimmed and gets a trailing "s" unless it already ends in one.
//
// Pluralization is naive ("category" becomes "categorys"). Models that need
// a real plural set WithCollection.
func ResolveCollectionName(logical string, schema *Schema) string {
	if schema != nil && schema.options.Collection != "" {
		return schema.options.Collection
	}

	name := strings.TrimSpace(strings.ToLower(logical))
	if strings.HasSuffix(name, "s") {
		return name
	}
	return name + "s"
}
