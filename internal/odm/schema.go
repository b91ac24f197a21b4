package odm

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventSave is the lifecycle event whose hooks run before every Document.Save.
const EventSave = "save"

// Field describes a schema field. It is advisory: nothing validates documents
// against it.
type Field struct {
	Type     string
	Ref      string
	Required bool
	Default  interface{}
}

// Definition maps field names (dotted for nested fields) to their descriptors.
type Definition map[string]Field

// SchemaOptions carries schema-level configuration.
type SchemaOptions struct {
	// Collection overrides the derived collection name when set.
	Collection string
}

// SchemaOption mutates SchemaOptions during NewSchema.
type SchemaOption func(*SchemaOptions)

// WithCollection pins the physical collection name.
func WithCollection(name string) SchemaOption {
	return func(o *SchemaOptions) {
		o.Collection = name
	}
}

// HookFunc runs at a lifecycle event. A non-nil error aborts the operation.
type HookFunc func(ctx context.Context, doc *Document) error

// MethodFunc is an instance method available on every Document of a model.
type MethodFunc func(ctx context.Context, doc *Document, args ...interface{}) (interface{}, error)

// StaticFunc is a model-level function; it receives the Model it is bound to.
type StaticFunc func(ctx context.Context, model *Model, args ...interface{}) (interface{}, error)

// IndexSpec is a recorded index declaration. Queries never consult it; only
// index tooling (store.SyncIndexes) reads it.
type IndexSpec struct {
	Keys    bson.D
	Options *options.IndexOptions
}

// VirtualType holds the accessor pair registered under a virtual name.
type VirtualType struct {
	name   string
	getter func(doc *Document) interface{}
	setter func(doc *Document, value interface{})
}

// Name returns the virtual property name.
func (v *VirtualType) Name() string {
	return v.name
}

// Get registers the getter and returns the virtual for chaining.
func (v *VirtualType) Get(fn func(doc *Document) interface{}) *VirtualType {
	v.getter = fn
	return v
}

// Set registers the setter and returns the virtual for chaining.
func (v *VirtualType) Set(fn func(doc *Document, value interface{})) *VirtualType {
	v.setter = fn
	return v
}

// Schema is a model definition plus hooks, index declarations, virtuals and
// the methods/statics tables. Build it fully before passing it to NewModel;
// it is not safe for concurrent mutation.
type Schema struct {
	definition Definition
	options    SchemaOptions
	hooks      map[string][]HookFunc
	indexes    []IndexSpec
	virtuals   map[string]*VirtualType
	methods    map[string]MethodFunc
	statics    map[string]StaticFunc
}

// NewSchema creates a schema for the given definition.
func NewSchema(definition Definition, opts ...SchemaOption) *Schema {
	s := &Schema{
		definition: definition,
		hooks:      make(map[string][]HookFunc),
		virtuals:   make(map[string]*VirtualType),
		methods:    make(map[string]MethodFunc),
		statics:    make(map[string]StaticFunc),
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	return s
}

// Definition returns the advisory field definition.
func (s *Schema) Definition() Definition {
	return s.definition
}

// Options returns the schema options.
func (s *Schema) Options() SchemaOptions {
	return s.options
}

// Pre appends fn to the ordered hook list for event.
func (s *Schema) Pre(event string, fn HookFunc) *Schema {
	s.hooks[event] = append(s.hooks[event], fn)
	return s
}

// Hooks returns the hooks registered for event in registration order.
func (s *Schema) Hooks(event string) []HookFunc {
	hooks := s.hooks[event]
	out := make([]HookFunc, len(hooks))
	copy(out, hooks)
	return out
}

// Index records an index declaration.
func (s *Schema) Index(keys bson.D, opts *options.IndexOptions) *Schema {
	s.indexes = append(s.indexes, IndexSpec{Keys: keys, Options: opts})
	return s
}

// Indexes returns the recorded declarations in order.
func (s *Schema) Indexes() []IndexSpec {
	out := make([]IndexSpec, len(s.indexes))
	copy(out, s.indexes)
	return out
}

// Virtual returns the virtual registered under name, creating it if needed.
func (s *Schema) Virtual(name string) *VirtualType {
	if v, ok := s.virtuals[name]; ok {
		return v
	}
	v := &VirtualType{name: name}
	s.virtuals[name] = v
	return v
}

// Method adds an instance method.
func (s *Schema) Method(name string, fn MethodFunc) *Schema {
	s.methods[name] = fn
	return s
}

// Static adds a model-level function.
func (s *Schema) Static(name string, fn StaticFunc) *Schema {
	s.statics[name] = fn
	return s
}

func (s *Schema) runHooks(ctx context.Context, event string, doc *Document) error {
	for _, hook := range s.hooks[event] {
		if err := hook(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
