package schema

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type FieldType int

const (
	String FieldType = iota
	Int
	Number
	Bool
	Date
	ObjectID
	Object
	Array
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "integer"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case Date:
		return "date"
	case ObjectID:
		return "objectId"
	case Object:
		return "object"
	case Array:
		return "array"
	}
	return "unknown"
}

// Field describes one stored attribute of an entity.
type Field struct {
	Name     string
	Type     FieldType
	Ref      string // target entity of an ObjectID field
	Elem     *Field // element of an Array field
	Fields   []Field
	Required bool
	Unique   bool
	Enum     []string
	Default  any
	Min, Max *float64
	// Rules are appended verbatim to the generated validation rules.
	Rules []string
	// Set normalizes a value before it is stored.
	Set func(any) any
	// DayOnly truncates stored dates to midnight UTC.
	DayOnly bool
}

// Virtual is a reverse relation resolved at read time.
type Virtual struct {
	Name         string
	Ref          string
	LocalField   string
	ForeignField string
	JustOne      bool
}

// Populate is one relation to join into read results.
type Populate struct {
	Path   string
	Select []string
	// ActiveOnly keeps only joined documents whose startDate/endDate make
	// them current.
	ActiveOnly bool
	Nested     *Populate
}

type Index struct {
	Keys   bson.D
	Unique bool
}

// FilterFunc turns the raw value of a custom where key into a store filter.
type FilterFunc func(value any) bson.M

// Entity is the static description of one document type.
type Entity struct {
	Name          string
	Collection    string
	Fields        []Field
	Virtuals      []Virtual
	DefaultOrder  bson.D
	DefaultFilter map[string]any
	Filters       map[string]FilterFunc
	// TrailingStage runs after skip/limit on aggregate lists.
	TrailingStage bson.M
	Indexes       []Index
	AutoPopulate  []Populate
	// CheckDates rejects an endDate without a startDate or before it.
	CheckDates bool
	// Computed adds derived fields to a document read outside the
	// aggregate path.
	Computed func(doc bson.M, now time.Time)
	// AlwaysAggregate routes list requests through the aggregate path.
	AlwaysAggregate bool
}

// Field resolves a dotted path, descending into objects and array elements.
func (e *Entity) Field(path string) (*Field, bool) {
	fields := e.Fields
	var found *Field
	for _, part := range strings.Split(path, ".") {
		found = nil
		for i := range fields {
			if fields[i].Name == part {
				found = &fields[i]
				break
			}
		}
		if found == nil {
			return nil, false
		}
		next := found
		if next.Type == Array && next.Elem != nil {
			next = next.Elem
		}
		fields = next.Fields
	}
	return found, found != nil
}

func (e *Entity) Virtual(name string) (*Virtual, bool) {
	for i := range e.Virtuals {
		if e.Virtuals[i].Name == name {
			return &e.Virtuals[i], true
		}
	}
	return nil, false
}

// Filter returns the custom filter registered under name.
func (e *Entity) Filter(name string) (FilterFunc, bool) {
	f, ok := e.Filters[name]
	return f, ok
}

// IndexModels returns the unique single-field indexes declared on fields
// followed by the compound indexes of the entity.
func (e *Entity) IndexModels() []Index {
	var out []Index
	for _, f := range e.Fields {
		if f.Unique {
			out = append(out, Index{Keys: bson.D{{Key: f.Name, Value: 1}}, Unique: true})
		}
	}
	return append(out, e.Indexes...)
}

// RefOf returns the entity referenced by an ObjectID field or an array of
// them, and whether the relation is to many documents.
func (e *Entity) RefOf(path string) (string, bool, bool) {
	f, ok := e.Field(path)
	if !ok {
		return "", false, false
	}
	if f.Type == Array && f.Elem != nil && f.Elem.Type == ObjectID && f.Elem.Ref != "" {
		return f.Elem.Ref, true, true
	}
	if f.Type == ObjectID && f.Ref != "" {
		return f.Ref, false, true
	}
	return "", false, false
}

// Registry holds every entity by name. It is built once at startup.
type Registry struct {
	entities map[string]*Entity
	order    []string
}

func NewRegistry(entities ...*Entity) *Registry {
	r := &Registry{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		r.entities[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	return r
}

func (r *Registry) Get(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// All returns the entities in registration order.
func (r *Registry) All() []*Entity {
	out := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entities[name])
	}
	return out
}

func ptr(f float64) *float64 { return &f }
