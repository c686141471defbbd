package aggregate

import (
	"maps"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

// Composer assembles aggregate pipelines from the registered views. The
// registry is fixed at construction; every returned pipeline is a copy.
type Composer struct {
	views map[string]View
}

func NewComposer() *Composer {
	return &Composer{views: defaultViews()}
}

// Has reports whether a base pipeline is registered under name.
func (c *Composer) Has(name string) bool {
	_, ok := c.views[name]
	return ok
}

// Views returns the registered view names in sorted order.
func (c *Composer) Views() []string {
	return slices.Sorted(maps.Keys(c.views))
}

// BaseAggregate returns the base stages of name, followed by the base
// stages of optional when given, followed by the lookups of name as narrowed
// by populate. It reports false when either view is not registered.
func (c *Composer) BaseAggregate(name string, populate []schema.Populate, optional string) (Pipeline, bool) {
	view, ok := c.views[name]
	if !ok {
		return nil, false
	}
	out := Clone(view.Base)
	if optional != "" {
		extra, ok := c.views[optional]
		if !ok {
			return nil, false
		}
		out = append(out, Clone(extra.Base)...)
	}
	if out == nil {
		out = Pipeline{}
	}

	lookups := make([]Lookup, len(view.Lookups))
	for i, l := range view.Lookups {
		lookups[i] = Lookup{Name: l.Name, Stages: Clone(l.Stages)}
	}
	for _, p := range populate {
		if p.Nested != nil {
			// nested keys populate inside the joined document
			continue
		}
		for i := range lookups {
			if lookups[i].Name == p.Path {
				narrow(lookups[i].Stages, p.Select)
			}
		}
	}
	for _, l := range lookups {
		out = append(out, l.Stages...)
	}
	return out, true
}

// narrow rewrites the projection inside the first $lookup of stages: a
// selection replaces it, no selection removes it.
func narrow(stages Pipeline, fields []string) {
	for _, stage := range stages {
		spec, ok := stage["$lookup"].(bson.M)
		if !ok {
			continue
		}
		inner, ok := spec["pipeline"].(bson.A)
		if !ok {
			return
		}
		for i, s := range inner {
			m, ok := s.(bson.M)
			if !ok {
				continue
			}
			if _, isProject := m["$project"]; !isProject {
				continue
			}
			if len(fields) == 0 {
				spec["pipeline"] = slices.Delete(inner, i, i+1)
				return
			}
			project := bson.M{}
			for _, f := range fields {
				project[f] = 1
			}
			inner[i] = bson.M{"$project": project}
			return
		}
		if len(fields) > 0 {
			project := bson.M{}
			for _, f := range fields {
				project[f] = 1
			}
			spec["pipeline"] = append(inner, bson.M{"$project": project})
		}
		return
	}
}

// Optional holds the request-driven stages of an aggregate list.
type Optional struct {
	Match    bson.M
	Project  bson.M
	Sort     bson.D
	Skip     int
	Limit    int
	Trailing bson.M
}

// Stages returns the optional stages in their fixed order: match, project,
// sort, skip, limit, then the trailing stage. Empty ones are left out.
func (o Optional) Stages() Pipeline {
	out := o.filterStages()
	if o.Skip > 0 {
		out = append(out, bson.M{"$skip": int64(o.Skip)})
	}
	if o.Limit > 0 {
		out = append(out, bson.M{"$limit": int64(o.Limit)})
	}
	if len(o.Trailing) > 0 {
		out = append(out, o.Trailing)
	}
	return out
}

func (o Optional) filterStages() Pipeline {
	out := Pipeline{}
	if len(o.Match) > 0 {
		out = append(out, bson.M{"$match": o.Match})
	}
	if len(o.Project) > 0 {
		out = append(out, bson.M{"$project": o.Project})
	}
	if len(o.Sort) > 0 {
		out = append(out, bson.M{"$sort": o.Sort})
	}
	return out
}

// Compose appends the optional stages to base.
func Compose(base Pipeline, opt Optional) Pipeline {
	out := make(Pipeline, 0, len(base)+6)
	out = append(out, base...)
	return append(out, opt.Stages()...)
}

// MetaPipeline counts the full result set of base with the optional filter
// stages applied and paging left out. The single result document holds the
// count under "total".
func MetaPipeline(base Pipeline, opt Optional) Pipeline {
	out := make(Pipeline, 0, len(base)+4)
	out = append(out, base...)
	out = append(out, opt.filterStages()...)
	return append(out, bson.M{"$count": "total"})
}

// SelectProjection builds a projection from a field list.
func SelectProjection(fields []string) bson.M {
	if len(fields) == 0 {
		return nil
	}
	out := bson.M{}
	for _, f := range fields {
		out[f] = 1
	}
	return out
}

// ObjectIDMapper rewrites identifier-valued filters to match the _id of the
// joined document: {office: "<hex>"} becomes {"office._id": ObjectID}. Lists
// holding at least one identifier become an $in on the same path.
func ObjectIDMapper(raw map[string]any, where bson.M) bson.M {
	out := bson.M{}
	for k, v := range where {
		out[k] = v
	}
	for field, value := range raw {
		target := field + "._id"
		if field == "_id" {
			target = field
		}
		switch v := value.(type) {
		case []any:
			in := bson.A{}
			hasID := false
			for _, elem := range v {
				if s, ok := elem.(string); ok {
					if id, err := bson.ObjectIDFromHex(s); err == nil {
						in = append(in, id)
						hasID = true
						continue
					}
				}
				in = append(in, elem)
			}
			if hasID {
				delete(out, field)
				out[target] = bson.M{"$in": in}
			}
		case string:
			if id, err := bson.ObjectIDFromHex(v); err == nil {
				delete(out, field)
				out[target] = id
			}
		}
	}
	return out
}
