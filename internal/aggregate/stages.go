package aggregate

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Pipeline is an ordered list of aggregation stages.
type Pipeline []bson.M

// lookup joins from into as, matching foreignField against localField. Extra
// stages run inside the join; fields, when given, become its projection.
func lookup(from, localField, as, foreignField string, inner Pipeline, fields ...string) bson.M {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$" + foreignField, "$$localField"}}}},
	}
	for _, s := range inner {
		pipeline = append(pipeline, s)
	}
	if len(fields) > 0 {
		project := bson.M{}
		for _, f := range fields {
			project[f] = 1
		}
		pipeline = append(pipeline, bson.M{"$project": project})
	}
	return bson.M{"$lookup": bson.M{
		"from":     from,
		"let":      bson.M{"localField": "$" + localField},
		"pipeline": pipeline,
		"as":       as,
	}}
}

func unwind(path string) bson.M {
	return bson.M{"$unwind": bson.M{"path": "$" + path, "preserveNullAndEmptyArrays": true}}
}

// joinOne looks up a single referenced document and unwinds it in place.
func joinOne(from, field string, fields ...string) Pipeline {
	return Pipeline{lookup(from, field, field, "_id", nil, fields...), unwind(field)}
}

func exists(expr string) bson.M {
	return bson.M{"$ne": bson.A{bson.M{"$ifNull": bson.A{expr, nil}}, nil}}
}

func missing(expr string) bson.M {
	return bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{expr, nil}}, nil}}
}

// nullIfMissing yields null for an absent field.
func nullIfMissing(expr string) bson.M {
	return bson.M{"$ifNull": bson.A{expr, nil}}
}

// firstOrNull yields the first element of an array or null when empty.
func firstOrNull(expr string) bson.M {
	return bson.M{"$cond": bson.M{
		"if":   bson.M{"$eq": bson.A{expr, bson.A{}}},
		"then": nil,
		"else": bson.M{"$arrayElemAt": bson.A{expr, 0}},
	}}
}

func concat(parts ...Pipeline) Pipeline {
	var out Pipeline
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Clone deep copies a pipeline so callers can edit stages freely.
func Clone(p Pipeline) Pipeline {
	if p == nil {
		return nil
	}
	out := make(Pipeline, len(p))
	for i, s := range p {
		out[i] = cloneValue(s).(bson.M)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case Pipeline:
		return Clone(t)
	}
	return v
}
