package schema

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
)

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDate accepts RFC 3339 timestamps and plain calendar dates.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Cast converts a decoded JSON body into a document ready for storage.
// Keys the entity does not declare are dropped.
func (e *Entity) Cast(body map[string]any) bson.M {
	return castObject(e.Fields, body)
}

func castObject(fields []Field, in map[string]any) bson.M {
	out := bson.M{}
	for i := range fields {
		f := &fields[i]
		v, ok := in[f.Name]
		if !ok {
			continue
		}
		out[f.Name] = castField(f, v)
	}
	return out
}

func castField(f *Field, v any) any {
	if v == nil {
		return nil
	}
	if f.Set != nil {
		v = f.Set(v)
	}
	switch f.Type {
	case ObjectID:
		if s, ok := v.(string); ok {
			if id, err := bson.ObjectIDFromHex(s); err == nil {
				return id
			}
		}
	case Date:
		var t time.Time
		switch d := v.(type) {
		case string:
			parsed, ok := ParseDate(d)
			if !ok {
				return v
			}
			t = parsed
		case time.Time:
			t = d
		default:
			return v
		}
		t = t.UTC()
		if f.DayOnly {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t
	case Int:
		if n, ok := v.(float64); ok && n == math.Trunc(n) {
			return int64(n)
		}
	case Object:
		if m, ok := v.(map[string]any); ok {
			return castObject(f.Fields, m)
		}
	case Array:
		items, ok := v.([]any)
		if !ok || f.Elem == nil {
			return v
		}
		out := make(bson.A, 0, len(items))
		for _, item := range items {
			out = append(out, castField(f.Elem, item))
		}
		return out
	}
	return v
}

// CastValue converts a where value for path. Identifier strings become
// ObjectIDs and date strings become times; everything else is unchanged.
func (e *Entity) CastValue(path string, v any) any {
	f, ok := e.Field(path)
	if path == "_id" {
		f, ok = &Field{Name: "_id", Type: ObjectID}, true
	}
	if !ok {
		return v
	}
	target := f
	if f.Type == Array && f.Elem != nil {
		target = f.Elem
	}
	if target.Type != ObjectID && target.Type != Date {
		return v
	}
	switch t := v.(type) {
	case string:
		return castScalar(target, t)
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, castScalar(target, s))
				continue
			}
			out = append(out, item)
		}
		return out
	}
	return v
}

func castScalar(f *Field, s string) any {
	switch f.Type {
	case ObjectID:
		if id, err := bson.ObjectIDFromHex(s); err == nil {
			return id
		}
	case Date:
		if t, ok := ParseDate(s); ok {
			return t.UTC()
		}
	}
	return s
}

// IsObjectID reports whether path stores identifiers.
func (e *Entity) IsObjectID(path string) bool {
	if path == "_id" {
		return true
	}
	f, ok := e.Field(path)
	if !ok {
		return false
	}
	if f.Type == Array && f.Elem != nil {
		return f.Elem.Type == ObjectID
	}
	return f.Type == ObjectID
}

// ApplyDefaults fills declared defaults for missing keys, recursing into
// embedded objects.
func (e *Entity) ApplyDefaults(doc bson.M) {
	applyDefaults(e.Fields, doc)
}

func applyDefaults(fields []Field, doc bson.M) {
	for i := range fields {
		f := &fields[i]
		v, ok := doc[f.Name]
		if !ok && f.Default != nil {
			doc[f.Name] = f.Default
			continue
		}
		switch f.Type {
		case Object:
			if m, isMap := v.(bson.M); isMap {
				applyDefaults(f.Fields, m)
			}
		case Array:
			if f.Elem == nil || f.Elem.Type != Object {
				continue
			}
			if items, isArr := v.(bson.A); isArr {
				for _, item := range items {
					if m, isMap := item.(bson.M); isMap {
						applyDefaults(f.Elem.Fields, m)
					}
				}
			}
		}
	}
}

// AsTime reads a date value as stored or as decoded from the store.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case bson.DateTime:
		return t.Time().UTC(), true
	}
	return time.Time{}, false
}

// ValidateDates checks the start/end date pair of doc.
func ValidateDates(doc bson.M) error {
	start, hasStart := AsTime(doc["startDate"])
	end, hasEnd := AsTime(doc["endDate"])
	if hasEnd && !hasStart {
		return apperrors.NewValidation("End date must be after Start date")
	}
	if hasStart && hasEnd && start.After(end) {
		return apperrors.NewValidation("End date must be after Start date")
	}
	return nil
}

// Normalize runs the write-time checks of the entity against doc.
func (e *Entity) Normalize(doc bson.M) error {
	if e.CheckDates {
		return ValidateDates(doc)
	}
	return nil
}
