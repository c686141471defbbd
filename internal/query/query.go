package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/pagination"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

type Strategy string

const (
	Contains   Strategy = "contains"
	StartsWith Strategy = "startsWith"
	Match      Strategy = "match"
)

// Spec is the normalized form of a list or read request.
type Spec struct {
	// RawWhere is the request filter before any strategy was applied.
	RawWhere map[string]any
	// Where is RawWhere after the strategy. Custom filters are still in it.
	Where    bson.M
	Strategy Strategy
	Sort     bson.D
	Select   []string
	Populate []schema.Populate
	Page     int
	Limit    int

	Structured bool
	View       string
}

// Skip is the number of documents before the requested page.
func (s Spec) Skip() int {
	return pagination.Skip(s.Page, s.Limit)
}

// Projection turns Select into a projection document. A leading "-"
// excludes the field.
func (s Spec) Projection() bson.M {
	if len(s.Select) == 0 {
		return nil
	}
	out := bson.M{}
	for _, f := range s.Select {
		if name, ok := strings.CutPrefix(f, "-"); ok {
			out[name] = 0
			continue
		}
		out[f] = 1
	}
	return out
}

// Has reports whether the raw filter contains key.
func (s Spec) Has(key string) bool {
	_, ok := s.RawWhere[key]
	return ok
}

// Normalizer parses request parameters for one entity.
type Normalizer struct {
	entity *schema.Entity
}

func NewNormalizer(entity *schema.Entity) *Normalizer {
	return &Normalizer{entity: entity}
}

// Parse builds a Spec from decoded request parameters.
func (n *Normalizer) Parse(params map[string]any) Spec {
	spec := Spec{
		Strategy:   parseStrategy(params["whereStrategy"]),
		Sort:       n.sort(params["sort"]),
		Select:     parseSelect(params["select"]),
		Populate:   ParsePopulate(params["populate"]),
		Page:       parsePositive(params["page"], pagination.DefaultPage),
		Limit:      parsePositive(params["limit"], pagination.DefaultLimit),
		Structured: parseBool(params["structured"]),
	}
	if v, ok := params["view"].(string); ok {
		spec.View = v
	}

	raw, ok := params["where"].(map[string]any)
	if !ok {
		raw = map[string]any{}
		for k, v := range n.entity.DefaultFilter {
			raw[k] = v
		}
	}
	spec.RawWhere = raw
	spec.Where = n.where(raw, spec.Strategy)
	return spec
}

// Filter is the store filter for the find path: Where with every custom
// filter key replaced by the registered filter, combined under $and.
func (n *Normalizer) Filter(spec Spec) bson.M {
	out := bson.M{}
	for k, v := range spec.Where {
		out[k] = v
	}
	keys := make([]string, 0, len(spec.RawWhere))
	for k := range spec.RawWhere {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var and bson.A
	if existing, ok := out["$and"].(bson.A); ok {
		and = existing
	}
	for _, k := range keys {
		filter, ok := n.entity.Filter(k)
		if !ok {
			continue
		}
		and = append(and, filter(spec.RawWhere[k]))
		delete(out, k)
	}
	if len(and) > 0 {
		out["$and"] = and
	}
	return out
}

func (n *Normalizer) where(raw map[string]any, strategy Strategy) bson.M {
	out := bson.M{}
	if strategy == Match {
		for k, v := range raw {
			out[k] = n.entity.CastValue(k, v)
		}
		return out
	}
	for k, v := range raw {
		if k == "$or" {
			out[k] = orPatterns(v)
			continue
		}
		switch val := v.(type) {
		case []any:
			out[k] = bson.M{"$in": n.entity.CastValue(k, val)}
		case string:
			if n.entity.IsObjectID(k) {
				if id, err := bson.ObjectIDFromHex(val); err == nil {
					out[k] = id
					continue
				}
			}
			out[k] = Pattern(val, strategy)
		default:
			out[k] = v
		}
	}
	return out
}

// orPatterns fans a {field: value} object out into prefix patterns.
func orPatterns(v any) bson.A {
	var entries []map[string]any
	switch t := v.(type) {
	case map[string]any:
		entries = append(entries, t)
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	}
	out := bson.A{}
	for _, m := range entries {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, bson.M{k: Pattern(fmt.Sprint(m[k]), StartsWith)})
		}
	}
	return out
}

// Pattern builds a case-insensitive regular expression matching value
// literally, anywhere for Contains and at the start otherwise.
func Pattern(value string, strategy Strategy) bson.Regex {
	p := regexp.QuoteMeta(value)
	if strategy != Contains {
		p = "^" + p
	}
	return bson.Regex{Pattern: p, Options: "i"}
}

func (n *Normalizer) sort(v any) bson.D {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, 0, len(t))
		for _, e := range t {
			out = append(out, bson.E{Key: e.Key, Value: Direction(e.Value)})
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(bson.D, 0, len(keys))
		for _, k := range keys {
			out = append(out, bson.E{Key: k, Value: Direction(t[k])})
		}
		return out
	}
	if len(n.entity.DefaultOrder) > 0 {
		return append(bson.D(nil), n.entity.DefaultOrder...)
	}
	return bson.D{{Key: "updatedAt", Value: 1}}
}

// Direction maps asc, ascending and 1 to 1 and anything else to -1.
func Direction(v any) int {
	switch t := v.(type) {
	case string:
		switch strings.ToLower(t) {
		case "asc", "ascending", "1":
			return 1
		}
	case float64:
		if t == 1 {
			return 1
		}
	case int:
		if t == 1 {
			return 1
		}
	}
	return -1
}

func parseStrategy(v any) Strategy {
	s, _ := v.(string)
	switch Strategy(s) {
	case Match, StartsWith:
		return Strategy(s)
	}
	return Contains
}

func parseSelect(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	case string:
		return strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' })
	}
	return nil
}

// ParsePopulate reads a populate mapping. A key "a.b" with a list value
// populates b inside a with that selection.
func ParsePopulate(v any) []schema.Populate {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]schema.Populate, 0, len(keys))
	for _, k := range keys {
		sel := parseSelect(m[k])
		_, isList := m[k].([]any)
		if head, tail, nested := strings.Cut(k, "."); nested && isList {
			out = append(out, schema.Populate{Path: head, Nested: &schema.Populate{Path: tail, Select: sel}})
			continue
		}
		out = append(out, schema.Populate{Path: k, Select: sel})
	}
	return out
}

func parsePositive(v any, def int) int {
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case int:
		n = t
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	if n < 1 {
		return def
	}
	return n
}

func parseBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	case float64:
		return t == 1
	}
	return false
}
