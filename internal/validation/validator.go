package validation

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

// Rules maps a field path to its rule list. "a.b" addresses an embedded
// field and "a.*" every element of an array.
type Rules map[string][]string

const (
	FilterOnlyBodyRules = "only-body-rules"
	FilterNoRequired    = "no-required"

	MongoIDInParams = "mongoIdInParams"
	MongoIDInArray  = "mongoIdInArray"
)

// Check is one validation unit: data checked against a named rule set,
// extra rules, or both.
type Check struct {
	Data    map[string]any
	Defined string
	Rules   Rules
	Filters []string
}

type Validator struct {
	validate      *validator.Validate
	companyDomain string
	defined       map[string]Rules
}

func New(companyDomain string) *Validator {
	v := &Validator{
		validate:      validator.New(),
		companyDomain: companyDomain,
		defined: map[string]Rules{
			MongoIDInParams: {"_id": {"required", "isMongoId"}},
			MongoIDInArray:  {"_ids": {"required", "array"}, "_ids.*": {"isMongoId"}},
		},
	}
	pattern := regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@(?:(?:[a-zA-Z0-9-]+\.)?[a-zA-Z]+\.)?` + regexp.QuoteMeta(companyDomain) + `$`)
	_ = v.validate.RegisterValidation("company_email", func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	return v
}

// Register adds a named rule set.
func (v *Validator) Register(name string, rules Rules) {
	v.defined[name] = rules
}

func (v *Validator) Defined(name string) (Rules, bool) {
	r, ok := v.defined[name]
	return r, ok
}

// Validate runs every check and reports all violations at once.
func (v *Validator) Validate(checks ...Check) error {
	var merr *multierror.Error
	for _, c := range checks {
		rules := Rules{}
		if c.Defined != "" {
			for k, r := range v.defined[c.Defined] {
				rules[k] = r
			}
		}
		for k, r := range c.Rules {
			rules[k] = r
		}
		rules = applyFilters(rules, c.Filters, c.Data)

		keys := make([]string, 0, len(rules))
		for k := range rules {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			for _, target := range resolve(c.Data, key) {
				for _, rule := range rules[key] {
					if msg := v.check(rule, target); msg != "" {
						merr = multierror.Append(merr, fmt.Errorf("%s", msg))
					}
				}
			}
		}
	}
	return apperrors.NewValidation(merr)
}

// Simple checks data against rules and returns the violation messages.
func (v *Validator) Simple(data map[string]any, rules Rules) []string {
	err := v.Validate(Check{Data: data, Rules: rules})
	if err == nil {
		return nil
	}
	return apperrors.Messages(err)
}

type target struct {
	attribute string
	value     any
	present   bool
}

// resolve expands key against data. Wildcard segments fan out over array
// elements.
func resolve(data map[string]any, key string) []target {
	parts := strings.Split(key, ".")
	var walk func(cur any, i int, attr string) []target
	walk = func(cur any, i int, attr string) []target {
		if i == len(parts) {
			return []target{{attribute: attr, value: cur, present: cur != nil}}
		}
		part := parts[i]
		if part == "*" {
			items, ok := cur.([]any)
			if !ok {
				return nil
			}
			var out []target
			for idx, item := range items {
				out = append(out, walk(item, i+1, attr+"."+strconv.Itoa(idx))...)
			}
			return out
		}
		next := attr + "." + part
		if i == 0 {
			next = part
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return []target{{attribute: next}}
		}
		val, exists := m[part]
		if !exists {
			return []target{{attribute: joinRest(next, parts[i+1:])}}
		}
		return walk(val, i+1, next)
	}
	return walk(data, 0, "")
}

func joinRest(attr string, rest []string) string {
	if len(rest) == 0 {
		return attr
	}
	return attr + "." + strings.Join(rest, ".")
}

func applyFilters(rules Rules, filters []string, data map[string]any) Rules {
	out := Rules{}
	for k, r := range rules {
		out[k] = slices.Clone(r)
	}
	for _, f := range filters {
		switch f {
		case FilterNoRequired:
			for k, r := range out {
				out[k] = slices.DeleteFunc(r, func(s string) bool { return s == "required" })
			}
		case FilterOnlyBodyRules:
			keys := map[string]bool{}
			for k, val := range data {
				keys[k] = true
				if sub, ok := val.(map[string]any); ok {
					for sk := range sub {
						keys[k+"."+sk] = true
					}
				}
				if _, ok := val.([]any); ok {
					keys[k+".*"] = true
				}
			}
			for k := range out {
				if keys[k] {
					continue
				}
				if i := strings.Index(k, ".*"); i > 0 && keys[k[:i]+".*"] {
					continue
				}
				delete(out, k)
			}
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func (v *Validator) check(rule string, t target) string {
	name, param, _ := strings.Cut(rule, ":")
	attr := t.attribute

	if name == "required" {
		if !t.present || isEmpty(t.value) {
			return fmt.Sprintf("The %s field is required.", attr)
		}
		return ""
	}
	if !t.present || isEmpty(t.value) {
		return ""
	}

	val := t.value
	switch name {
	case "string":
		if _, ok := val.(string); !ok {
			return fmt.Sprintf("The %s must be a string.", attr)
		}
	case "integer":
		if n, ok := toNumber(val); !ok || n != math.Trunc(n) {
			return fmt.Sprintf("The %s must be an integer.", attr)
		}
	case "numeric":
		if _, ok := toNumber(val); !ok {
			return fmt.Sprintf("The %s must be a number.", attr)
		}
	case "boolean":
		switch b := val.(type) {
		case bool:
		case float64:
			if b != 0 && b != 1 {
				return fmt.Sprintf("The %s field must be true or false.", attr)
			}
		case string:
			if !slices.Contains([]string{"true", "false", "0", "1"}, b) {
				return fmt.Sprintf("The %s field must be true or false.", attr)
			}
		default:
			return fmt.Sprintf("The %s field must be true or false.", attr)
		}
	case "date":
		if !isDate(val) {
			return fmt.Sprintf("The %s is not a valid date format.", attr)
		}
	case "array":
		if _, ok := val.([]any); !ok {
			return fmt.Sprintf("The %s should be an array", attr)
		}
	case "object":
		if _, ok := val.(map[string]any); !ok {
			return fmt.Sprintf("The %s should be an Object", attr)
		}
	case "isMongoId":
		if s, ok := val.(string); !ok || v.validate.Var(s, "mongodb") != nil {
			return fmt.Sprintf("The %s is not a valid Mongo ObjectId", attr)
		}
	case "email":
		if s, ok := val.(string); !ok || v.validate.Var(s, "email") != nil {
			return fmt.Sprintf("The %s format is invalid.", attr)
		}
	case "companyEmail":
		if s, ok := val.(string); !ok || v.validate.Var(s, "company_email") != nil {
			return fmt.Sprintf("The %s is not an @%s email", attr, v.companyDomain)
		}
	case "url":
		if s, ok := val.(string); !ok || v.validate.Var(s, "url") != nil {
			return fmt.Sprintf("The %s format is invalid.", attr)
		}
	case "in":
		if !slices.Contains(strings.Split(param, ","), fmt.Sprint(val)) {
			return fmt.Sprintf("The selected %s is invalid.", attr)
		}
	case "min", "max":
		limit, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return ""
		}
		size, ok := sizeOf(val)
		if !ok {
			return ""
		}
		if name == "min" && size < limit {
			return fmt.Sprintf("The %s must be at least %s.", attr, param)
		}
		if name == "max" && size > limit {
			return fmt.Sprintf("The %s may not be greater than %s.", attr, param)
		}
	case "shouldNotExist":
		if truthy(val) {
			return fmt.Sprintf("The %s should not exist in request", attr)
		}
	}
	return ""
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func sizeOf(v any) (float64, bool) {
	switch t := v.(type) {
	case string:
		if n, ok := toNumber(t); ok {
			return n, true
		}
		return float64(len([]rune(t))), true
	case []any:
		return float64(len(t)), true
	}
	return toNumber(v)
}

func isDate(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case string:
		_, ok := schema.ParseDate(t)
		return ok
	case float64:
		return true
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	return true
}
