package schema

import (
	"strconv"
	"strings"
)

// Rules derives the request body rules of the entity. Keys are field paths
// where "a.b" addresses an embedded field and "a.*" every array element.
func (e *Entity) Rules() map[string][]string {
	rules := map[string][]string{}
	for i := range e.Fields {
		addRules(rules, e.Fields[i].Name, &e.Fields[i])
	}
	for _, key := range []string{"_id", "createdAt", "updatedAt"} {
		rules[key] = []string{"shouldNotExist"}
	}
	return rules
}

func addRules(rules map[string][]string, path string, f *Field) {
	list := []string{typeRule(f.Type)}
	if f.Required {
		list = append(list, "required")
	}
	if len(f.Enum) > 0 {
		list = append(list, "in:"+strings.Join(f.Enum, ","))
	}
	if f.Min != nil {
		list = append(list, "min:"+strconv.FormatFloat(*f.Min, 'f', -1, 64))
	}
	if f.Max != nil {
		list = append(list, "max:"+strconv.FormatFloat(*f.Max, 'f', -1, 64))
	}
	list = append(list, f.Rules...)
	rules[path] = list

	switch f.Type {
	case Object:
		for i := range f.Fields {
			addRules(rules, path+"."+f.Fields[i].Name, &f.Fields[i])
		}
	case Array:
		if f.Elem == nil {
			return
		}
		if f.Elem.Type == Object {
			for i := range f.Elem.Fields {
				addRules(rules, path+".*."+f.Elem.Fields[i].Name, &f.Elem.Fields[i])
			}
			return
		}
		addRules(rules, path+".*", f.Elem)
	}
}

func typeRule(t FieldType) string {
	switch t {
	case String:
		return "string"
	case Int:
		return "integer"
	case Number:
		return "numeric"
	case Bool:
		return "boolean"
	case Date:
		return "date"
	case ObjectID:
		return "isMongoId"
	case Object:
		return "object"
	case Array:
		return "array"
	}
	return "string"
}
