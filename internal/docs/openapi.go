// Package docs describes the REST API as an OpenAPI 3 document built from
// the entity registry.
package docs

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

// Mount is an entity served under a path prefix.
type Mount struct {
	Entity string
	Path   string
}

// Build returns the document for the given mounts. Entities missing from
// the registry are skipped.
func Build(registry *schema.Registry, mounts []Mount, title, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &openapi3.Info{Title: title, Version: version},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}

	for _, e := range registry.All() {
		doc.Components.Schemas[e.Name] = openapi3.NewSchemaRef("", entitySchema(e))
	}

	for _, m := range mounts {
		if _, ok := registry.Get(m.Entity); !ok {
			continue
		}
		ref := openapi3.NewSchemaRef("#/components/schemas/"+m.Entity, nil)
		doc.Paths.Set(m.Path, collectionItem(m.Entity, ref))
		doc.Paths.Set(m.Path+"/{_id}", documentItem(m.Entity, ref))
		doc.Paths.Set(m.Path+"/bulk", bulkItem(m.Entity))
	}
	return doc
}

func entitySchema(e *schema.Entity) *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("_id", objectID()).
		WithProperty("createdAt", openapi3.NewDateTimeSchema()).
		WithProperty("updatedAt", openapi3.NewDateTimeSchema())
	for _, f := range e.Fields {
		s.WithProperty(f.Name, fieldSchema(f))
		if f.Required {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

func fieldSchema(f schema.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch f.Type {
	case schema.Int:
		s = openapi3.NewIntegerSchema()
	case schema.Number:
		s = openapi3.NewFloat64Schema()
	case schema.Bool:
		s = openapi3.NewBoolSchema()
	case schema.Date:
		s = openapi3.NewDateTimeSchema()
	case schema.ObjectID:
		s = objectID()
		if f.Ref != "" {
			s.Description = "Reference to " + f.Ref
		}
	case schema.Object:
		s = openapi3.NewObjectSchema()
		for _, sub := range f.Fields {
			s.WithProperty(sub.Name, fieldSchema(sub))
		}
	case schema.Array:
		items := openapi3.NewObjectSchema()
		if f.Elem != nil {
			items = fieldSchema(*f.Elem)
		}
		s = openapi3.NewArraySchema().WithItems(items)
	default:
		s = openapi3.NewStringSchema()
	}
	if len(f.Enum) > 0 {
		values := make([]any, len(f.Enum))
		for i, v := range f.Enum {
			values[i] = v
		}
		s.WithEnum(values...)
	}
	s.Min = f.Min
	s.Max = f.Max
	if f.Default != nil {
		s.Default = f.Default
	}
	return s
}

func objectID() *openapi3.Schema {
	return openapi3.NewStringSchema().WithPattern("^[0-9a-fA-F]{24}$")
}

func listSchema(ref *openapi3.SchemaRef) *openapi3.Schema {
	list := openapi3.NewArraySchema()
	list.Items = ref
	return openapi3.NewObjectSchema().
		WithProperty("meta", openapi3.NewObjectSchema().
			WithProperty("totalResults", openapi3.NewIntegerSchema()).
			WithProperty("totalPages", openapi3.NewIntegerSchema()).
			WithProperty("currentPage", openapi3.NewIntegerSchema())).
		WithProperty("list", list)
}

func queryParams(op *openapi3.Operation, names ...string) {
	for _, name := range names {
		op.AddParameter(openapi3.NewQueryParameter(name).WithSchema(openapi3.NewStringSchema()))
	}
}

func operation(entity, summary string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.Tags = []string{entity}
	op.Summary = summary
	op.AddResponse(http.StatusBadRequest, openapi3.NewResponse().WithDescription("Validation failed"))
	op.AddResponse(http.StatusUnauthorized, openapi3.NewResponse().WithDescription("Please login first!"))
	return op
}

func jsonBody(ref *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithJSONSchemaRef(ref)}
}

func collectionItem(entity string, ref *openapi3.SchemaRef) *openapi3.PathItem {
	list := operation(entity, "List "+entity)
	queryParams(list, "where", "whereStrategy", "select", "sort", "populate", "page", "limit")
	list.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("One page").
		WithJSONSchema(listSchema(ref)))

	create := operation(entity, "Create "+entity)
	create.RequestBody = jsonBody(ref)
	create.AddResponse(http.StatusCreated, openapi3.NewResponse().WithDescription("Created").
		WithJSONSchemaRef(ref))

	return &openapi3.PathItem{Get: list, Post: create}
}

func documentItem(entity string, ref *openapi3.SchemaRef) *openapi3.PathItem {
	id := openapi3.NewPathParameter("_id").WithSchema(objectID())

	get := operation(entity, "Get "+entity)
	get.AddParameter(id)
	queryParams(get, "select", "populate")
	get.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Found").WithJSONSchemaRef(ref))
	get.AddResponse(http.StatusNotFound, openapi3.NewResponse().WithDescription("Not found"))

	update := operation(entity, "Update "+entity)
	update.AddParameter(id)
	update.RequestBody = jsonBody(ref)
	update.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Updated").WithJSONSchemaRef(ref))

	del := operation(entity, "Delete "+entity)
	del.AddParameter(id)
	del.AddResponse(http.StatusNoContent, openapi3.NewResponse().WithDescription("Deleted"))

	return &openapi3.PathItem{Get: get, Put: update, Delete: del}
}

func bulkItem(entity string) *openapi3.PathItem {
	op := operation(entity, "Update many "+entity)
	queryParams(op, "ids")
	op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithJSONSchema(openapi3.NewObjectSchema())}
	op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Number of updated documents").
		WithJSONSchema(openapi3.NewObjectSchema().WithProperty("updated", openapi3.NewIntegerSchema())))
	return &openapi3.PathItem{Put: op}
}
