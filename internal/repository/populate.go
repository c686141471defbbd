package repository

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

// PopulateStages turns populate requests on entity into $lookup stages.
// Paths that are neither a reference field nor a virtual are skipped.
func PopulateStages(reg *schema.Registry, entity *schema.Entity, populate []schema.Populate) aggregate.Pipeline {
	out := aggregate.Pipeline{}
	for _, p := range populate {
		out = append(out, populateOne(reg, entity, p)...)
	}
	return out
}

func populateOne(reg *schema.Registry, entity *schema.Entity, p schema.Populate) aggregate.Pipeline {
	if refName, many, ok := entity.RefOf(p.Path); ok {
		target, ok := reg.Get(refName)
		if !ok {
			return nil
		}
		if many {
			match := bson.M{"$expr": bson.M{"$in": bson.A{"$_id", "$$ids"}}}
			return aggregate.Pipeline{
				lookupStage(target.Collection, bson.M{"ids": bson.M{"$ifNull": bson.A{"$" + p.Path, bson.A{}}}}, match, inner(reg, target, p), p.Path),
			}
		}
		match := bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$id"}}}
		return aggregate.Pipeline{
			lookupStage(target.Collection, bson.M{"id": "$" + p.Path}, match, inner(reg, target, p), p.Path),
			unwindStage(p.Path),
		}
	}

	v, ok := entity.Virtual(p.Path)
	if !ok {
		return nil
	}
	target, ok := reg.Get(v.Ref)
	if !ok {
		return nil
	}
	var match bson.M
	if f, ok := target.Field(v.ForeignField); ok && f.Type == schema.Array {
		match = bson.M{"$expr": bson.M{"$in": bson.A{"$$local", bson.M{"$ifNull": bson.A{"$" + v.ForeignField, bson.A{}}}}}}
	} else {
		match = bson.M{"$expr": bson.M{"$eq": bson.A{"$" + v.ForeignField, "$$local"}}}
	}
	out := aggregate.Pipeline{
		lookupStage(target.Collection, bson.M{"local": "$" + v.LocalField}, match, inner(reg, target, p), p.Path),
	}
	if v.JustOne {
		out = append(out, unwindStage(p.Path))
	}
	return out
}

// inner is the part of the joined pipeline after the key match.
func inner(reg *schema.Registry, target *schema.Entity, p schema.Populate) bson.A {
	out := bson.A{}
	if p.ActiveOnly {
		out = append(out, bson.M{"$match": schema.ActiveExpr()})
	}
	if p.Nested != nil {
		for _, s := range populateOne(reg, target, *p.Nested) {
			out = append(out, s)
		}
	}
	if len(p.Select) > 0 {
		project := bson.M{}
		for _, f := range p.Select {
			project[f] = 1
		}
		out = append(out, bson.M{"$project": project})
	}
	return out
}

func lookupStage(from string, let, match bson.M, rest bson.A, as string) bson.M {
	pipeline := append(bson.A{bson.M{"$match": match}}, rest...)
	return bson.M{"$lookup": bson.M{
		"from":     from,
		"let":      let,
		"pipeline": pipeline,
		"as":       as,
	}}
}

func unwindStage(path string) bson.M {
	return bson.M{"$unwind": bson.M{"path": "$" + path, "preserveNullAndEmptyArrays": true}}
}

// withAutoPopulate appends the entity's default relations that the request
// did not name itself.
func withAutoPopulate(entity *schema.Entity, populate []schema.Populate) []schema.Populate {
	if len(entity.AutoPopulate) == 0 {
		return populate
	}
	out := append([]schema.Populate{}, populate...)
	for _, auto := range entity.AutoPopulate {
		named := false
		for _, p := range populate {
			if p.Path == auto.Path {
				named = true
				break
			}
		}
		if !named {
			out = append(out, auto)
		}
	}
	return out
}
