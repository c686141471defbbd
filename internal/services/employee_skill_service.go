package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/event"
	"github.com/ivaspavlo/staff-management-system/internal/models"
	"github.com/ivaspavlo/staff-management-system/internal/pagination"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/skilltree"
	"github.com/ivaspavlo/staff-management-system/internal/validation"
)

const upsertConcurrency = 8

// EmployeeSkillService adds the skill tree, the by-parent listing and the
// batch upsert to the employee skill resource. Every write keeps the
// rating history.
type EmployeeSkillService struct {
	*ResourceService
	skills   *ResourceService
	treeOpts skilltree.Options
}

func NewEmployeeSkillService(deps Deps, treeOpts skilltree.Options) (*EmployeeSkillService, error) {
	base, err := NewResourceService(schema.EntityEmployeeSkill, deps)
	if err != nil {
		return nil, err
	}
	skills, err := NewResourceService(schema.EntitySkill, deps)
	if err != nil {
		return nil, err
	}
	s := &EmployeeSkillService{ResourceService: base, skills: skills, treeOpts: treeOpts}
	base.WithBeforeWrite(s.recordHistory)
	return s, nil
}

// recordHistory appends to the rating history whenever the value changes.
func (s *EmployeeSkillService) recordHistory(_ context.Context, existing, doc bson.M) error {
	delete(doc, "history")
	if existing != nil {
		if _, ok := doc["value"]; !ok {
			return nil
		}
	}

	var es models.EmployeeSkill
	if existing != nil {
		if err := decode(existing, &es); err != nil {
			return err
		}
	}
	es.Value = intPtr(doc["value"])
	if es.RecordValue(s.now().UTC()) || existing == nil {
		doc["history"] = es.History
	}
	return nil
}

// TreeResult is a page of ratings arranged as the skill tree. Meta counts
// the ratings, not the nodes.
type TreeResult struct {
	Meta pagination.Meta   `json:"meta"`
	List []*skilltree.Node `json:"list"`
}

// FindAll lists ratings. A skill.parent filter lists the ratings of one
// employee under one parent skill; structured replaces the page with the
// skill tree of its ratings.
func (s *EmployeeSkillService) FindAll(ctx context.Context, params map[string]any) (any, error) {
	spec := s.Parse(params)
	if spec.Has("skill.parent") {
		employee, err1 := bson.ObjectIDFromHex(fmt.Sprint(spec.RawWhere["employee"]))
		parent, err2 := bson.ObjectIDFromHex(fmt.Sprint(spec.RawWhere["skill.parent"]))
		if err1 != nil || err2 != nil {
			return nil, apperrors.NewValidation("The employee is not a valid Mongo ObjectId", "The skill.parent is not a valid Mongo ObjectId")
		}
		docs, err := s.store.Aggregate(ctx, s.entity.Name, aggregate.EmployeeSkillsByParent(employee, parent))
		if err != nil {
			return nil, err
		}
		return &ListResult{Meta: pagination.Compute(len(docs), 1, max(len(docs), 1)), List: docs}, nil
	}
	res, err := s.ResourceService.FindAll(ctx, params)
	if err != nil {
		return nil, err
	}
	if !spec.Structured || len(res.List) == 0 {
		return res, nil
	}
	tree, err := s.Structure(ctx, res.List)
	if err != nil {
		return nil, err
	}
	return &TreeResult{Meta: res.Meta, List: tree}, nil
}

// Structure arranges rating documents into the skill tree.
func (s *EmployeeSkillService) Structure(ctx context.Context, ratings []bson.M) ([]*skilltree.Node, error) {
	allSkills, err := s.allSkills(ctx)
	if err != nil {
		return nil, err
	}
	typed := make([]models.EmployeeSkill, 0, len(ratings))
	for _, r := range ratings {
		var es models.EmployeeSkill
		if err := decode(r, &es); err != nil {
			return nil, err
		}
		typed = append(typed, es)
	}
	tree, err := skilltree.StructureEmployeeSkills(allSkills, typed, s.treeOpts)
	if err != nil {
		s.log.Error("failed to structure skills", zap.Error(err))
		return nil, err
	}
	return tree, nil
}

// SkillTree returns the whole skill hierarchy without ratings.
func (s *EmployeeSkillService) SkillTree(ctx context.Context) ([]*skilltree.Node, error) {
	allSkills, err := s.allSkills(ctx)
	if err != nil {
		return nil, err
	}
	return skilltree.StructureSkills(allSkills), nil
}

func (s *EmployeeSkillService) allSkills(ctx context.Context) ([]models.Skill, error) {
	docs, err := s.store.Find(ctx, schema.EntitySkill, bson.M{}, repository.FindOptions{
		Sort: bson.D{{Key: "priority", Value: -1}, {Key: "name", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Skill, 0, len(docs))
	for _, d := range docs {
		var sk models.Skill
		if err := decode(d, &sk); err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, nil
}

// Upsert writes a batch of ratings. An item with the _id of a stored
// rating updates it, others are created under their _id if given. An inline skill object is resolved by name
// and created when missing.
func (s *EmployeeSkillService) Upsert(ctx context.Context, items []any) ([]bson.M, error) {
	bodies := make([]map[string]any, len(items))
	checks := make([]validation.Check, 0, len(items))
	for i, item := range items {
		body, ok := item.(map[string]any)
		if !ok {
			return nil, apperrors.NewValidation(fmt.Sprintf("The item %d must be an object.", i))
		}
		body = copyMap(body)
		delete(body, "history")
		bodies[i] = body

		check := withoutKeys(body, "_id")
		if _, inline := body["skill"].(map[string]any); inline {
			// resolved to an id before the write
			check["skill"] = bson.NewObjectID().Hex()
		}
		var filters []string
		if _, ok := body["_id"]; ok {
			filters = []string{validation.FilterOnlyBodyRules}
		}
		checks = append(checks, validation.Check{Data: check, Defined: s.entity.Name, Filters: filters})
	}
	if err := s.validator.Validate(checks...); err != nil {
		return nil, err
	}

	out := make([]bson.M, len(bodies))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertConcurrency)
	for i, body := range bodies {
		g.Go(func() error {
			doc, err := s.upsertOne(gctx, body)
			if err != nil {
				return err
			}
			mu.Lock()
			out[i] = doc
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("failed to upsert employee skills", zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(out))
	for _, d := range out {
		if id, ok := d["_id"].(bson.ObjectID); ok {
			ids = append(ids, id.Hex())
		}
	}
	s.events.Publish(ctx, event.NewEvent(s.entity.Name, event.ActionUpserted, ids, nil))
	return out, nil
}

func (s *EmployeeSkillService) upsertOne(ctx context.Context, body map[string]any) (bson.M, error) {
	if inline, ok := body["skill"].(map[string]any); ok {
		id, err := s.resolveSkill(ctx, inline)
		if err != nil {
			return nil, err
		}
		body["skill"] = id.Hex()
	}

	rawID, ok := body["_id"]
	if !ok {
		res, err := s.Create(ctx, nil, body)
		if err != nil {
			return nil, err
		}
		return res.Data.(bson.M), nil
	}

	fields := withoutKeys(body, "_id")
	id, err := bson.ObjectIDFromHex(fmt.Sprint(rawID))
	if err != nil {
		// Update reports the malformed id
		return s.Update(ctx, nil, map[string]any{"_id": rawID}, fields)
	}
	existing, err := s.store.FindByID(ctx, s.entity.Name, id, nil)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.Update(ctx, nil, map[string]any{"_id": rawID}, fields)
	}
	res, err := s.CreateWithID(ctx, nil, id, fields)
	if err != nil {
		return nil, err
	}
	return res.Data.(bson.M), nil
}

// resolveSkill finds a skill by exact case-insensitive name or creates it.
func (s *EmployeeSkillService) resolveSkill(ctx context.Context, inline map[string]any) (bson.ObjectID, error) {
	name, _ := inline["name"].(string)
	if name == "" {
		return bson.ObjectID{}, apperrors.NewValidation("The skill.name field is required.")
	}
	existing, err := s.store.FindOne(ctx, schema.EntitySkill, bson.M{
		"name": bson.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"},
	})
	if err != nil {
		return bson.ObjectID{}, err
	}
	if existing != nil {
		return existing["_id"].(bson.ObjectID), nil
	}
	res, err := s.skills.Create(ctx, nil, withoutKeys(inline, "_id"))
	if err != nil {
		return bson.ObjectID{}, err
	}
	return res.Data.(bson.M)["_id"].(bson.ObjectID), nil
}

// DestroyMany deletes the ratings listed in body["_ids"].
func (s *EmployeeSkillService) DestroyMany(ctx context.Context, body map[string]any) (*Result, error) {
	if err := s.validator.Validate(validation.Check{Data: body, Defined: validation.MongoIDInArray}); err != nil {
		return nil, err
	}
	oids, hexes := objectIDs(body["_ids"])
	if _, err := s.store.DeleteMany(ctx, s.entity.Name, bson.M{"_id": bson.M{"$in": oids}}); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, event.NewEvent(s.entity.Name, event.ActionDeleted, hexes, nil))
	return &Result{StatusCode: http.StatusNoContent}, nil
}

// decode converts a generic document into a typed model.
func decode(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func intPtr(v any) *int {
	var n int
	switch t := v.(type) {
	case int64:
		n = int(t)
	case int32:
		n = int(t)
	case int:
		n = t
	case float64:
		n = int(t)
	default:
		return nil
	}
	return &n
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func withoutKeys(m map[string]any, keys ...string) map[string]any {
	out := copyMap(m)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
