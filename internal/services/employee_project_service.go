package services

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/event"
	"github.com/ivaspavlo/staff-management-system/internal/models"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/validation"
)

// EmployeeProjectService keeps one assignment per (employee, project) with
// the participation periods in its history.
type EmployeeProjectService struct {
	*ResourceService
	skills *EmployeeSkillService
}

func NewEmployeeProjectService(deps Deps, skills *EmployeeSkillService) (*EmployeeProjectService, error) {
	base, err := NewResourceService(schema.EntityEmployeeProject, deps)
	if err != nil {
		return nil, err
	}
	s := &EmployeeProjectService{ResourceService: base, skills: skills}
	base.WithBeforeWrite(syncLastPeriod)
	return s, nil
}

// syncLastPeriod mirrors the assignment dates into the last history entry.
func syncLastPeriod(_ context.Context, existing, doc bson.M) error {
	var ep models.EmployeeProject
	if existing != nil {
		if err := decode(existing, &ep); err != nil {
			return err
		}
	}
	_, hasStart := doc["startDate"]
	_, hasEnd := doc["endDate"]
	if existing != nil && !hasStart && !hasEnd {
		return nil
	}
	period := models.ProjectHistory{StartDate: ep.StartDate, EndDate: ep.EndDate}
	if t, ok := schema.AsTime(doc["startDate"]); ok {
		period.StartDate = &t
	}
	if t, ok := schema.AsTime(doc["endDate"]); ok {
		period.EndDate = &t
	}
	if n := len(ep.History); n > 0 {
		period.ID = ep.History[n-1].ID
		ep.History[n-1] = period
	} else {
		period.ID = bson.NewObjectID()
		ep.History = []models.ProjectHistory{period}
	}
	doc["history"] = ep.History
	return nil
}

// Create stores a new assignment, or merges into the existing one for the
// same employee and project. A merge opens a new period when the last one
// is closed and otherwise updates the last period.
func (s *EmployeeProjectService) Create(ctx context.Context, q, body map[string]any) (*Result, error) {
	if err := s.validator.Validate(validation.Check{Data: body, Defined: s.entity.Name}); err != nil {
		return nil, err
	}
	doc := s.entity.Cast(body)
	if err := s.entity.Normalize(doc); err != nil {
		return nil, err
	}

	existing, err := s.store.FindOne(ctx, s.entity.Name, bson.M{"employee": doc["employee"], "project": doc["project"]})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		res, err := s.ResourceService.Create(ctx, q, body)
		if err != nil {
			return nil, err
		}
		return s.structureResult(ctx, q, res)
	}

	var ep models.EmployeeProject
	if err := decode(existing, &ep); err != nil {
		return nil, err
	}
	period := models.ProjectHistory{ID: bson.NewObjectID()}
	if t, ok := schema.AsTime(doc["startDate"]); ok {
		period.StartDate = &t
	}
	if t, ok := schema.AsTime(doc["endDate"]); ok {
		period.EndDate = &t
	}
	if n := len(ep.History); n > 0 && ep.History[n-1].EndDate == nil {
		period.ID = ep.History[n-1].ID
		ep.History[n-1] = period
	} else {
		ep.History = append(ep.History, period)
	}
	doc["history"] = ep.History
	if _, ok := doc["endDate"]; !ok {
		doc["endDate"] = nil
	}

	updated, err := s.store.FindOneAndUpdate(ctx, s.entity.Name, bson.M{"_id": ep.ID}, doc)
	if err != nil {
		s.log.Error("failed to merge employee project", zap.String("id", ep.ID.Hex()), zap.Error(err))
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NotFound("%s not found", s.entity.Name)
	}
	s.publish(ctx, event.ActionUpdated, []string{ep.ID.Hex()}, updated)
	return s.structureResult(ctx, q, &Result{StatusCode: http.StatusOK, Data: updated})
}

func (s *EmployeeProjectService) FindAll(ctx context.Context, params map[string]any) (*ListResult, error) {
	res, err := s.ResourceService.FindAll(ctx, params)
	if err != nil {
		return nil, err
	}
	if s.Parse(params).Structured {
		for _, doc := range res.List {
			if err := s.structure(ctx, doc); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func (s *EmployeeProjectService) FindOne(ctx context.Context, params, q map[string]any) (bson.M, error) {
	doc, err := s.ResourceService.FindOne(ctx, params, q)
	if err != nil {
		return nil, err
	}
	if s.Parse(q).Structured {
		if err := s.structure(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (s *EmployeeProjectService) Update(ctx context.Context, q, params, body map[string]any) (bson.M, error) {
	doc, err := s.ResourceService.Update(ctx, q, params, body)
	if err != nil {
		return nil, err
	}
	if s.Parse(q).Structured {
		if err := s.structure(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (s *EmployeeProjectService) structureResult(ctx context.Context, q map[string]any, res *Result) (*Result, error) {
	if !s.Parse(q).Structured {
		return res, nil
	}
	if doc, ok := res.Data.(bson.M); ok {
		if err := s.structure(ctx, doc); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// structure replaces the skill rating ids of doc with the skill tree.
func (s *EmployeeProjectService) structure(ctx context.Context, doc bson.M) error {
	ids := bson.A{}
	switch t := doc["skills"].(type) {
	case bson.A:
		ids = t
	case []any:
		ids = bson.A(t)
	}
	for i, v := range ids {
		if m, ok := v.(bson.M); ok {
			ids[i] = m["_id"]
		}
	}
	ratings, err := s.store.Find(ctx, schema.EntityEmployeeSkill, bson.M{"_id": bson.M{"$in": ids}}, repository.FindOptions{})
	if err != nil {
		return err
	}
	tree, err := s.skills.Structure(ctx, ratings)
	if err != nil {
		return err
	}
	doc["skills"] = tree
	return nil
}
