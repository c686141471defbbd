package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/validation"
)

// ProfileService assembles the profile page of one employee.
type ProfileService struct {
	store     repository.Store
	composer  *aggregate.Composer
	validator *validation.Validator
	skills    *EmployeeSkillService
	log       *zap.Logger
}

func NewProfileService(deps Deps, skills *EmployeeSkillService) *ProfileService {
	return &ProfileService{
		store:     deps.Store,
		composer:  deps.Composer,
		validator: deps.Validator,
		skills:    skills,
		log:       deps.Log,
	}
}

// MyProfile returns the profile of params["_id"], or of the current user
// when no id is given. Personal info is only shown on one's own profile.
func (s *ProfileService) MyProfile(ctx context.Context, params map[string]any, currentUser bson.ObjectID) (bson.M, error) {
	id := currentUser
	if raw, ok := params["_id"]; ok && raw != nil && raw != "" {
		if err := s.validator.Validate(validation.Check{Data: params, Defined: validation.MongoIDInParams}); err != nil {
			return nil, err
		}
		id, _ = bson.ObjectIDFromHex(fmt.Sprint(raw))
	}

	base, ok := s.composer.BaseAggregate(aggregate.ViewMyProfile, nil, "")
	if !ok {
		return nil, apperrors.NotFound("Aggregate %s not found", aggregate.ViewMyProfile)
	}
	pipeline := append(aggregate.Pipeline{{"$match": bson.M{"_id": id}}}, base...)
	docs, err := s.store.Aggregate(ctx, schema.EntityEmployee, pipeline)
	if err != nil {
		s.log.Error("failed to load profile", zap.String("id", id.Hex()), zap.Error(err))
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperrors.NotFound("%s not found", schema.EntityEmployee)
	}
	profile := docs[0]

	var ratings []bson.M
	switch t := profile["employeeSkills"].(type) {
	case bson.A:
		ratings = asDocs(t)
	case []any:
		ratings = asDocs(t)
	}
	tree, err := s.skills.Structure(ctx, ratings)
	if err != nil {
		return nil, err
	}
	profile["employeeSkills"] = tree

	if id != currentUser {
		if user, ok := profile["userData"].(bson.M); ok {
			delete(user, "personalInfo")
		}
	}
	return profile, nil
}

func asDocs(items []any) []bson.M {
	out := make([]bson.M, 0, len(items))
	for _, item := range items {
		if m, ok := item.(bson.M); ok {
			out = append(out, m)
		}
	}
	return out
}
