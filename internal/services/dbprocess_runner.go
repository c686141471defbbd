package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/models"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

const (
	ProcessSeed      = "Seed"
	ProcessMigration = "Migration"
)

// ProcessLog remembers which steps completed.
type ProcessLog interface {
	Done(ctx context.Context, processType, name string) (bool, error)
	Record(ctx context.Context, processType, name string) error
}

// Step is one named seed or migration.
type Step struct {
	Name string
	Type string
	Run  func(ctx context.Context, store repository.Store) error
}

// DbProcessRunner runs steps in order. Completed steps are skipped on later
// runs. A failing step is logged, left unrecorded and the runner moves on.
type DbProcessRunner struct {
	store repository.Store
	done  ProcessLog
	steps []Step
	log   *zap.Logger
}

func NewDbProcessRunner(store repository.Store, done ProcessLog, log *zap.Logger, steps ...Step) *DbProcessRunner {
	return &DbProcessRunner{store: store, done: done, steps: steps, log: log}
}

// Run executes the pending steps and returns the names of those that
// completed.
func (r *DbProcessRunner) Run(ctx context.Context) ([]string, error) {
	var completed []string
	for _, step := range r.steps {
		done, err := r.done.Done(ctx, step.Type, step.Name)
		if err != nil {
			return completed, fmt.Errorf("failed to check %s %s: %w", step.Type, step.Name, err)
		}
		if done {
			continue
		}
		if err := step.Run(ctx, r.store); err != nil {
			r.log.Error("db process has been rejected",
				zap.String("type", step.Type),
				zap.String("name", step.Name),
				zap.Error(err),
			)
			continue
		}
		if err := r.done.Record(ctx, step.Type, step.Name); err != nil {
			return completed, err
		}
		r.log.Info("db process has been done", zap.String("type", step.Type), zap.String("name", step.Name))
		completed = append(completed, step.Name)
	}
	return completed, nil
}

// DefaultSteps are the seeds and migrations shipped with the service.
func DefaultSteps() []Step {
	return []Step{
		{Name: "001-positions", Type: ProcessSeed, Run: seedNamed(schema.EntityPosition,
			"Software Engineer", "QA Engineer", "Project Manager", "Business Analyst", "Designer", "DevOps Engineer")},
		{Name: "002-seniorities", Type: ProcessSeed, Run: seedSeniorities},
		{Name: "003-skills", Type: ProcessSeed, Run: seedNamed(schema.EntitySkill,
			"Programming Languages", "Frameworks", "Databases", "Tools", "Soft Skills")},
		{Name: "001-employee-skill-history", Type: ProcessMigration, Run: backfillSkillHistory},
	}
}

// seedNamed creates one document per name unless a document with that name
// already exists.
func seedNamed(entity string, names ...string) func(context.Context, repository.Store) error {
	return func(ctx context.Context, store repository.Store) error {
		for _, name := range names {
			existing, err := store.FindOne(ctx, entity, bson.M{"name": name})
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			doc := bson.M{"name": name}
			if entity == schema.EntitySkill {
				doc["priority"] = int64(1)
			}
			if _, err := store.Create(ctx, entity, doc); err != nil && !apperrors.IsDuplicateKey(err) {
				return err
			}
		}
		return nil
	}
}

func seedSeniorities(ctx context.Context, store repository.Store) error {
	for _, rank := range models.SeniorityRanks {
		existing, err := store.FindOne(ctx, schema.EntitySeniority, bson.M{"name": rank.Label, "rank": rank.Value})
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := store.Create(ctx, schema.EntitySeniority, bson.M{"name": rank.Label, "rank": rank.Value}); err != nil && !apperrors.IsDuplicateKey(err) {
			return err
		}
	}
	return nil
}

// backfillSkillHistory gives ratings stored without history their first
// history entry.
func backfillSkillHistory(ctx context.Context, store repository.Store) error {
	docs, err := store.Find(ctx, schema.EntityEmployeeSkill, bson.M{"history": bson.M{"$in": bson.A{nil, bson.A{}}}}, repository.FindOptions{})
	if err != nil {
		return err
	}
	for _, d := range docs {
		var es models.EmployeeSkill
		if err := decode(d, &es); err != nil {
			return err
		}
		at := es.CreatedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		es.History = nil
		es.RecordValue(at)
		if _, err := store.FindOneAndUpdate(ctx, schema.EntityEmployeeSkill, bson.M{"_id": es.ID}, bson.M{"history": es.History}); err != nil {
			return err
		}
	}
	return nil
}
