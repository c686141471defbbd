package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/event"
	"github.com/ivaspavlo/staff-management-system/internal/pagination"
	"github.com/ivaspavlo/staff-management-system/internal/query"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/validation"
)

// Publisher receives resource change events.
type Publisher interface {
	Publish(ctx context.Context, ev *event.ResourceEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, *event.ResourceEvent) {}

// Result is a response body with an explicit status code.
type Result struct {
	StatusCode int
	Data       any
}

// ListResult is one page of a list request.
type ListResult struct {
	Meta pagination.Meta `json:"meta"`
	List []bson.M        `json:"list"`
}

// WriteHook adjusts a document before it is stored. existing is nil on
// create. doc holds the cast body and may be changed in place.
type WriteHook func(ctx context.Context, existing, doc bson.M) error

// Deps are the collaborators shared by every resource service.
type Deps struct {
	Registry  *schema.Registry
	Store     repository.Store
	Composer  *aggregate.Composer
	Validator *validation.Validator
	Events    Publisher
	Log       *zap.Logger
	Now       func() time.Time
}

// ResourceService implements list, read, create, update, bulk update,
// delete and aggregate for one entity.
type ResourceService struct {
	entity     *schema.Entity
	store      repository.Store
	composer   *aggregate.Composer
	validator  *validation.Validator
	normalizer *query.Normalizer
	events     Publisher
	log        *zap.Logger
	now        func() time.Time

	beforeWrite WriteHook
}

func NewResourceService(entityName string, deps Deps) (*ResourceService, error) {
	entity, ok := deps.Registry.Get(entityName)
	if !ok {
		return nil, apperrors.NotFound("Model %s not found", entityName)
	}
	if _, ok := deps.Validator.Defined(entity.Name); !ok {
		deps.Validator.Register(entity.Name, entity.Rules())
	}
	events := deps.Events
	if events == nil {
		events = noopPublisher{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ResourceService{
		entity:     entity,
		store:      deps.Store,
		composer:   deps.Composer,
		validator:  deps.Validator,
		normalizer: query.NewNormalizer(entity),
		events:     events,
		log:        deps.Log.With(zap.String("entity", entity.Name)),
		now:        now,
	}, nil
}

// WithBeforeWrite installs a hook that runs on every create and update.
func (s *ResourceService) WithBeforeWrite(h WriteHook) *ResourceService {
	s.beforeWrite = h
	return s
}

func (s *ResourceService) Entity() *schema.Entity { return s.entity }

func (s *ResourceService) Parse(params map[string]any) query.Spec {
	return s.normalizer.Parse(params)
}

// FindAll lists one page. Entities flagged for it, and requests naming a
// view, go through the aggregate path.
func (s *ResourceService) FindAll(ctx context.Context, params map[string]any) (*ListResult, error) {
	spec := s.normalizer.Parse(params)
	if s.entity.AlwaysAggregate || spec.View != "" {
		return s.aggregate(ctx, spec, spec.View)
	}

	filter := s.normalizer.Filter(spec)
	var (
		docs  []bson.M
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.store.Find(gctx, s.entity.Name, filter, repository.FindOptions{
			Projection: spec.Projection(),
			Sort:       spec.Sort,
			Skip:       int64(spec.Skip()),
			Limit:      int64(spec.Limit),
			Populate:   spec.Populate,
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.Count(gctx, s.entity.Name, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("failed to list documents", zap.Error(err))
		return nil, err
	}

	s.compute(docs...)
	return &ListResult{
		Meta: pagination.Compute(int(total), spec.Page, spec.Limit),
		List: docs,
	}, nil
}

// FindOne reads the document named by params["_id"].
func (s *ResourceService) FindOne(ctx context.Context, params, q map[string]any) (bson.M, error) {
	id, err := s.idFromParams(params)
	if err != nil {
		return nil, err
	}
	spec := s.normalizer.Parse(q)
	docs, err := s.store.Find(ctx, s.entity.Name, bson.M{"_id": id}, repository.FindOptions{
		Projection: spec.Projection(),
		Limit:      1,
		Populate:   spec.Populate,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperrors.NotFound("%s not found", s.entity.Name)
	}
	s.compute(docs[0])
	return docs[0], nil
}

// Create validates body against the entity rules and stores it.
func (s *ResourceService) Create(ctx context.Context, q, body map[string]any) (*Result, error) {
	return s.create(ctx, q, body, nil)
}

// CreateWithID is Create for a document whose identifier the caller chose.
func (s *ResourceService) CreateWithID(ctx context.Context, q map[string]any, id bson.ObjectID, body map[string]any) (*Result, error) {
	return s.create(ctx, q, body, &id)
}

func (s *ResourceService) create(ctx context.Context, q, body map[string]any, id *bson.ObjectID) (*Result, error) {
	if err := s.validator.Validate(validation.Check{Data: body, Defined: s.entity.Name}); err != nil {
		return nil, err
	}
	doc := s.entity.Cast(body)
	s.entity.ApplyDefaults(doc)
	if err := s.entity.Normalize(doc); err != nil {
		return nil, err
	}
	if s.beforeWrite != nil {
		if err := s.beforeWrite(ctx, nil, doc); err != nil {
			return nil, err
		}
	}
	if id != nil {
		doc["_id"] = *id
	}

	created, err := s.store.Create(ctx, s.entity.Name, doc)
	if err != nil {
		s.log.Error("failed to create document", zap.Error(err))
		return nil, err
	}
	createdID := created["_id"].(bson.ObjectID)
	out, err := s.reload(ctx, createdID, created, q)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event.ActionCreated, []string{createdID.Hex()}, out)
	return &Result{StatusCode: http.StatusCreated, Data: out}, nil
}

// Update applies the fields present in body to the document named by
// params["_id"]. Other fields are left as they are.
func (s *ResourceService) Update(ctx context.Context, q, params, body map[string]any) (bson.M, error) {
	if err := s.validator.Validate(
		validation.Check{Data: params, Defined: validation.MongoIDInParams},
		validation.Check{Data: body, Defined: s.entity.Name, Filters: []string{validation.FilterOnlyBodyRules}},
	); err != nil {
		return nil, err
	}
	id, _ := bson.ObjectIDFromHex(fmt.Sprint(params["_id"]))
	set := s.entity.Cast(body)

	if s.entity.CheckDates || s.beforeWrite != nil {
		existing, err := s.store.FindByID(ctx, s.entity.Name, id, nil)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apperrors.NotFound("%s not found", s.entity.Name)
		}
		if s.entity.CheckDates {
			if err := schema.ValidateDates(merge(existing, set)); err != nil {
				return nil, err
			}
		}
		if s.beforeWrite != nil {
			if err := s.beforeWrite(ctx, existing, set); err != nil {
				return nil, err
			}
		}
	}

	updated, err := s.store.FindOneAndUpdate(ctx, s.entity.Name, bson.M{"_id": id}, set)
	if err != nil {
		s.log.Error("failed to update document", zap.String("id", id.Hex()), zap.Error(err))
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NotFound("%s not found", s.entity.Name)
	}
	out, err := s.reload(ctx, id, updated, q)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event.ActionUpdated, []string{id.Hex()}, out)
	return out, nil
}

// BulkUpdate applies one patch to every document listed in q["ids"].
func (s *ResourceService) BulkUpdate(ctx context.Context, q, body map[string]any) (map[string]int64, error) {
	ids := map[string]any{"_ids": q["ids"]}
	if err := s.validator.Validate(
		validation.Check{Data: ids, Defined: validation.MongoIDInArray},
		validation.Check{Data: body, Defined: s.entity.Name, Filters: []string{validation.FilterOnlyBodyRules}},
	); err != nil {
		return nil, err
	}
	oids, hexes := objectIDs(q["ids"])
	set := s.entity.Cast(body)

	n, err := s.store.UpdateMany(ctx, s.entity.Name, bson.M{"_id": bson.M{"$in": oids}}, set)
	if err != nil {
		s.log.Error("failed to bulk update documents", zap.Error(err))
		return nil, err
	}
	s.publish(ctx, event.ActionBulkUpdated, hexes, set)
	return map[string]int64{"updated": n}, nil
}

// Destroy deletes the document named by params["_id"]. A missing document
// is not an error.
func (s *ResourceService) Destroy(ctx context.Context, params map[string]any) (*Result, error) {
	id, err := s.idFromParams(params)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteByID(ctx, s.entity.Name, id)
	if err != nil {
		s.log.Error("failed to delete document", zap.String("id", id.Hex()), zap.Error(err))
		return nil, err
	}
	if deleted {
		s.publish(ctx, event.ActionDeleted, []string{id.Hex()}, nil)
	}
	return &Result{StatusCode: http.StatusNoContent}, nil
}

// Aggregate lists one page through the registered pipeline of the entity,
// optionally layered with the named view.
func (s *ResourceService) Aggregate(ctx context.Context, params map[string]any, view string) (*ListResult, error) {
	spec := s.normalizer.Parse(params)
	if view == "" {
		view = spec.View
	}
	return s.aggregate(ctx, spec, view)
}

func (s *ResourceService) aggregate(ctx context.Context, spec query.Spec, view string) (*ListResult, error) {
	if view == s.entity.Name {
		view = ""
	}
	base, ok := s.composer.BaseAggregate(s.entity.Name, spec.Populate, view)
	if !ok {
		name := s.entity.Name
		if view != "" {
			name = view
		}
		return nil, apperrors.NotFound("Aggregate %s not found", name)
	}

	// joined relations are unwound to sub-documents, so ids match on _id
	spec.Where = aggregate.ObjectIDMapper(spec.RawWhere, spec.Where)
	opt := aggregate.Optional{
		Match:    s.normalizer.Filter(spec),
		Project:  spec.Projection(),
		Sort:     spec.Sort,
		Skip:     spec.Skip(),
		Limit:    spec.Limit,
		Trailing: s.entity.TrailingStage,
	}

	var (
		docs []bson.M
		meta []bson.M
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.store.Aggregate(gctx, s.entity.Name, aggregate.Compose(base, opt))
		return err
	})
	g.Go(func() error {
		var err error
		meta, err = s.store.Aggregate(gctx, s.entity.Name, aggregate.MetaPipeline(base, opt))
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("failed to aggregate documents", zap.String("view", view), zap.Error(err))
		return nil, err
	}

	total := 0
	if len(meta) > 0 {
		total = toInt(meta[0]["total"])
	}
	return &ListResult{
		Meta: pagination.Compute(total, spec.Page, spec.Limit),
		List: docs,
	}, nil
}

func (s *ResourceService) idFromParams(params map[string]any) (bson.ObjectID, error) {
	if err := s.validator.Validate(validation.Check{Data: params, Defined: validation.MongoIDInParams}); err != nil {
		return bson.ObjectID{}, err
	}
	id, _ := bson.ObjectIDFromHex(fmt.Sprint(params["_id"]))
	return id, nil
}

// reload re-reads a written document when the request asks for populated
// relations, and adds computed fields.
func (s *ResourceService) reload(ctx context.Context, id bson.ObjectID, doc bson.M, q map[string]any) (bson.M, error) {
	spec := s.normalizer.Parse(q)
	if len(spec.Populate) > 0 {
		populated, err := s.store.FindByID(ctx, s.entity.Name, id, spec.Populate)
		if err != nil {
			return nil, err
		}
		if populated != nil {
			doc = populated
		}
	}
	s.compute(doc)
	return doc, nil
}

func (s *ResourceService) compute(docs ...bson.M) {
	if s.entity.Computed == nil {
		return
	}
	now := s.now()
	for _, d := range docs {
		s.entity.Computed(d, now)
	}
}

func (s *ResourceService) publish(ctx context.Context, action string, ids []string, data any) {
	s.events.Publish(ctx, event.NewEvent(s.entity.Name, action, ids, data))
}

func merge(base, patch bson.M) bson.M {
	out := bson.M{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// objectIDs converts a list of hex strings. Invalid entries are skipped.
func objectIDs(v any) (bson.A, []string) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case bson.A:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case string:
		items = []any{t}
	}
	oids := bson.A{}
	var hexes []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		id, err := bson.ObjectIDFromHex(s)
		if err != nil {
			continue
		}
		oids = append(oids, id)
		hexes = append(hexes, s)
	}
	return oids, hexes
}

func toInt(v any) int {
	switch t := v.(type) {
	case int32:
		return int(t)
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	}
	return 0
}
