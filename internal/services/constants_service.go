package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivaspavlo/staff-management-system/internal/models"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/validation"
)

// Cache stores JSON-encodable values with an expiry.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// dbList reads {value,label} options from one entity. The label joins the
// non-empty label fields with a space.
type dbList struct {
	entity string
	fields []string
}

var dbLists = map[string]dbList{
	"offices":     {entity: schema.EntityOffice, fields: []string{"name"}},
	"seniorities": {entity: schema.EntitySeniority, fields: []string{"name"}},
	"positions":   {entity: schema.EntityPosition, fields: []string{"name"}},
	"employees":   {entity: schema.EntityEmployee, fields: []string{"firstName", "lastName"}},
	"departments": {entity: schema.EntityDepartment, fields: []string{"name"}},
	"schools":     {entity: schema.EntitySchool, fields: []string{"name"}},
	"projects":    {entity: schema.EntityProject, fields: []string{"name"}},
	"skills":      {entity: schema.EntitySkill, fields: []string{"name"}},
}

const constantsFilter = "constantsFilter"

// ConstantsService serves the fixed option lists and the lists read from
// the store.
type ConstantsService struct {
	store     repository.Store
	validator *validation.Validator
	cache     Cache
	ttl       time.Duration
	log       *zap.Logger
}

// NewConstantsService builds the service. cache may be nil.
func NewConstantsService(deps Deps, cache Cache, ttl time.Duration) *ConstantsService {
	deps.Validator.Register(constantsFilter, validation.Rules{
		"office":      {"isMongoId"},
		"departments": {"isMongoId"},
		"position":    {"isMongoId"},
		"seniority":   {"isMongoId"},
	})
	return &ConstantsService{
		store:     deps.Store,
		validator: deps.Validator,
		cache:     cache,
		ttl:       ttl,
		log:       deps.Log,
	}
}

// Names lists every name Get accepts.
func (s *ConstantsService) Names() []string {
	var out []string
	for ns, lists := range models.StaticConstants {
		for name := range lists {
			out = append(out, ns+"."+name)
		}
	}
	for name := range dbLists {
		out = append(out, "list."+name)
	}
	sort.Strings(out)
	return out
}

// Get resolves each name to its option list. Unknown names map to nil.
// filter narrows the store-backed lists.
func (s *ConstantsService) Get(ctx context.Context, names []string, filter map[string]any) (map[string]any, error) {
	if filter != nil {
		if err := s.validator.Validate(validation.Check{Data: filter, Defined: constantsFilter}); err != nil {
			return nil, err
		}
	}

	out := make(map[string]any, len(names))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			v, err := s.resolve(gctx, name, filter)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("failed to load constants", zap.Strings("names", names), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (s *ConstantsService) resolve(ctx context.Context, name string, filter map[string]any) (any, error) {
	ns, key, _ := strings.Cut(name, ".")
	if ns == "list" {
		if l, ok := dbLists[key]; ok {
			return s.fromStore(ctx, name, l, filter)
		}
	}
	if opts, ok := models.StaticConstants[ns][key]; ok {
		return opts, nil
	}
	return nil, nil
}

func (s *ConstantsService) fromStore(ctx context.Context, name string, l dbList, filter map[string]any) (models.Options, error) {
	key := "constants:" + name + cacheSuffix(filter)
	if s.cache != nil {
		var cached models.Options
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("failed to read constants cache", zap.String("key", key), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	where := bson.M{}
	for k, v := range filter {
		if id, err := bson.ObjectIDFromHex(fmt.Sprint(v)); err == nil {
			where[k] = id
		} else {
			where[k] = v
		}
	}
	projection := bson.M{"_id": 1}
	for _, f := range l.fields {
		projection[f] = 1
	}
	docs, err := s.store.Find(ctx, l.entity, where, repository.FindOptions{Projection: projection})
	if err != nil {
		return nil, err
	}

	opts := make(models.Options, 0, len(docs))
	for _, d := range docs {
		var parts []string
		for _, f := range l.fields {
			if v, ok := d[f].(string); ok && v != "" {
				parts = append(parts, v)
			}
		}
		value := d["_id"]
		if id, ok := value.(bson.ObjectID); ok {
			value = id.Hex()
		}
		opts = append(opts, models.Option{Value: value, Label: strings.Join(parts, " ")})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, opts, s.ttl); err != nil {
			s.log.Warn("failed to cache constants", zap.String("key", key), zap.Error(err))
		}
	}
	return opts, nil
}

func cacheSuffix(filter map[string]any) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%v", k, filter[k])
	}
	return b.String()
}
