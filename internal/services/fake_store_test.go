package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/event"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/validation"
)

// fakeStore keeps documents in memory. Filters support equality, $in,
// $exists and regular expressions, which covers what the services send.
type fakeStore struct {
	mu    sync.Mutex
	docs  map[string][]bson.M
	now   time.Time
	aggFn func(entity string, p aggregate.Pipeline) []bson.M

	pipelines []aggregate.Pipeline
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string][]bson.M{}, now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeStore) seed(entity string, doc bson.M) bson.M {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = bson.NewObjectID()
	}
	f.docs[entity] = append(f.docs[entity], doc)
	return doc
}

func (f *fakeStore) all(entity string) []bson.M {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bson.M(nil), f.docs[entity]...)
}

func (f *fakeStore) Find(_ context.Context, entity string, filter bson.M, opts repository.FindOptions) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bson.M
	for _, d := range f.docs[entity] {
		if matches(d, filter) {
			out = append(out, copyDoc(d))
		}
	}
	if len(opts.Sort) > 0 {
		key := opts.Sort[0].Key
		dir := toInt(opts.Sort[0].Value)
		sort.SliceStable(out, func(i, j int) bool {
			a, b := fmt.Sprint(out[i][key]), fmt.Sprint(out[j][key])
			if dir < 0 {
				return a > b
			}
			return a < b
		})
	}
	if opts.Skip > 0 {
		if int(opts.Skip) >= len(out) {
			return []bson.M{}, nil
		}
		out = out[opts.Skip:]
	}
	if opts.Limit > 0 && int(opts.Limit) < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) Count(ctx context.Context, entity string, filter bson.M) (int64, error) {
	docs, _ := f.Find(ctx, entity, filter, repository.FindOptions{})
	return int64(len(docs)), nil
}

func (f *fakeStore) FindByID(ctx context.Context, entity string, id bson.ObjectID, _ []schema.Populate) (bson.M, error) {
	return f.FindOne(ctx, entity, bson.M{"_id": id})
}

func (f *fakeStore) FindOne(ctx context.Context, entity string, filter bson.M) (bson.M, error) {
	docs, _ := f.Find(ctx, entity, filter, repository.FindOptions{Limit: 1})
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (f *fakeStore) Create(_ context.Context, entity string, doc bson.M) (bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := copyDoc(doc)
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = bson.NewObjectID()
	}
	stored["createdAt"] = f.now
	stored["updatedAt"] = f.now
	f.docs[entity] = append(f.docs[entity], stored)
	return copyDoc(stored), nil
}

func (f *fakeStore) FindOneAndUpdate(_ context.Context, entity string, filter, set bson.M) (bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs[entity] {
		if matches(d, filter) {
			apply(d, set, f.now)
			return copyDoc(d), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateMany(_ context.Context, entity string, filter, set bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, d := range f.docs[entity] {
		if matches(d, filter) {
			apply(d, set, f.now)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteByID(ctx context.Context, entity string, id bson.ObjectID) (bool, error) {
	n, err := f.DeleteMany(ctx, entity, bson.M{"_id": id})
	return n > 0, err
}

func (f *fakeStore) DeleteMany(_ context.Context, entity string, filter bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.docs[entity][:0]
	var n int64
	for _, d := range f.docs[entity] {
		if matches(d, filter) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	f.docs[entity] = kept
	return n, nil
}

func (f *fakeStore) Aggregate(_ context.Context, entity string, p aggregate.Pipeline) ([]bson.M, error) {
	f.mu.Lock()
	f.pipelines = append(f.pipelines, p)
	fn := f.aggFn
	f.mu.Unlock()
	if fn == nil {
		return []bson.M{}, nil
	}
	return fn(entity, p), nil
}

func apply(d, set bson.M, now time.Time) {
	for k, v := range set {
		if k == "_id" || k == "createdAt" {
			continue
		}
		d[k] = v
	}
	d["updatedAt"] = now
}

func copyDoc(d bson.M) bson.M {
	out := bson.M{}
	for k, v := range d {
		out[k] = v
	}
	return out
}

func matches(doc, filter bson.M) bool {
	for k, cond := range filter {
		if k == "$and" {
			for _, sub := range cond.(bson.A) {
				if !matches(doc, sub.(bson.M)) {
					return false
				}
			}
			continue
		}
		if !matchValue(doc[k], cond) {
			return false
		}
	}
	return true
}

func matchValue(v, cond any) bool {
	switch c := cond.(type) {
	case bson.Regex:
		s, ok := v.(string)
		if !ok {
			return false
		}
		flags := ""
		if c.Options == "i" {
			flags = "(?i)"
		}
		return regexp.MustCompile(flags + c.Pattern).MatchString(s)
	case bson.M:
		for op, arg := range c {
			switch op {
			case "$in":
				found := false
				for _, item := range arg.(bson.A) {
					if equal(v, item) {
						found = true
					}
				}
				if !found {
					return false
				}
			case "$exists":
				if (v != nil) != arg.(bool) {
					return false
				}
			case "$eq":
				if !equal(v, arg) {
					return false
				}
			}
		}
		return true
	}
	return equal(v, cond)
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		if arr, ok := b.(bson.A); ok && a == nil {
			return arr == nil
		}
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case bson.A:
		if bv, ok := b.(bson.A); ok {
			return len(av) == 0 && len(bv) == 0
		}
		for _, item := range av {
			if equal(item, b) {
				return true
			}
		}
		return false
	case []any:
		return equal(bson.A(av), b)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []*event.ResourceEvent
}

func (r *recordedEvents) Publish(_ context.Context, ev *event.ResourceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fixture struct {
	store  *fakeStore
	events *recordedEvents
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	events := &recordedEvents{}
	return &fixture{
		store:  store,
		events: events,
		deps: Deps{
			Registry:  schema.Default(),
			Store:     store,
			Composer:  aggregate.NewComposer(),
			Validator: validation.New("itrexgroup.com"),
			Events:    events,
			Log:       zap.NewNop(),
			Now:       func() time.Time { return store.now },
		},
	}
}

func (fx *fixture) resource(t *testing.T, entity string) *ResourceService {
	t.Helper()
	s, err := NewResourceService(entity, fx.deps)
	require.NoError(t, err)
	return s
}
