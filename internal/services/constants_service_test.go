package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/models"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func TestConstantsService_Static(t *testing.T) {
	fx := newFixture(t)
	s := NewConstantsService(fx.deps, nil, time.Minute)

	out, err := s.Get(context.Background(), []string{"employee.statusTypes", "list.ranks", "nope.nothing"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EmployeeStatusTypes, out["employee.statusTypes"])
	assert.Equal(t, models.SeniorityRanks, out["list.ranks"])
	v, ok := out["nope.nothing"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestConstantsService_StoreListsAreCached(t *testing.T) {
	fx := newFixture(t)
	cache := &memoryCache{data: map[string][]byte{}}
	s := NewConstantsService(fx.deps, cache, time.Minute)
	ann := fx.store.seed(schema.EntityEmployee, bson.M{"firstName": "Ann", "lastName": "Lee"})
	fx.store.seed(schema.EntityEmployee, bson.M{"firstName": "Bob"})

	out, err := s.Get(context.Background(), []string{"list.employees"}, nil)
	require.NoError(t, err)
	opts := out["list.employees"].(models.Options)
	require.Len(t, opts, 2)
	assert.Equal(t, ann["_id"].(bson.ObjectID).Hex(), opts[0].Value)
	assert.Equal(t, "Ann Lee", opts[0].Label)
	assert.Equal(t, "Bob", opts[1].Label)
	assert.Contains(t, cache.data, "constants:list.employees")

	// served from the cache afterwards
	fx.store.seed(schema.EntityEmployee, bson.M{"firstName": "Cid"})
	out, err = s.Get(context.Background(), []string{"list.employees"}, nil)
	require.NoError(t, err)
	assert.Len(t, out["list.employees"].(models.Options), 2)
}

func TestConstantsService_Filter(t *testing.T) {
	fx := newFixture(t)
	s := NewConstantsService(fx.deps, nil, time.Minute)
	office := bson.NewObjectID()
	fx.store.seed(schema.EntityDepartment, bson.M{"name": "R&D", "office": office})
	fx.store.seed(schema.EntityDepartment, bson.M{"name": "Sales", "office": bson.NewObjectID()})

	out, err := s.Get(context.Background(), []string{"list.departments"}, map[string]any{"office": office.Hex()})
	require.NoError(t, err)
	opts := out["list.departments"].(models.Options)
	require.Len(t, opts, 1)
	assert.Equal(t, "R&D", opts[0].Label)

	_, err = s.Get(context.Background(), []string{"list.departments"}, map[string]any{"office": "bad"})
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
}

func TestConstantsService_Names(t *testing.T) {
	fx := newFixture(t)
	s := NewConstantsService(fx.deps, nil, time.Minute)
	names := s.Names()
	assert.Contains(t, names, "employee.genderTypes")
	assert.Contains(t, names, "list.offices")
	assert.Contains(t, names, "list.ranks")
}
