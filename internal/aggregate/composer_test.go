package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

func lookupProject(t *testing.T, stage bson.M) (bson.M, bool) {
	t.Helper()
	spec, ok := stage["$lookup"].(bson.M)
	require.True(t, ok, "stage is not a $lookup: %v", stage)
	inner := spec["pipeline"].(bson.A)
	for _, s := range inner {
		if p, ok := s.(bson.M)["$project"]; ok {
			return p.(bson.M), true
		}
	}
	return nil, false
}

func TestBaseAggregate_UnknownView(t *testing.T) {
	c := NewComposer()

	_, ok := c.BaseAggregate("Nope", nil, "")
	assert.False(t, ok)

	_, ok = c.BaseAggregate(ViewEmployee, nil, "Nope")
	assert.False(t, ok)
}

func TestBaseAggregate_Order(t *testing.T) {
	c := NewComposer()
	view := c.views[ViewEmployee]
	optional := c.views[ViewAllEmployees]

	cases := [][]schema.Populate{
		nil,
		{{Path: "office", Select: []string{"name"}}},
		{{Path: "departments"}, {Path: "position", Select: []string{"name", "code"}}},
		{{Path: "unknown", Select: []string{"x"}}},
	}
	for _, populate := range cases {
		out, ok := c.BaseAggregate(ViewEmployee, populate, ViewAllEmployees)
		require.True(t, ok)

		lookupCount := 0
		for _, l := range view.Lookups {
			lookupCount += len(l.Stages)
		}
		require.Len(t, out, len(view.Base)+len(optional.Base)+lookupCount)

		assert.Equal(t, view.Base, out[:len(view.Base)])
		assert.Equal(t, optional.Base, out[len(view.Base):len(view.Base)+len(optional.Base)])

		// Lookups keep their registered order.
		rest := out[len(view.Base)+len(optional.Base):]
		i := 0
		for _, l := range view.Lookups {
			for _, stage := range l.Stages {
				for k := range stage {
					assert.Contains(t, rest[i], k)
				}
				i++
			}
		}
	}
}

func TestBaseAggregate_NarrowsProjection(t *testing.T) {
	c := NewComposer()

	out, ok := c.BaseAggregate(ViewEmployee, []schema.Populate{{Path: "office", Select: []string{"name", "country"}}}, "")
	require.True(t, ok)

	office := out[len(c.views[ViewEmployee].Base)]
	project, found := lookupProject(t, office)
	require.True(t, found)
	assert.Equal(t, bson.M{"name": 1, "country": 1}, project)

	// Registry is untouched.
	project, found = lookupProject(t, c.views[ViewEmployee].Lookups[0].Stages[0])
	require.True(t, found)
	assert.Equal(t, bson.M{"_id": 1}, project)
}

func TestBaseAggregate_EmptySelectRemovesProjection(t *testing.T) {
	c := NewComposer()

	out, ok := c.BaseAggregate(ViewEmployee, []schema.Populate{{Path: "office"}}, "")
	require.True(t, ok)

	_, found := lookupProject(t, out[len(c.views[ViewEmployee].Base)])
	assert.False(t, found)

	again, ok := c.BaseAggregate(ViewEmployee, nil, "")
	require.True(t, ok)
	_, found = lookupProject(t, again[len(c.views[ViewEmployee].Base)])
	assert.True(t, found)
}

func TestBaseAggregate_NestedPopulateKeepsProjection(t *testing.T) {
	c := NewComposer()
	nested := schema.Populate{Path: "office", Nested: &schema.Populate{Path: "manager", Select: []string{"firstName"}}}

	out, ok := c.BaseAggregate(ViewEmployee, []schema.Populate{nested}, "")
	require.True(t, ok)

	project, found := lookupProject(t, out[len(c.views[ViewEmployee].Base)])
	require.True(t, found)
	assert.Equal(t, bson.M{"_id": 1}, project)
}

func TestBaseAggregate_EmptyBase(t *testing.T) {
	out, ok := NewComposer().BaseAggregate(ViewHoliday, nil, "")
	require.True(t, ok)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestCompose_FixedOrder(t *testing.T) {
	base := Pipeline{{"$addFields": bson.M{"x": 1}}}
	opt := Optional{
		Match:    bson.M{"name": "a"},
		Project:  bson.M{"name": 1},
		Sort:     bson.D{{Key: "name", Value: 1}},
		Skip:     20,
		Limit:    10,
		Trailing: bson.M{"$sort": bson.M{"priority": 1}},
	}

	out := Compose(base, opt)
	require.Len(t, out, 7)
	keys := make([]string, 0, len(out))
	for _, s := range out {
		for k := range s {
			keys = append(keys, k)
		}
	}
	assert.Equal(t, []string{"$addFields", "$match", "$project", "$sort", "$skip", "$limit", "$sort"}, keys)
	assert.Equal(t, int64(20), out[4]["$skip"])
	assert.Len(t, base, 1)
}

func TestCompose_SkipsEmpty(t *testing.T) {
	out := Compose(Pipeline{}, Optional{Limit: 5})
	assert.Equal(t, Pipeline{{"$limit": int64(5)}}, out)
}

func TestMetaPipeline(t *testing.T) {
	base := Pipeline{{"$addFields": bson.M{"x": 1}}}
	opt := Optional{Match: bson.M{"a": 1}, Skip: 10, Limit: 10, Trailing: bson.M{"$sort": bson.M{"b": 1}}}

	out := MetaPipeline(base, opt)
	require.Len(t, out, 3)
	assert.Equal(t, bson.M{"$match": bson.M{"a": 1}}, out[1])
	assert.Equal(t, bson.M{"$count": "total"}, out[2])
}

func TestObjectIDMapper(t *testing.T) {
	office := bson.NewObjectID()
	dept := bson.NewObjectID()
	self := bson.NewObjectID()
	raw := map[string]any{
		"office":      office.Hex(),
		"departments": []any{dept.Hex(), "not-an-id"},
		"_id":         self.Hex(),
		"firstName":   "Ann",
		"tags":        []any{"x"},
	}
	where := bson.M{
		"office":      bson.Regex{Pattern: "^" + office.Hex(), Options: "i"},
		"departments": bson.M{"$in": bson.A{dept.Hex()}},
		"_id":         bson.Regex{Pattern: "^" + self.Hex(), Options: "i"},
		"firstName":   bson.Regex{Pattern: "^Ann", Options: "i"},
		"tags":        bson.M{"$in": bson.A{"x"}},
	}

	out := ObjectIDMapper(raw, where)
	assert.Equal(t, office, out["office._id"])
	assert.Equal(t, bson.M{"$in": bson.A{dept, "not-an-id"}}, out["departments._id"])
	assert.Equal(t, self, out["_id"])
	assert.Equal(t, where["firstName"], out["firstName"])
	assert.Equal(t, where["tags"], out["tags"])
	assert.NotContains(t, out, "office")
	assert.NotContains(t, out, "departments")
	assert.Len(t, where, 5)
}

func TestEmployeeSkillsByParent(t *testing.T) {
	emp, parent := bson.NewObjectID(), bson.NewObjectID()
	p := EmployeeSkillsByParent(emp, parent)
	require.Len(t, p, 3)
	match := p[2]["$match"].(bson.M)["$and"].(bson.A)
	assert.Equal(t, bson.M{"employee": emp}, match[0])
	assert.Equal(t, bson.M{"skill.parent": parent}, match[1])
}

func TestClone_Independent(t *testing.T) {
	orig := Pipeline{{"$match": bson.M{"a": bson.A{bson.M{"b": 1}}}}}
	cp := Clone(orig)
	cp[0]["$match"].(bson.M)["a"].(bson.A)[0].(bson.M)["b"] = 2
	assert.Equal(t, 1, orig[0]["$match"].(bson.M)["a"].(bson.A)[0].(bson.M)["b"])
}
