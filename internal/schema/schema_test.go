package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/models"
)

func entity(t *testing.T, name string) *Entity {
	t.Helper()
	e, ok := Default().Get(name)
	require.True(t, ok, name)
	return e
}

func TestDefault_RegistersEveryEntity(t *testing.T) {
	reg := Default()
	assert.Len(t, reg.All(), 18)
	for _, e := range reg.All() {
		assert.NotEmpty(t, e.Collection, e.Name)
	}
}

func TestEntity_FieldResolvesNestedPaths(t *testing.T) {
	info := entity(t, EntityPersonalInfo)

	f, ok := info.Field("contactPersons.phoneNumber.phoneType")
	require.True(t, ok)
	assert.Equal(t, String, f.Type)

	_, ok = info.Field("contactPersons.unknown")
	assert.False(t, ok)
}

func TestCast_ConvertsIdentifiersAndDates(t *testing.T) {
	project := entity(t, EntityEmployeeProject)
	id := bson.NewObjectID()

	doc := project.Cast(map[string]any{
		"employee":  id.Hex(),
		"skills":    []any{id.Hex()},
		"startDate": "2020-01-02",
		"unknown":   "dropped",
	})

	assert.Equal(t, id, doc["employee"])
	assert.Equal(t, bson.A{id}, doc["skills"])
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), doc["startDate"])
	assert.NotContains(t, doc, "unknown")
}

func TestCast_HolidayDatesAreDayOnly(t *testing.T) {
	holiday := entity(t, EntityHoliday)
	doc := holiday.Cast(map[string]any{"to": "2021-05-09T17:45:00Z"})
	assert.Equal(t, time.Date(2021, 5, 9, 0, 0, 0, 0, time.UTC), doc["to"])
}

func TestCast_NormalizesGender(t *testing.T) {
	employee := entity(t, EntityEmployee)
	assert.Equal(t, "female", employee.Cast(map[string]any{"gender": "female"})["gender"])
	assert.Equal(t, models.GenderNotSet, employee.Cast(map[string]any{"gender": "robot"})["gender"])
}

func TestApplyDefaults(t *testing.T) {
	project := entity(t, EntityProject)
	doc := bson.M{"name": "Apollo", "isUnderNDA": false}
	project.ApplyDefaults(doc)

	assert.Equal(t, true, doc["isCompanyProject"])
	assert.Equal(t, false, doc["isUnderNDA"])
	assert.Equal(t, "active", doc["status"])

	contact := entity(t, EntityClientContact)
	doc = bson.M{"phoneNumber": bson.M{"number": "123"}}
	contact.ApplyDefaults(doc)
	assert.Equal(t, "mobile", doc["phoneNumber"].(bson.M)["phoneType"])
}

func TestRules(t *testing.T) {
	rules := entity(t, EntityEmployeeSkill).Rules()

	assert.Equal(t, []string{"isMongoId", "required"}, rules["skill"])
	assert.Equal(t, []string{"integer", "min:0", "max:10"}, rules["value"])
	assert.Equal(t, []string{"array", "shouldNotExist"}, rules["history"])
	assert.Equal(t, []string{"date"}, rules["history.*.date"])
	assert.Equal(t, []string{"shouldNotExist"}, rules["_id"])

	office := entity(t, EntityOffice).Rules()
	assert.Equal(t, []string{"string", "required"}, office["country.code"])

	emp := entity(t, EntityEmployee).Rules()
	assert.Equal(t, []string{"isMongoId"}, emp["departments.*"])
	assert.Equal(t, []string{"string", "required", "email", "companyEmail"}, emp["email"])
}

func TestIndexModels(t *testing.T) {
	idx := entity(t, EntityDepartment).IndexModels()
	require.Len(t, idx, 1)
	assert.True(t, idx[0].Unique)

	idx = entity(t, EntityEmployee).IndexModels()
	require.Len(t, idx, 1)
	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, idx[0].Keys)
}

func TestRefOf(t *testing.T) {
	emp := entity(t, EntityEmployee)

	target, many, ok := emp.RefOf("departments")
	require.True(t, ok)
	assert.Equal(t, EntityDepartment, target)
	assert.True(t, many)

	target, many, ok = emp.RefOf("office")
	require.True(t, ok)
	assert.Equal(t, EntityOffice, target)
	assert.False(t, many)

	_, _, ok = emp.RefOf("firstName")
	assert.False(t, ok)
}

func TestValidateDates(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	assert.NoError(t, ValidateDates(bson.M{"startDate": start, "endDate": end}))
	assert.NoError(t, ValidateDates(bson.M{"startDate": start}))
	assert.Error(t, ValidateDates(bson.M{"endDate": end}))
	assert.Error(t, ValidateDates(bson.M{"startDate": end, "endDate": start}))
	assert.Error(t, ValidateDates(bson.M{"startDate": bson.NewDateTimeFromTime(end), "endDate": start}))
}

func TestEmployeeStatus(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := at.AddDate(-1, 0, 0)
	future := at.AddDate(1, 0, 0)
	recent := at.AddDate(0, -1, 0)

	tests := []struct {
		name       string
		start, end *time.Time
		want       string
	}{
		{"no dates", nil, nil, models.StatusFuture},
		{"starts later", &future, nil, models.StatusFuture},
		{"left", &past, &recent, models.StatusEx},
		{"working", &past, nil, models.StatusActive},
		{"leaving later", &past, &future, models.StatusActive},
		{"only future end", nil, &future, models.StatusFuture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmployeeStatus(tt.start, tt.end, at))
		})
	}
}

func TestEmployeeStanding(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	start := at.Add(-48 * time.Hour)
	end := at.Add(-24 * time.Hour)

	assert.Equal(t, int64(0), EmployeeStanding(nil, nil, at))
	assert.Equal(t, (48 * time.Hour).Milliseconds(), EmployeeStanding(&start, nil, at))
	assert.Equal(t, (24 * time.Hour).Milliseconds(), EmployeeStanding(&start, &end, at))
}

func TestStatusFilter(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	active := statusFilter(models.StatusActive)
	assert.Equal(t, bson.M{"$lt": fixed}, active["startDate"])

	both := statusFilter([]any{models.StatusActive, models.StatusEx})
	require.Contains(t, both, "$or")
	assert.Len(t, both["$or"], 2)

	assert.Equal(t, bson.M{}, statusFilter("unknown"))
}

func TestEmployeeComputed(t *testing.T) {
	doc := bson.M{"startDate": bson.NewDateTimeFromTime(time.Now().AddDate(-1, 0, 0))}
	employeeComputed(doc, time.Now())

	status, ok := doc["status"].(models.Option)
	require.True(t, ok)
	assert.Equal(t, models.StatusActive, status.Value)
	assert.Positive(t, doc["standing"])
}
