package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
)

func messages(t *testing.T, err error) []string {
	t.Helper()
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Messages
}

func TestValidate_MongoIDInParams(t *testing.T) {
	v := New("itrexgroup.com")

	assert.NoError(t, v.Validate(Check{Data: map[string]any{"_id": "5c8f8f8f8f8f8f8f8f8f8f8f"}, Defined: MongoIDInParams}))

	err := v.Validate(Check{Data: map[string]any{"_id": "nope"}, Defined: MongoIDInParams})
	assert.Equal(t, []string{"The _id is not a valid Mongo ObjectId"}, messages(t, err))

	err = v.Validate(Check{Data: map[string]any{}, Defined: MongoIDInParams})
	assert.Equal(t, []string{"The _id field is required."}, messages(t, err))
}

func TestValidate_MongoIDInArrayReportsEveryElement(t *testing.T) {
	v := New("itrexgroup.com")
	err := v.Validate(Check{
		Data:    map[string]any{"_ids": []any{"5c8f8f8f8f8f8f8f8f8f8f8f", "bad", "worse"}},
		Defined: MongoIDInArray,
	})
	assert.Equal(t, []string{
		"The _ids.1 is not a valid Mongo ObjectId",
		"The _ids.2 is not a valid Mongo ObjectId",
	}, messages(t, err))
}

func TestValidate_AccumulatesAcrossChecks(t *testing.T) {
	v := New("itrexgroup.com")
	v.Register("skill", Rules{"name": {"string", "required"}, "priority": {"integer"}})

	err := v.Validate(
		Check{Data: map[string]any{"_id": "x"}, Defined: MongoIDInParams},
		Check{Data: map[string]any{"priority": 1.5}, Defined: "skill"},
	)
	assert.Equal(t, []string{
		"The _id is not a valid Mongo ObjectId",
		"The name field is required.",
		"The priority must be an integer.",
	}, messages(t, err))
}

func TestValidate_OnlyBodyRules(t *testing.T) {
	v := New("itrexgroup.com")
	rules := Rules{
		"firstName":     {"string", "required"},
		"lastName":      {"string", "required"},
		"country.code":  {"string", "required"},
		"country.name":  {"string", "required"},
		"departments.*": {"isMongoId"},
	}

	err := v.Validate(Check{
		Data:    map[string]any{"firstName": "Ann", "country": map[string]any{"code": "UA"}},
		Rules:   rules,
		Filters: []string{FilterOnlyBodyRules},
	})
	assert.NoError(t, err)

	err = v.Validate(Check{
		Data:    map[string]any{"departments": []any{"bad"}},
		Rules:   rules,
		Filters: []string{FilterOnlyBodyRules},
	})
	assert.Equal(t, []string{"The departments.0 is not a valid Mongo ObjectId"}, messages(t, err))
}

func TestValidate_NoRequired(t *testing.T) {
	v := New("itrexgroup.com")
	err := v.Validate(Check{
		Data:    map[string]any{},
		Rules:   Rules{"name": {"required", "string"}},
		Filters: []string{FilterNoRequired},
	})
	assert.NoError(t, err)
}

func TestValidate_Rules(t *testing.T) {
	v := New("itrexgroup.com")
	tests := []struct {
		name  string
		rule  string
		value any
		ok    bool
	}{
		{"email", "email", "ann@example.com", true},
		{"bad email", "email", "ann@", false},
		{"company email", "companyEmail", "ann.lee@itrexgroup.com", true},
		{"company subdomain", "companyEmail", "ann@mail.itrexgroup.com", true},
		{"foreign email", "companyEmail", "ann@gmail.com", false},
		{"url", "url", "https://example.com/x", true},
		{"bad url", "url", "example", false},
		{"in", "in:active,ex", "ex", true},
		{"not in", "in:active,ex", "gone", false},
		{"max", "max:10", 11.0, false},
		{"min", "min:0", 0.0, true},
		{"string length", "max:3", "abcd", false},
		{"date", "date", "2020-01-02", true},
		{"bad date", "date", "yesterday", false},
		{"boolean", "boolean", true, true},
		{"boolean string", "boolean", "maybe", false},
		{"object", "object", map[string]any{}, true},
		{"not object", "object", "x", false},
		{"should not exist", "shouldNotExist", "value", false},
		{"should not exist falsy", "shouldNotExist", false, true},
		{"numeric string", "numeric", "1.5", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(Check{Data: map[string]any{"f": tt.value}, Rules: Rules{"f": {tt.rule}}})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AbsentValuesSkipOptionalRules(t *testing.T) {
	v := New("itrexgroup.com")
	err := v.Validate(Check{Data: map[string]any{"email": ""}, Rules: Rules{"email": {"email"}, "url": {"url"}}})
	assert.NoError(t, err)
}

func TestSimple(t *testing.T) {
	v := New("itrexgroup.com")
	assert.Nil(t, v.Simple(map[string]any{"email": "ann@itrexgroup.com"}, Rules{"email": {"required", "email", "companyEmail"}}))
	assert.Equal(t,
		[]string{"The email is not an @itrexgroup.com email"},
		v.Simple(map[string]any{"email": "ann@example.com"}, Rules{"email": {"required", "email", "companyEmail"}}),
	)
}
