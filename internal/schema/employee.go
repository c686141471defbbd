package schema

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/models"
)

var now = time.Now

// normalizeGender maps anything outside the known genders to not-set.
func normalizeGender(v any) any {
	s, _ := v.(string)
	if s != models.GenderNotSet && slices.Contains(models.GenderTypes.Values(), s) {
		return s
	}
	return models.GenderNotSet
}

// statusFilter selects employees by their date-derived status. It accepts
// one status or a list of them.
func statusFilter(value any) bson.M {
	var statuses []string
	switch v := value.(type) {
	case string:
		statuses = []string{v}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				statuses = append(statuses, s)
			}
		}
	case []string:
		statuses = v
	}

	t := now()
	var queries []bson.M
	for _, status := range statuses {
		switch status {
		case models.StatusActive:
			queries = append(queries, bson.M{
				"startDate": bson.M{"$lt": t},
				"$or": bson.A{
					bson.M{"endDate": nil},
					bson.M{"endDate": bson.M{"$gt": t}},
				},
			})
		case models.StatusEx:
			queries = append(queries, bson.M{
				"endDate": bson.M{"$lt": t},
				"$or": bson.A{
					bson.M{"startDate": nil},
					bson.M{"startDate": bson.M{"$lt": t}},
				},
			})
		case models.StatusFuture:
			queries = append(queries, bson.M{
				"$or": bson.A{
					bson.M{"startDate": bson.M{"$gt": t}},
					bson.M{"startDate": nil, "endDate": nil},
				},
			})
		}
	}
	switch len(queries) {
	case 0:
		return bson.M{}
	case 1:
		return queries[0]
	}
	or := make(bson.A, 0, len(queries))
	for _, q := range queries {
		or = append(or, q)
	}
	return bson.M{"$or": or}
}

// EmployeeStatus derives the status of an employee from its dates.
func EmployeeStatus(start, end *time.Time, at time.Time) string {
	switch {
	case start == nil && end == nil:
		return models.StatusFuture
	case start != nil && start.After(at):
		return models.StatusFuture
	case end != nil && at.After(*end):
		return models.StatusEx
	case end == nil || (start != nil && end.After(*start)):
		return models.StatusActive
	}
	return models.StatusFuture
}

// EmployeeStanding is the time in service in milliseconds.
func EmployeeStanding(start, end *time.Time, at time.Time) int64 {
	if start == nil || !at.After(*start) {
		return 0
	}
	until := at
	if end != nil && at.After(*end) {
		until = *end
	}
	return until.Sub(*start).Milliseconds()
}

func employeeComputed(doc bson.M, at time.Time) {
	var start, end *time.Time
	if t, ok := AsTime(doc["startDate"]); ok {
		start = &t
	}
	if t, ok := AsTime(doc["endDate"]); ok {
		end = &t
	}
	status, _ := models.EmployeeStatusTypes.Get(EmployeeStatus(start, end, at))
	doc["status"] = status
	doc["standing"] = EmployeeStanding(start, end, at)
}

// employeeStatusStage replaces the aggregated status string by its option.
func employeeStatusStage() bson.M {
	option := func(value string) bson.M {
		o, _ := models.EmployeeStatusTypes.Get(value)
		return bson.M{"value": o.Value, "label": o.Label}
	}
	return bson.M{"$addFields": bson.M{
		"status": bson.M{"$switch": bson.M{
			"branches": bson.A{
				bson.M{"case": bson.M{"$eq": bson.A{"$status", models.StatusActive}}, "then": option(models.StatusActive)},
				bson.M{"case": bson.M{"$eq": bson.A{"$status", models.StatusFuture}}, "then": option(models.StatusFuture)},
			},
			"default": option(models.StatusEx),
		}},
	}}
}

// ActiveExpr matches documents whose period covers the current time. It is
// used inside lookup pipelines.
func ActiveExpr() bson.M {
	return bson.M{"$expr": bson.M{"$and": bson.A{
		bson.M{"$ne": bson.A{bson.M{"$ifNull": bson.A{"$startDate", nil}}, nil}},
		bson.M{"$lt": bson.A{"$startDate", "$$NOW"}},
		bson.M{"$or": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$endDate", nil}}, nil}},
			bson.M{"$and": bson.A{
				bson.M{"$lt": bson.A{"$startDate", "$endDate"}},
				bson.M{"$gt": bson.A{"$endDate", "$$NOW"}},
			}},
		}},
	}}}
}
