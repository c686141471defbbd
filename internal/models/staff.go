package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Skill is one node of the skill forest. Roots have no parent.
type Skill struct {
	ID        bson.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Name      string         `bson:"name" json:"name"`
	Parent    *bson.ObjectID `bson:"parent,omitempty" json:"parent,omitempty"`
	Priority  int            `bson:"priority" json:"priority"`
	CreatedAt time.Time      `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt time.Time      `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// SkillHistory records one rating change of an EmployeeSkill.
type SkillHistory struct {
	ID    bson.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Date  time.Time     `bson:"date" json:"date"`
	Value *int          `bson:"value,omitempty" json:"value,omitempty"`
}

// EmployeeSkill is the rating of one employee for one skill over time.
type EmployeeSkill struct {
	ID        bson.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Skill     bson.ObjectID  `bson:"skill" json:"skill"`
	Employee  bson.ObjectID  `bson:"employee" json:"employee"`
	Value     *int           `bson:"value,omitempty" json:"value,omitempty"`
	StartDate *time.Time     `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate   *time.Time     `bson:"endDate,omitempty" json:"endDate,omitempty"`
	History   []SkillHistory `bson:"history" json:"history"`
	CreatedAt time.Time      `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt time.Time      `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// RecordValue appends a history entry when the rating differs from the last
// recorded one. It reports whether an entry was added.
func (es *EmployeeSkill) RecordValue(at time.Time) bool {
	if n := len(es.History); n > 0 && sameValue(es.History[n-1].Value, es.Value) {
		return false
	}
	var value *int
	if es.Value != nil {
		v := *es.Value
		value = &v
	}
	es.History = append(es.History, SkillHistory{ID: bson.NewObjectID(), Date: at, Value: value})
	return true
}

func sameValue(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ProjectHistory is one participation period of an employee on a project.
type ProjectHistory struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	StartDate *time.Time    `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate   *time.Time    `bson:"endDate,omitempty" json:"endDate,omitempty"`
}

type EmployeeProject struct {
	ID               bson.ObjectID    `bson:"_id,omitempty" json:"_id"`
	Project          *bson.ObjectID   `bson:"project,omitempty" json:"project,omitempty"`
	Employee         bson.ObjectID    `bson:"employee" json:"employee"`
	Position         bson.ObjectID    `bson:"position" json:"position"`
	Description      string           `bson:"description,omitempty" json:"description,omitempty"`
	Skills           []bson.ObjectID  `bson:"skills" json:"skills"`
	Responsibilities string           `bson:"responsibilities,omitempty" json:"responsibilities,omitempty"`
	StartDate        *time.Time       `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate          *time.Time       `bson:"endDate,omitempty" json:"endDate,omitempty"`
	History          []ProjectHistory `bson:"history" json:"history"`
}

// Employee holds the fields the auth and session layers need. Full employee
// documents travel as bson.M through the generic resource service.
type Employee struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	FirstName string        `bson:"firstName" json:"firstName"`
	LastName  string        `bson:"lastName" json:"lastName"`
	Email     string        `bson:"email" json:"email"`
	Gender    string        `bson:"gender,omitempty" json:"gender,omitempty"`
	Photo     string        `bson:"photo,omitempty" json:"photo,omitempty"`
}

type Role struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Service  string        `bson:"service" json:"service"`
	Access   string        `bson:"access" json:"access"`
	Employee bson.ObjectID `bson:"employee" json:"employee"`
}

// User is the authenticated employee attached to a request.
type User struct {
	Employee
	Roles []Role `json:"role"`
}

// AccessFor returns the access level the user holds for service, or "".
func (u *User) AccessFor(service string) string {
	for _, r := range u.Roles {
		if r.Service == service {
			return r.Access
		}
	}
	return ""
}

// DbProcess marks a completed seed or migration step.
type DbProcess struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string        `bson:"name" json:"name"`
	ProcessType string        `bson:"processType" json:"processType"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
}
