package aggregate

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/models"
)

const (
	ViewEmployee               = "Employee"
	ViewAllEmployees           = "AllEmployees"
	ViewMyProfile              = "MyProfile"
	ViewHoliday                = "Holiday"
	ViewNotificationsEmployees = "employeesListForNotifications"
)

// Lookup is a named group of join stages. Its name is the populate key that
// can narrow or widen the projection inside the join.
type Lookup struct {
	Name   string
	Stages Pipeline
}

// View is a registered base pipeline plus its narrowable lookups.
type View struct {
	Base    Pipeline
	Lookups []Lookup
}

func defaultViews() map[string]View {
	return map[string]View{
		ViewEmployee: {
			Base: Pipeline{employeeStatus(), employeeStanding()},
			Lookups: []Lookup{
				{Name: "office", Stages: joinOne("offices", "office", "_id")},
				{Name: "departments", Stages: Pipeline{
					{"$lookup": bson.M{
						"from": "departments",
						"let":  bson.M{"departments": bson.M{"$ifNull": bson.A{"$departments", bson.A{}}}},
						"pipeline": bson.A{
							bson.M{"$match": bson.M{"$expr": bson.M{"$in": bson.A{"$_id", "$$departments"}}}},
							bson.M{"$project": bson.M{"_id": 1}},
						},
						"as": "departments",
					}},
				}},
				{Name: "seniority", Stages: joinOne("seniorities", "seniority", "_id")},
				{Name: "position", Stages: joinOne("positions", "position", "_id")},
			},
		},
		ViewAllEmployees:           {Base: allEmployees()},
		ViewMyProfile:              {Base: myProfile()},
		ViewHoliday:                {Base: Pipeline{}},
		ViewNotificationsEmployees: {Base: employeesListForNotifications()},
	}
}

func employeeStatus() bson.M {
	return bson.M{"$addFields": bson.M{
		"status": bson.M{"$switch": bson.M{
			"branches": bson.A{
				bson.M{
					"case": bson.M{"$or": bson.A{
						bson.M{"$and": bson.A{missing("$startDate"), missing("$endDate")}},
						bson.M{"$and": bson.A{exists("$startDate"), bson.M{"$gt": bson.A{"$startDate", "$$NOW"}}}},
					}},
					"then": models.StatusFuture,
				},
				bson.M{
					"case": bson.M{"$and": bson.A{exists("$endDate"), bson.M{"$gt": bson.A{"$$NOW", "$endDate"}}}},
					"then": models.StatusEx,
				},
				bson.M{"case": exists("$startDate"), "then": models.StatusActive},
			},
			"default": models.StatusFuture,
		}},
	}}
}

func startedBefore(field string) bson.M {
	return bson.M{"$and": bson.A{exists(field), bson.M{"$lt": bson.A{field, "$$NOW"}}}}
}

// employeeStanding is the time in service in milliseconds.
func employeeStanding() bson.M {
	return bson.M{"$addFields": bson.M{
		"standing": bson.M{"$cond": bson.M{
			"if": startedBefore("$startDate"),
			"then": bson.M{"$cond": bson.M{
				"if":   startedBefore("$endDate"),
				"then": bson.M{"$subtract": bson.A{"$endDate", "$startDate"}},
				"else": bson.M{"$subtract": bson.A{"$$NOW", "$startDate"}},
			}},
			"else": 0,
		}},
	}}
}

func skillOfRating() Pipeline {
	return Pipeline{lookup("skills", "skill", "skill", "_id", nil), unwind("skill")}
}

func allEmployees() Pipeline {
	return Pipeline{
		lookup("employeeprojects", "_id", "projectsQty", "employee", nil),
		{"$addFields": bson.M{"projectsQty": bson.M{"$size": "$projectsQty"}}},
		lookup("employeeskills", "_id", "skills", "employee", concat(
			skillOfRating(),
			Pipeline{{"$sort": bson.D{{Key: "skill.priority", Value: -1}, {Key: "value", Value: -1}}}},
		)),
		{"$addFields": bson.M{"mainEmployeeSkill": firstOrNull("$skills")}},
		lookup("employeeskills", "_id", "skills", "employee", concat(
			skillOfRating(),
			Pipeline{{"$replaceRoot": bson.M{"newRoot": "$skill"}}},
		)),
	}
}

// myProfile reshapes one employee into {projects, userData, employeeSkills,
// schools}. The current project is the open one started last, or else the
// one that ended last.
func myProfile() Pipeline {
	projectOrder := func(field string) bson.M {
		return bson.M{"$sort": bson.M{"employeeProjects." + field: -1}}
	}
	return Pipeline{
		lookup("employeeprojects", "_id", "employeeProjects", "employee", nil),
		lookup("employeeschools", "_id", "schools", "employee", nil),
		lookup("personalinfos", "_id", "personalInfo", "employee", nil),
		lookup("positions", "position", "position", "_id", nil),
		lookup("offices", "office", "office", "_id", nil),
		lookup("employeeskills", "_id", "employeeSkills", "employee", nil),
		lookup("roles", "_id", "role", "employee", Pipeline{
			{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$service", models.ServiceMy}}}},
		}),
		{"$addFields": bson.M{
			"projectsQty":          bson.M{"$size": "$employeeProjects"},
			"employeeProjectsCopy": "$employeeProjects",
		}},
		unwind("employeeProjects"),
		{"$facet": bson.M{
			"noEndDate": bson.A{
				bson.M{"$match": bson.M{"$or": bson.A{
					bson.M{"employeeProjects.endDate": bson.M{"$exists": false}},
					bson.M{"employeeProjects.endDate": bson.M{"$eq": nil}},
				}}},
				projectOrder("startDate"),
			},
			"withEndDate": bson.A{
				bson.M{"$match": bson.M{"$and": bson.A{
					bson.M{"employeeProjects.endDate": bson.M{"$exists": true}},
					bson.M{"employeeProjects.endDate": bson.M{"$ne": nil}},
				}}},
				projectOrder("endDate"),
			},
			"schools": bson.A{
				bson.M{"$group": bson.M{"_id": "$schools"}},
				unwind("_id"),
				lookup("schools", "_id.school", "_id.school", "_id", nil),
				unwind("_id.school"),
				bson.M{"$replaceRoot": bson.M{"newRoot": "$_id"}},
			},
		}},
		{"$project": bson.M{
			"employee": bson.M{"$cond": bson.M{
				"if":   bson.M{"$eq": bson.A{bson.A{}, "$noEndDate"}},
				"then": firstOrNull("$withEndDate"),
				"else": bson.M{"$arrayElemAt": bson.A{"$noEndDate", 0}},
			}},
			"schools": 1,
		}},
		{"$addFields": bson.M{"employeeProjectsCopy": "$employee.employeeProjectsCopy"}},
		lookup("projects", "employee.employeeProjects.project", "employee.employeeProjects.project", "_id", nil),
		lookup("positions", "employee.employeeProjects.position", "employee.employeeProjects.position", "_id", nil),
		{"$addFields": bson.M{
			"employee.employeeProjects.project":  firstOrNull("$employee.employeeProjects.project"),
			"employee.employeeProjects.position": firstOrNull("$employee.employeeProjects.position"),
		}},
		unwind("employeeProjectsCopy"),
		lookup("projects", "employeeProjectsCopy.project", "employeeProjectsCopy.project", "_id", nil),
		lookup("positions", "employeeProjectsCopy.position", "employeeProjectsCopy.position", "_id", nil),
		unwind("employeeProjectsCopy.project"),
		unwind("employeeProjectsCopy.position"),
		{"$group": bson.M{
			"_id":              bson.M{"_id": "$_id", "employee": "$employee", "schools": "$schools"},
			"employeeProjects": bson.M{"$push": "$employeeProjectsCopy"},
		}},
		{"$project": bson.M{
			"_id":                       0,
			"projects.projectsQty":      "$_id.employee.projectsQty",
			"projects.currentProject":   nullIfMissing("$_id.employee.employeeProjects"),
			"projects.employeeProjects": "$employeeProjects",
			"userData._id":              "$_id.employee._id",
			"userData.personalInfo":     firstOrNull("$_id.employee.personalInfo"),
			"userData.firstName":        "$_id.employee.firstName",
			"userData.lastName":         "$_id.employee.lastName",
			"userData.email":            "$_id.employee.email",
			"userData.photo":            nullIfMissing("$_id.employee.photo"),
			"userData.phoneWork":        nullIfMissing("$_id.employee.phoneNumberWork"),
			"userData.skypeWork":        nullIfMissing("$_id.employee.skypeWork"),
			"userData.office":           firstOrNull("$_id.employee.office"),
			"userData.position":         firstOrNull("$_id.employee.position"),
			"userData.role":             firstOrNull("$_id.employee.role"),
			"employeeSkills":            "$_id.employee.employeeSkills",
			"schools":                   "$_id.schools",
		}},
	}
}

func officesOfSchema(inner bson.A) Pipeline {
	if inner == nil {
		inner = bson.A{bson.M{"$match": bson.M{"$expr": bson.M{"$in": bson.A{"$_id", "$$officesIdArr"}}}}}
	}
	return Pipeline{
		{"$lookup": bson.M{
			"from":     "offices",
			"let":      bson.M{"officesIdArr": bson.M{"$ifNull": bson.A{"$holidaySchema.offices", bson.A{}}}},
			"pipeline": inner,
			"as":       "office",
		}},
		unwind("office"),
	}
}

// currentProjectOf joins the open project assignment of the employee.
func currentProjectOf() Pipeline {
	return Pipeline{
		{"$lookup": bson.M{
			"from": "employeeprojects",
			"let":  bson.M{"employeeId": "$employee._id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$employee", "$$employeeId"}},
					missing("$endDate"),
				}}}},
				bson.M{"$lookup": bson.M{"from": "projects", "localField": "project", "foreignField": "_id", "as": "project"}},
				unwind("project"),
			},
			"as": "employeeProject",
		}},
		unwind("employeeProject"),
	}
}

// employeesListForNotifications groups, per holiday, the employees of the
// offices that celebrate it and of the offices that do not, by project.
func employeesListForNotifications() Pipeline {
	local := concat(
		officesOfSchema(nil),
		Pipeline{
			{"$lookup": bson.M{
				"from": "employees",
				"let":  bson.M{"officeId": "$office._id"},
				"pipeline": bson.A{
					bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$office", "$$officeId"}}}},
					bson.M{"$project": bson.M{"firstName": 1, "lastName": 1, "position": 1, "office": 1, "email": 1}},
				},
				"as": "employee",
			}},
			unwind("employee"),
		},
		joinOne("offices", "employee.office"),
		joinOne("positions", "employee.position"),
		currentProjectOf(),
		Pipeline{
			{"$group": bson.M{"_id": "$employeeProject.project", "employees": bson.M{"$addToSet": "$employee"}}},
			{"$project": bson.M{"project": "$_id", "_id": 0, "employees": 1}},
		},
	)
	foreign := concat(
		officesOfSchema(bson.A{
			bson.M{"$match": bson.M{"$expr": bson.M{"$not": bson.A{bson.M{"$in": bson.A{"$_id", "$$officesIdArr"}}}}}},
		}),
		Pipeline{lookup("employees", "office._id", "employee", "office", nil), unwind("employee")},
		currentProjectOf(),
		Pipeline{
			{"$group": bson.M{"_id": bson.M{"project": "$employeeProject.project"}, "employees": bson.M{"$addToSet": "$employee"}}},
			{"$project": bson.M{"project": "$_id.project", "_id": 0, "employees": 1}},
		},
	)
	dateCountry := concat(
		officesOfSchema(nil),
		Pipeline{{"$project": bson.M{
			"_id":       0,
			"country":   "$office.country",
			"type":      "$type",
			"date":      "$to",
			"shiftedTo": "$from",
			"team":      bson.A{},
		}}},
	)
	return concat(
		Pipeline{lookup("holidayschemas", "holidaySchema", "holidaySchema", "_id", nil), unwind("holidaySchema")},
		Pipeline{{"$facet": bson.M{
			"local":       toArray(local),
			"foreign":     toArray(foreign),
			"dateCountry": toArray(dateCountry),
		}}},
	)
}

func toArray(p Pipeline) bson.A {
	out := make(bson.A, 0, len(p))
	for _, s := range p {
		out = append(out, s)
	}
	return out
}

// EmployeeSkillsByParent lists the ratings of employee whose skill sits
// directly under parent.
func EmployeeSkillsByParent(employee, parent bson.ObjectID) Pipeline {
	return Pipeline{
		{"$lookup": bson.M{"from": "skills", "localField": "skill", "foreignField": "_id", "as": "skill"}},
		{"$unwind": bson.M{"path": "$skill"}},
		{"$match": bson.M{"$and": bson.A{
			bson.M{"employee": employee},
			bson.M{"skill.parent": parent},
		}}},
	}
}
