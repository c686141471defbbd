package schema

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/models"
)

const (
	EntityEmployee        = "Employee"
	EntitySkill           = "Skill"
	EntityEmployeeSkill   = "EmployeeSkill"
	EntityEmployeeProject = "EmployeeProject"
	EntityProject         = "Project"
	EntityClient          = "Client"
	EntityClientContact   = "ClientContact"
	EntityOffice          = "Office"
	EntityDepartment      = "Department"
	EntityPosition        = "Position"
	EntitySeniority       = "Seniority"
	EntityRole            = "Role"
	EntityPersonalInfo    = "PersonalInfo"
	EntitySchool          = "School"
	EntityEmployeeSchool  = "EmployeeSchool"
	EntityHoliday         = "Holiday"
	EntityHolidaySchema   = "HolidaySchema"
	EntitySentHistory     = "SentHistory"
)

func str(name string) Field { return Field{Name: name, Type: String} }
func date(name string) Field { return Field{Name: name, Type: Date} }
func boolean(name string) Field { return Field{Name: name, Type: Bool} }
func ref(name, entity string) Field { return Field{Name: name, Type: ObjectID, Ref: entity} }

func required(f Field) Field {
	f.Required = true
	return f
}

func refs(name, entity string) Field {
	return Field{Name: name, Type: Array, Elem: &Field{Name: name, Type: ObjectID, Ref: entity}}
}

func enum(name string, opts models.Options, def any) Field {
	return Field{Name: name, Type: String, Enum: opts.Values(), Default: def}
}

func phoneNumber(name string) Field {
	return Field{Name: name, Type: Object, Fields: []Field{
		enum("phoneType", models.PhoneTypes, "mobile"),
		str("number"),
	}}
}

func activeEmployeeIDs() Populate {
	return Populate{Path: "employees", Select: []string{"_id"}, ActiveOnly: true}
}

func employeeVirtual(foreignField string) Virtual {
	return Virtual{Name: "employees", Ref: EntityEmployee, LocalField: "_id", ForeignField: foreignField}
}

// Default returns the registry of every entity the service stores.
func Default() *Registry {
	return NewRegistry(
		employee(),
		&Entity{
			Name:       EntitySkill,
			Collection: "skills",
			Fields: []Field{
				ref("parent", EntitySkill),
				required(str("name")),
				{Name: "priority", Type: Int, Default: int64(1)},
			},
		},
		&Entity{
			Name:       EntityEmployeeSkill,
			Collection: "employeeskills",
			Fields: []Field{
				required(ref("skill", EntitySkill)),
				required(ref("employee", EntityEmployee)),
				{Name: "value", Type: Int, Min: ptr(0), Max: ptr(10)},
				date("startDate"),
				date("endDate"),
				{Name: "history", Type: Array, Rules: []string{"shouldNotExist"}, Elem: &Field{Type: Object, Fields: []Field{
					date("date"),
					{Name: "value", Type: Int, Min: ptr(0), Max: ptr(10)},
				}}},
			},
			CheckDates: true,
		},
		&Entity{
			Name:       EntityEmployeeProject,
			Collection: "employeeprojects",
			Fields: []Field{
				ref("project", EntityProject),
				required(ref("employee", EntityEmployee)),
				required(ref("position", EntityPosition)),
				str("description"),
				refs("skills", EntityEmployeeSkill),
				str("responsibilities"),
				required(date("startDate")),
				date("endDate"),
				{Name: "history", Type: Array, Elem: &Field{Type: Object, Fields: []Field{
					date("startDate"),
					date("endDate"),
				}}},
			},
			CheckDates: true,
		},
		&Entity{
			Name:       EntityProject,
			Collection: "projects",
			Fields: []Field{
				required(str("name")),
				str("companyName"),
				{Name: "jiraId", Type: Int},
				str("jiraKey"),
				{Name: "isCompanyProject", Type: Bool, Default: true},
				{Name: "isUnderNDA", Type: Bool, Default: true},
				ref("lead", EntityEmployee),
				ref("client", EntityClient),
				refs("clientContacts", EntityClientContact),
				str("description"),
				{Name: "url", Type: String, Rules: []string{"url"}},
				enum("status", models.ProjectStatusTypes, "active"),
			},
			Virtuals: []Virtual{
				{Name: "employees", Ref: EntityEmployeeProject, LocalField: "_id", ForeignField: "project"},
			},
			AutoPopulate: []Populate{
				{Path: "employees", ActiveOnly: true, Nested: &Populate{Path: "employee"}},
			},
		},
		&Entity{
			Name:         EntityClient,
			Collection:   "clients",
			Fields:       []Field{required(str("name")), enum("status", models.ClientStatusTypes, "active")},
			Virtuals:     []Virtual{{Name: "clientContacts", Ref: EntityClientContact, LocalField: "_id", ForeignField: "client"}},
			DefaultOrder: bson.D{{Key: "name", Value: 1}},
		},
		&Entity{
			Name:       EntityClientContact,
			Collection: "clientcontacts",
			Fields: []Field{
				required(ref("client", EntityClient)),
				required(str("firstName")),
				required(str("lastName")),
				{Name: "gender", Type: String, Set: normalizeGender},
				{Name: "email", Type: String, Rules: []string{"email"}},
				phoneNumber("phoneNumber"),
				str("position"),
				enum("status", models.ClientContactStatusTypes, "active"),
			},
			DefaultOrder: bson.D{{Key: "firstName", Value: 1}, {Key: "lastName", Value: 1}},
		},
		&Entity{
			Name:       EntityOffice,
			Collection: "offices",
			Fields: []Field{
				{Name: "name", Type: String, Required: true, Unique: true},
				{Name: "country", Type: Object, Fields: []Field{
					required(str("timezone")),
					required(str("name")),
					required(str("code")),
				}},
				required(ref("manager", EntityEmployee)),
			},
			Virtuals: []Virtual{
				employeeVirtual("office"),
				{Name: "departments", Ref: EntityDepartment, LocalField: "_id", ForeignField: "office"},
			},
			AutoPopulate: []Populate{activeEmployeeIDs(), {Path: "departments"}},
			DefaultOrder: bson.D{{Key: "name", Value: 1}},
		},
		&Entity{
			Name:       EntityDepartment,
			Collection: "departments",
			Fields: []Field{
				required(str("name")),
				required(ref("manager", EntityEmployee)),
				required(ref("office", EntityOffice)),
			},
			Virtuals:     []Virtual{employeeVirtual("departments")},
			AutoPopulate: []Populate{activeEmployeeIDs()},
			Indexes:      []Index{{Keys: bson.D{{Key: "name", Value: 1}, {Key: "office", Value: 1}}, Unique: true}},
			DefaultOrder: bson.D{{Key: "name", Value: 1}},
		},
		&Entity{
			Name:         EntityPosition,
			Collection:   "positions",
			Fields:       []Field{{Name: "name", Type: String, Required: true, Unique: true}},
			Virtuals:     []Virtual{employeeVirtual("position")},
			AutoPopulate: []Populate{activeEmployeeIDs()},
			DefaultOrder: bson.D{{Key: "name", Value: 1}},
		},
		&Entity{
			Name:       EntitySeniority,
			Collection: "seniorities",
			Fields: []Field{
				required(str("name")),
				enum("rank", models.SeniorityRanks, nil),
			},
			Virtuals:     []Virtual{employeeVirtual("seniority")},
			AutoPopulate: []Populate{activeEmployeeIDs()},
			Indexes:      []Index{{Keys: bson.D{{Key: "name", Value: 1}, {Key: "rank", Value: 1}}, Unique: true}},
			DefaultOrder: bson.D{{Key: "name", Value: 1}},
		},
		&Entity{
			Name:       EntityRole,
			Collection: "roles",
			Fields: []Field{
				enum("service", models.AvailableServices, models.ServiceStaffPortal),
				enum("access", models.AccessRights, models.AccessRead),
				required(ref("employee", EntityEmployee)),
			},
		},
		personalInfo(),
		&Entity{
			Name:       EntitySchool,
			Collection: "schools",
			Fields:     []Field{required(str("name"))},
		},
		&Entity{
			Name:       EntityEmployeeSchool,
			Collection: "employeeschools",
			Fields: []Field{
				required(ref("school", EntitySchool)),
				required(ref("employee", EntityEmployee)),
				enum("degree", models.DegreeTypes, "not-set"),
				str("fieldOfStudie"),
				date("startDate"),
				date("endDate"),
			},
			CheckDates: true,
		},
		&Entity{
			Name:       EntityHoliday,
			Collection: "holidays",
			Fields: []Field{
				required(str("name")),
				enum("type", models.HolidayTypes, "fixed"),
				{Name: "from", Type: Date, DayOnly: true},
				{Name: "to", Type: Date, DayOnly: true, Required: true},
				required(ref("holidaySchema", EntityHolidaySchema)),
			},
			DefaultOrder: bson.D{{Key: "to", Value: 1}},
		},
		&Entity{
			Name:         EntityHolidaySchema,
			Collection:   "holidayschemas",
			Fields:       []Field{required(str("name")), refs("offices", EntityOffice)},
			Virtuals:     []Virtual{{Name: "holidays", Ref: EntityHoliday, LocalField: "_id", ForeignField: "holidaySchema"}},
			DefaultOrder: bson.D{{Key: "name", Value: 1}},
		},
		&Entity{
			Name:       EntitySentHistory,
			Collection: "senthistories",
			Fields: []Field{
				enum("noticeType", models.NoticeTypes, "email"),
				required(date("dateSent")),
				required(Field{Name: "event", Type: ObjectID}),
				required(Field{Name: "addressee", Type: ObjectID}),
			},
			DefaultOrder: bson.D{{Key: "dateSent", Value: 1}},
		},
	)
}

func employee() *Entity {
	return &Entity{
		Name:       EntityEmployee,
		Collection: "employees",
		Fields: []Field{
			required(str("firstName")),
			required(str("lastName")),
			{Name: "gender", Type: String, Set: normalizeGender},
			{Name: "email", Type: String, Required: true, Unique: true, Rules: []string{"email", "companyEmail"}},
			str("photo"),
			ref("office", EntityOffice),
			refs("departments", EntityDepartment),
			ref("seniority", EntitySeniority),
			ref("position", EntityPosition),
			date("startDate"),
			date("endDate"),
			ref("manager", EntityEmployee),
			str("dismissalReason"),
			phoneNumber("phoneNumberWork"),
			str("skypeWork"),
			str("summary"),
			{Name: "status", Type: String, Rules: []string{"shouldNotExist"}},
			{Name: "standing", Type: Int, Rules: []string{"shouldNotExist"}},
		},
		Virtuals: []Virtual{
			{Name: "subordinate", Ref: EntityEmployee, LocalField: "_id", ForeignField: "manager"},
			{Name: "role", Ref: EntityRole, LocalField: "_id", ForeignField: "employee"},
			{Name: "personalInfo", Ref: EntityPersonalInfo, LocalField: "_id", ForeignField: "employee", JustOne: true},
		},
		DefaultOrder:    bson.D{{Key: "firstName", Value: 1}},
		Filters:         map[string]FilterFunc{"status": statusFilter},
		TrailingStage:   employeeStatusStage(),
		CheckDates:      true,
		Computed:        employeeComputed,
		AlwaysAggregate: true,
	}
}

func personalInfo() *Entity {
	return &Entity{
		Name:       EntityPersonalInfo,
		Collection: "personalinfos",
		Fields: []Field{
			required(ref("employee", EntityEmployee)),
			date("dateOfBirth"),
			{Name: "personalEmail", Type: String, Rules: []string{"email"}},
			phoneNumber("phoneNumber"),
			str("skype"),
			str("registeredAddress"),
			str("homeAddress"),
			enum("maritalStatus", models.MaritalStatuses, nil),
			{Name: "children", Type: Array, Elem: &Field{Type: Object, Fields: []Field{
				str("name"),
				date("dateOfBirth"),
			}}},
			{Name: "contactPersons", Type: Array, Elem: &Field{Type: Object, Fields: []Field{
				str("name"),
				str("contactPersonIsMy"),
				phoneNumber("phoneNumber"),
				str("whenToContact"),
				str("whenNotToContact"),
			}}},
			boolean("militaryRank"),
			boolean("internationalPassport"),
			boolean("previousConviction"),
			str("otherInfo"),
		},
	}
}
