package models

// Option is a selectable value with its display label.
type Option struct {
	Value any    `json:"value" bson:"value"`
	Label string `json:"label" bson:"label"`
}

type Options []Option

// Values returns the raw values, used for enum rules.
func (o Options) Values() []string {
	out := make([]string, 0, len(o))
	for _, opt := range o {
		if s, ok := opt.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Get returns the option holding value.
func (o Options) Get(value string) (Option, bool) {
	for _, opt := range o {
		if opt.Value == value {
			return opt, true
		}
	}
	return Option{}, false
}

const (
	StatusActive = "active"
	StatusEx     = "ex"
	StatusFuture = "future"

	GenderNotSet = "not-set"

	AccessRead    = "read"
	AccessWrite   = "write"
	AccessCreate  = "create"
	AccessUpdate  = "update"
	AccessDestroy = "destroy"
	AccessAdmin   = "admin"

	ServiceStaffPortal = "staffPortal"
	ServiceMy          = "my"
)

var EmployeeStatusTypes = Options{
	{Value: StatusActive, Label: "Active"},
	{Value: StatusEx, Label: "Ex-employee"},
	{Value: StatusFuture, Label: "Future"},
}

var GenderTypes = Options{
	{Value: GenderNotSet, Label: "Not set"},
	{Value: "male", Label: "Male"},
	{Value: "female", Label: "Female"},
}

var PhoneTypes = Options{
	{Value: "mobile", Label: "Mobile"},
	{Value: "home", Label: "Home"},
	{Value: "work", Label: "Work"},
}

var MaritalStatuses = Options{
	{Value: "single", Label: "Single"},
	{Value: "relationship", Label: "In a relationship"},
	{Value: "engaged", Label: "Engaged"},
	{Value: "married", Label: "Married"},
	{Value: "civilUnion", Label: "In a civil union"},
	{Value: "partnership", Label: "In a domestic partnership"},
	{Value: "openRelationship", Label: "In an open relationship"},
	{Value: "complicated", Label: "It's complicated"},
	{Value: "separated", Label: "Separated"},
	{Value: "divorced", Label: "Divorced"},
	{Value: "widowed", Label: "Widowed"},
}

var ProjectStatusTypes = Options{
	{Value: "active", Label: "Active"},
	{Value: "finished", Label: "Finished"},
	{Value: "archived", Label: "Archived"},
	{Value: "future", Label: "Future"},
}

var ClientStatusTypes = Options{
	{Value: "active", Label: "Active"},
	{Value: "future", Label: "Future"},
	{Value: "archived", Label: "Archived"},
}

var ClientContactStatusTypes = Options{
	{Value: "active", Label: "Active"},
	{Value: "inactive", Label: "Inactive"},
}

var AccessRights = Options{
	{Value: AccessRead, Label: "Read"},
	{Value: AccessWrite, Label: "Write"},
	{Value: AccessCreate, Label: "Create"},
	{Value: AccessUpdate, Label: "Update"},
	{Value: AccessDestroy, Label: "Destroy"},
	{Value: AccessAdmin, Label: "Admin"},
}

var AvailableServices = Options{
	{Value: ServiceStaffPortal, Label: "Staff Portal"},
	{Value: ServiceMy, Label: "My"},
}

var Countries = Options{
	{Value: map[string]string{"name": "Ukraine", "code": "UA", "timezone": "GMT+2"}, Label: "Ukraine"},
	{Value: map[string]string{"name": "Belarus", "code": "BLR", "timezone": "GMT+2"}, Label: "Belarus"},
	{Value: map[string]string{"name": "USA", "code": "US", "timezone": "GMT-8"}, Label: "USA"},
}

var DegreeTypes = Options{
	{Value: "not-set", Label: "Not set"},
	{Value: "student", Label: "Student"},
	{Value: "bachelor", Label: "Bachelor"},
	{Value: "master", Label: "Master"},
}

var NoticeTypes = Options{
	{Value: "emailMonthBefore", Label: "Email month before"},
	{Value: "emailThreeDaysBefore", Label: "Email three days before"},
	{Value: "email", Label: "Email"},
}

var HolidayTypes = Options{
	{Value: "fixed", Label: "Fixed"},
	{Value: "shifted", Label: "Shifted"},
}

var SeniorityRanks = Options{
	{Value: "junior", Label: "Junior"},
	{Value: "middle", Label: "Middle"},
	{Value: "senior", Label: "Senior"},
	{Value: "lead", Label: "Lead"},
}

// StaticConstants groups the fixed option lists by namespace, addressed as
// "<namespace>.<name>" by the constants endpoint.
var StaticConstants = map[string]map[string]Options{
	"employee": {
		"maritalStatuses": MaritalStatuses,
		"phoneTypes":      PhoneTypes,
		"statusTypes":     EmployeeStatusTypes,
		"genderTypes":     GenderTypes,
	},
	"project":     {"statusTypes": ProjectStatusTypes},
	"client":      {"statusTypes": ClientStatusTypes, "statusTypesContact": ClientContactStatusTypes},
	"roles":       {"accessRight": AccessRights, "availableServices": AvailableServices},
	"office":      {"countries": Countries},
	"school":      {"degreeTypes": DegreeTypes},
	"sentHistory": {"noticeTypes": NoticeTypes},
	"holiday":     {"types": HolidayTypes},
	"list":        {"ranks": SeniorityRanks},
}
