package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/docs"
	"github.com/ivaspavlo/staff-management-system/internal/middleware"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/services"
)

// EntityServices are the services behind the entity routes.
type EntityServices struct {
	Resources        map[string]*services.ResourceService
	EmployeeSkills   *services.EmployeeSkillService
	EmployeeProjects *services.EmployeeProjectService
	Jira             *services.JiraService
}

// EntityPaths maps every routed entity to its mount path.
var EntityPaths = []struct {
	Entity string
	Path   string
}{
	{schema.EntityEmployee, "/employees"},
	{schema.EntitySkill, "/skills"},
	{schema.EntityEmployeeSkill, "/employeeSkills"},
	{schema.EntityEmployeeProject, "/employeeProjects"},
	{schema.EntityProject, "/projects"},
	{schema.EntityClient, "/clients"},
	{schema.EntityClientContact, "/clientContacts"},
	{schema.EntityOffice, "/offices"},
	{schema.EntityDepartment, "/departments"},
	{schema.EntityPosition, "/positions"},
	{schema.EntitySeniority, "/seniorities"},
	{schema.EntityRole, "/roles"},
	{schema.EntityPersonalInfo, "/personalInfo"},
	{schema.EntitySchool, "/schools"},
	{schema.EntityEmployeeSchool, "/employeeSchools"},
	{schema.EntityHoliday, "/holidays"},
	{schema.EntityHolidaySchema, "/holidaySchemas"},
	{schema.EntitySentHistory, "/sentHistory"},
}

// DocMounts lists the entity routes for the API document.
func DocMounts() []docs.Mount {
	out := make([]docs.Mount, 0, len(EntityPaths))
	for _, ep := range EntityPaths {
		out = append(out, docs.Mount{Entity: ep.Entity, Path: ep.Path})
	}
	return out
}

// NewEntityHandlers builds the resource handlers of every entity with
// their policies and extra routes.
func NewEntityHandlers(svc EntityServices, p *middleware.Policies) ([]*ResourceHandler, error) {
	read := []middleware.Policy{p.IsAuth}
	create := []middleware.Policy{p.IsAuth, p.CanCreate}
	update := []middleware.Policy{p.IsAuth, p.CanUpdate}
	destroy := []middleware.Policy{p.IsAuth, p.CanDestroy}

	out := make([]*ResourceHandler, 0, len(EntityPaths))
	for _, ep := range EntityPaths {
		ops, err := entityOps(svc, ep.Entity)
		if err != nil {
			return nil, err
		}
		h := NewResourceHandler(ep.Path, ops).
			Guard(read, OpFindAll, OpFindOne).
			Guard(create, OpCreate).
			Guard(update, OpUpdate, OpBulkUpdate).
			Guard(destroy, OpDestroy)

		switch ep.Entity {
		case schema.EntityEmployee:
			h.Guard([]middleware.Policy{p.IsAuth, p.RestrictPersonalInfo}, OpFindAll, OpFindOne).
				Guard([]middleware.Policy{p.IsAuth, middleware.AnyOf(p.IsOwner, p.CanUpdate)}, OpUpdate)
		case schema.EntityRole:
			h.Guard([]middleware.Policy{p.IsAuth, p.IsAdmin}, OpCreate, OpUpdate, OpBulkUpdate, OpDestroy)
		case schema.EntityPersonalInfo:
			h.Guard(read, OpCreate, OpUpdate)
		case schema.EntitySkill:
			h.Extra(func(r fiber.Router) {
				r.Get("/tree", middleware.Require(read...), func(c fiber.Ctx) error {
					tree, err := svc.EmployeeSkills.SkillTree(c.Context())
					if err != nil {
						return err
					}
					return send(c, tree)
				})
			})
		case schema.EntityEmployeeSkill:
			h.Extra(func(r fiber.Router) {
				r.Post("/upsert", middleware.Require(read...), func(c fiber.Ctx) error {
					items, err := jsonList(c)
					if err != nil {
						return err
					}
					saved, err := svc.EmployeeSkills.Upsert(c.Context(), items)
					if err != nil {
						return err
					}
					return send(c, saved)
				})
				r.Delete("/", middleware.Require(read...), func(c fiber.Ctx) error {
					body, err := jsonBody(c)
					if err != nil {
						return err
					}
					res, err := svc.EmployeeSkills.DestroyMany(c.Context(), body)
					if err != nil {
						return err
					}
					return send(c, res)
				})
			})
		case schema.EntityProject:
			h.Extra(func(r fiber.Router) {
				r.Get("/jira", middleware.Require(read...), func(c fiber.Ctx) error {
					projects, err := svc.Jira.Projects(c.Context())
					if err != nil {
						return err
					}
					return send(c, projects)
				})
			})
		case schema.EntityHoliday:
			holidays := svc.Resources[schema.EntityHoliday]
			h.Extra(func(r fiber.Router) {
				r.Get("/notifications", middleware.Require(read...), func(c fiber.Ctx) error {
					list, err := holidays.Aggregate(c.Context(), middleware.Query(c), aggregate.ViewNotificationsEmployees)
					if err != nil {
						return err
					}
					return send(c, list)
				})
			})
		}
		out = append(out, h)
	}
	return out, nil
}

func entityOps(svc EntityServices, entity string) (Operations, error) {
	switch entity {
	case schema.EntityEmployeeSkill:
		s := svc.EmployeeSkills
		ops := ResourceOps(s.ResourceService)
		ops.FindAll = s.FindAll
		return ops, nil
	case schema.EntityEmployeeProject:
		s := svc.EmployeeProjects
		ops := ResourceOps(s.ResourceService)
		ops.FindAll = func(ctx context.Context, q map[string]any) (any, error) {
			return s.FindAll(ctx, q)
		}
		ops.FindOne = docOp(s.FindOne)
		ops.Create = s.Create
		ops.Update = func(ctx context.Context, q, params, body map[string]any) (any, error) {
			return s.Update(ctx, q, params, body)
		}
		return ops, nil
	}

	s, ok := svc.Resources[entity]
	if !ok {
		return Operations{}, fmt.Errorf("no service for entity %s", entity)
	}
	ops := ResourceOps(s)
	if entity == schema.EntityPersonalInfo {
		ops = ops.Only(OpCreate, OpUpdate)
	}
	return ops, nil
}
