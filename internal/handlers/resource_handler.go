package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/middleware"
	"github.com/ivaspavlo/staff-management-system/internal/services"
)

type Op int

const (
	OpFindAll Op = iota
	OpFindOne
	OpCreate
	OpBulkUpdate
	OpUpdate
	OpDestroy
)

// Operations are the service calls behind the generic routes. A nil
// operation is not routed.
type Operations struct {
	FindAll    func(ctx context.Context, q map[string]any) (any, error)
	FindOne    func(ctx context.Context, params, q map[string]any) (any, error)
	Create     func(ctx context.Context, q, body map[string]any) (*services.Result, error)
	BulkUpdate func(ctx context.Context, q, body map[string]any) (any, error)
	Update     func(ctx context.Context, q, params, body map[string]any) (any, error)
	Destroy    func(ctx context.Context, params map[string]any) (*services.Result, error)
}

// ResourceOps exposes every operation of a resource service.
func ResourceOps(s *services.ResourceService) Operations {
	return Operations{
		FindAll: func(ctx context.Context, q map[string]any) (any, error) {
			return s.FindAll(ctx, q)
		},
		FindOne: func(ctx context.Context, params, q map[string]any) (any, error) {
			return s.FindOne(ctx, params, q)
		},
		Create: s.Create,
		BulkUpdate: func(ctx context.Context, q, body map[string]any) (any, error) {
			return s.BulkUpdate(ctx, q, body)
		},
		Update: func(ctx context.Context, q, params, body map[string]any) (any, error) {
			return s.Update(ctx, q, params, body)
		},
		Destroy: s.Destroy,
	}
}

// Only keeps the listed operations.
func (o Operations) Only(ops ...Op) Operations {
	var out Operations
	for _, op := range ops {
		switch op {
		case OpFindAll:
			out.FindAll = o.FindAll
		case OpFindOne:
			out.FindOne = o.FindOne
		case OpCreate:
			out.Create = o.Create
		case OpBulkUpdate:
			out.BulkUpdate = o.BulkUpdate
		case OpUpdate:
			out.Update = o.Update
		case OpDestroy:
			out.Destroy = o.Destroy
		}
	}
	return out
}

// ResourceHandler mounts the generic REST routes of one entity:
// GET /, GET /:_id, POST /, PUT /bulk, PUT /:_id and DELETE /:_id.
type ResourceHandler struct {
	path     string
	ops      Operations
	policies map[Op][]middleware.Policy
	extra    []func(r fiber.Router)
}

func NewResourceHandler(path string, ops Operations) *ResourceHandler {
	return &ResourceHandler{
		path:     path,
		ops:      ops,
		policies: make(map[Op][]middleware.Policy),
	}
}

// Guard sets the policy chain of the given operations.
func (h *ResourceHandler) Guard(checks []middleware.Policy, ops ...Op) *ResourceHandler {
	for _, op := range ops {
		h.policies[op] = checks
	}
	return h
}

// Extra registers additional routes in the group ahead of the generic ones.
func (h *ResourceHandler) Extra(fn func(r fiber.Router)) *ResourceHandler {
	h.extra = append(h.extra, fn)
	return h
}

func (h *ResourceHandler) RegisterRoutes(app *fiber.App) {
	group := app.Group(h.path)
	for _, fn := range h.extra {
		fn(group)
	}

	if h.ops.FindAll != nil {
		group.Get("/", h.guard(OpFindAll), h.findAll)
	}
	if h.ops.BulkUpdate != nil {
		group.Put("/bulk", h.guard(OpBulkUpdate), h.bulkUpdate)
	}
	if h.ops.FindOne != nil {
		group.Get("/:_id", h.guard(OpFindOne), h.findOne)
	}
	if h.ops.Create != nil {
		group.Post("/", h.guard(OpCreate), h.create)
	}
	if h.ops.Update != nil {
		group.Put("/:_id", h.guard(OpUpdate), h.update)
	}
	if h.ops.Destroy != nil {
		group.Delete("/:_id", h.guard(OpDestroy), h.destroy)
	}
}

func (h *ResourceHandler) guard(op Op) fiber.Handler {
	return middleware.Require(h.policies[op]...)
}

func (h *ResourceHandler) findAll(c fiber.Ctx) error {
	out, err := h.ops.FindAll(c.Context(), middleware.Query(c))
	if err != nil {
		return err
	}
	return send(c, out)
}

func (h *ResourceHandler) findOne(c fiber.Ctx) error {
	out, err := h.ops.FindOne(c.Context(), routeParams(c), middleware.Query(c))
	if err != nil {
		return err
	}
	return send(c, out)
}

func (h *ResourceHandler) create(c fiber.Ctx) error {
	body, err := jsonBody(c)
	if err != nil {
		return err
	}
	res, err := h.ops.Create(c.Context(), middleware.Query(c), body)
	if err != nil {
		return err
	}
	return send(c, res)
}

func (h *ResourceHandler) bulkUpdate(c fiber.Ctx) error {
	body, err := jsonBody(c)
	if err != nil {
		return err
	}
	out, err := h.ops.BulkUpdate(c.Context(), middleware.Query(c), body)
	if err != nil {
		return err
	}
	return send(c, out)
}

func (h *ResourceHandler) update(c fiber.Ctx) error {
	body, err := jsonBody(c)
	if err != nil {
		return err
	}
	out, err := h.ops.Update(c.Context(), middleware.Query(c), routeParams(c), body)
	if err != nil {
		return err
	}
	return send(c, out)
}

func (h *ResourceHandler) destroy(c fiber.Ctx) error {
	res, err := h.ops.Destroy(c.Context(), routeParams(c))
	if err != nil {
		return err
	}
	return send(c, res)
}

// docOp adapts an operation returning a single document.
func docOp(fn func(ctx context.Context, params, q map[string]any) (bson.M, error)) func(context.Context, map[string]any, map[string]any) (any, error) {
	return func(ctx context.Context, params, q map[string]any) (any, error) {
		return fn(ctx, params, q)
	}
}
