package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

// FindOptions shapes a find. Zero values mean no limit, no skip, no
// projection and natural order.
type FindOptions struct {
	Projection bson.M
	Sort       bson.D
	Skip       int64
	Limit      int64
	Populate   []schema.Populate
}

// Store is the document store every resource service talks to. Entities
// are addressed by their registered name. Reads of a missing document return
// nil without an error.
type Store interface {
	Find(ctx context.Context, entity string, filter bson.M, opts FindOptions) ([]bson.M, error)
	Count(ctx context.Context, entity string, filter bson.M) (int64, error)
	FindByID(ctx context.Context, entity string, id bson.ObjectID, populate []schema.Populate) (bson.M, error)
	FindOne(ctx context.Context, entity string, filter bson.M) (bson.M, error)
	Create(ctx context.Context, entity string, doc bson.M) (bson.M, error)
	// FindOneAndUpdate applies set to the first match and returns the
	// document after the update.
	FindOneAndUpdate(ctx context.Context, entity string, filter, set bson.M) (bson.M, error)
	UpdateMany(ctx context.Context, entity string, filter, set bson.M) (int64, error)
	DeleteByID(ctx context.Context, entity string, id bson.ObjectID) (bool, error)
	DeleteMany(ctx context.Context, entity string, filter bson.M) (int64, error)
	Aggregate(ctx context.Context, entity string, pipeline aggregate.Pipeline) ([]bson.M, error)
}
