package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
)

// OpObserver is told about every store round trip.
type OpObserver interface {
	ObserveStoreOp(entity, op string, err error)
}

type MongoStore struct {
	db       *mongo.Database
	registry *schema.Registry
	log      *zap.Logger
	observer OpObserver
	now      func() time.Time
}

func NewMongoStore(db *mongo.Database, registry *schema.Registry, log *zap.Logger) *MongoStore {
	return &MongoStore{
		db:       db,
		registry: registry,
		log:      log,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// WithObserver attaches an observer for store operations.
func (s *MongoStore) WithObserver(o OpObserver) *MongoStore {
	s.observer = o
	return s
}

func (s *MongoStore) observe(entity, op string, err error) {
	if s.observer != nil {
		s.observer.ObserveStoreOp(entity, op, err)
	}
}

func (s *MongoStore) collection(entity string) (*mongo.Collection, *schema.Entity, error) {
	e, ok := s.registry.Get(entity)
	if !ok {
		return nil, nil, apperrors.NotFound("Model %s not found", entity)
	}
	return s.db.Collection(e.Collection), e, nil
}

// InitializeIndexes creates the indexes declared by every entity.
func (s *MongoStore) InitializeIndexes(ctx context.Context) error {
	for _, e := range s.registry.All() {
		declared := e.IndexModels()
		if len(declared) == 0 {
			continue
		}
		models := make([]mongo.IndexModel, 0, len(declared))
		for _, idx := range declared {
			m := mongo.IndexModel{Keys: idx.Keys}
			if idx.Unique {
				m.Options = options.Index().SetUnique(true)
			}
			models = append(models, m)
		}
		if _, err := s.db.Collection(e.Collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", e.Collection, err)
		}
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, entity string, filter bson.M, opts FindOptions) ([]bson.M, error) {
	coll, e, err := s.collection(entity)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = bson.M{}
	}
	populate := withAutoPopulate(e, opts.Populate)
	if len(populate) > 0 {
		pipeline := aggregate.Pipeline{{"$match": filter}}
		if len(opts.Sort) > 0 {
			pipeline = append(pipeline, bson.M{"$sort": opts.Sort})
		}
		if opts.Skip > 0 {
			pipeline = append(pipeline, bson.M{"$skip": opts.Skip})
		}
		if opts.Limit > 0 {
			pipeline = append(pipeline, bson.M{"$limit": opts.Limit})
		}
		pipeline = append(pipeline, PopulateStages(s.registry, e, populate)...)
		if len(opts.Projection) > 0 {
			pipeline = append(pipeline, bson.M{"$project": opts.Projection})
		}
		return s.Aggregate(ctx, entity, pipeline)
	}

	findOpts := options.Find()
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := coll.Find(ctx, filter, findOpts)
	s.observe(entity, "find", err)
	if err != nil {
		return nil, apperrors.Store("find "+entity, err)
	}
	defer cursor.Close(ctx)

	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperrors.Store("decode "+entity, err)
	}
	return docs, nil
}

func (s *MongoStore) Count(ctx context.Context, entity string, filter bson.M) (int64, error) {
	coll, _, err := s.collection(entity)
	if err != nil {
		return 0, err
	}
	if filter == nil {
		filter = bson.M{}
	}
	n, err := coll.CountDocuments(ctx, filter)
	s.observe(entity, "count", err)
	if err != nil {
		return 0, apperrors.Store("count "+entity, err)
	}
	return n, nil
}

func (s *MongoStore) FindByID(ctx context.Context, entity string, id bson.ObjectID, populate []schema.Populate) (bson.M, error) {
	docs, err := s.Find(ctx, entity, bson.M{"_id": id}, FindOptions{Limit: 1, Populate: populate})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (s *MongoStore) FindOne(ctx context.Context, entity string, filter bson.M) (bson.M, error) {
	coll, _, err := s.collection(entity)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	err = coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.observe(entity, "findOne", nil)
		return nil, nil
	}
	s.observe(entity, "findOne", err)
	if err != nil {
		return nil, apperrors.Store("find one "+entity, err)
	}
	return doc, nil
}

// Create stamps identifiers and timestamps on doc and inserts it.
func (s *MongoStore) Create(ctx context.Context, entity string, doc bson.M) (bson.M, error) {
	coll, _, err := s.collection(entity)
	if err != nil {
		return nil, err
	}
	if _, ok := doc["_id"].(bson.ObjectID); !ok {
		doc["_id"] = bson.NewObjectID()
	}
	now := s.now()
	doc["createdAt"] = now
	doc["updatedAt"] = now

	_, err = coll.InsertOne(ctx, doc)
	s.observe(entity, "create", err)
	if err != nil {
		return nil, apperrors.Store("create "+entity, err)
	}
	return doc, nil
}

func (s *MongoStore) FindOneAndUpdate(ctx context.Context, entity string, filter, set bson.M) (bson.M, error) {
	coll, _, err := s.collection(entity)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc bson.M
	err = coll.FindOneAndUpdate(ctx, filter, s.update(set), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.observe(entity, "update", nil)
		return nil, nil
	}
	s.observe(entity, "update", err)
	if err != nil {
		return nil, apperrors.Store("update "+entity, err)
	}
	return doc, nil
}

func (s *MongoStore) UpdateMany(ctx context.Context, entity string, filter, set bson.M) (int64, error) {
	coll, _, err := s.collection(entity)
	if err != nil {
		return 0, err
	}
	res, err := coll.UpdateMany(ctx, filter, s.update(set))
	s.observe(entity, "updateMany", err)
	if err != nil {
		return 0, apperrors.Store("update "+entity, err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) update(set bson.M) bson.M {
	out := bson.M{}
	for k, v := range set {
		if k == "_id" || k == "createdAt" {
			continue
		}
		out[k] = v
	}
	out["updatedAt"] = s.now()
	return bson.M{"$set": out}
}

func (s *MongoStore) DeleteByID(ctx context.Context, entity string, id bson.ObjectID) (bool, error) {
	coll, _, err := s.collection(entity)
	if err != nil {
		return false, err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	s.observe(entity, "delete", err)
	if err != nil {
		return false, apperrors.Store("delete "+entity, err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) DeleteMany(ctx context.Context, entity string, filter bson.M) (int64, error) {
	coll, _, err := s.collection(entity)
	if err != nil {
		return 0, err
	}
	res, err := coll.DeleteMany(ctx, filter)
	s.observe(entity, "deleteMany", err)
	if err != nil {
		return 0, apperrors.Store("delete "+entity, err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Aggregate(ctx context.Context, entity string, pipeline aggregate.Pipeline) ([]bson.M, error) {
	coll, _, err := s.collection(entity)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Aggregate(ctx, []bson.M(pipeline))
	s.observe(entity, "aggregate", err)
	if err != nil {
		s.log.Debug("aggregate failed", zap.String("entity", entity), zap.Any("pipeline", pipeline), zap.Error(err))
		return nil, apperrors.Store("aggregate "+entity, err)
	}
	defer cursor.Close(ctx)

	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperrors.Store("decode "+entity, err)
	}
	return docs, nil
}
