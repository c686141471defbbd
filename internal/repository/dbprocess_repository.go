package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ivaspavlo/staff-management-system/internal/models"
)

// DbProcessRepository records completed seed and migration steps.
type DbProcessRepository struct {
	collection *mongo.Collection
}

func NewDbProcessRepository(database *mongo.Database, collection string) *DbProcessRepository {
	return &DbProcessRepository{collection: database.Collection(collection)}
}

func (r *DbProcessRepository) InitializeIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "processType", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create dbprocess indexes: %w", err)
	}
	return nil
}

// Done reports whether the step already ran.
func (r *DbProcessRepository) Done(ctx context.Context, processType, name string) (bool, error) {
	var p models.DbProcess
	err := r.collection.FindOne(ctx, bson.M{"name": name, "processType": processType}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get db process: %w", err)
	}
	return true, nil
}

func (r *DbProcessRepository) Record(ctx context.Context, processType, name string) error {
	p := models.DbProcess{
		ID:          bson.NewObjectID(),
		Name:        name,
		ProcessType: processType,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := r.collection.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to record db process: %w", err)
	}
	return nil
}
