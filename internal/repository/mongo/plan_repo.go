package mongo

import (
	"context"
	"errors"
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planCollectionName = "plans"

// mongoPlanRepository implements repository.PlanRepository using MongoDB.
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new instance of mongoPlanRepository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

func (r *mongoPlanRepository) GetByID(ctx context.Context, planID string) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.collection.FindOne(ctx, bson.M{"_id": planID}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *mongoPlanRepository) List(ctx context.Context) ([]domain.Plan, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	plans := []domain.Plan{}
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// AdjustOccupancy applies max(occupancyCount+delta, 0) in a single
// FindOneAndUpdate against the plan document. The pipeline form makes the
// read-compute-write a single atomic operation on the server, so concurrent
// adjustments to the same plan serialize rather than lost-update.
func (r *mongoPlanRepository) AdjustOccupancy(ctx context.Context, planID string, delta int) (int, error) {
	update := clampedCounterUpdate("occupancyCount", delta)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var plan domain.Plan
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": planID}, update, opts).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return plan.OccupancyCount, nil
}

func (r *mongoPlanRepository) SetOccupancy(ctx context.Context, planID string, count int) error {
	if count < 0 {
		count = 0
	}
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": planID},
		bson.M{"$set": bson.M{"occupancyCount": count}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
