package mongo

import (
	"context"
	"errors"
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/repository"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	trainerCollectionName  = "trainers"
	customerCollectionName = "customers"
)

// mongoAccountRepository implements repository.AccountRepository using MongoDB.
// Each role gets its own collection so that email uniqueness is enforced per
// namespace, matching the way the profile store is queried.
type mongoAccountRepository struct {
	trainers  *mongo.Collection
	customers *mongo.Collection
}

// NewMongoAccountRepository creates a new instance of mongoAccountRepository.
// It expects a connected *mongo.Database instance.
func NewMongoAccountRepository(db *mongo.Database) repository.AccountRepository {
	return &mongoAccountRepository{
		trainers:  db.Collection(trainerCollectionName),
		customers: db.Collection(customerCollectionName),
	}
}

func (r *mongoAccountRepository) collection(role domain.Role) *mongo.Collection {
	if role == domain.RoleTrainer {
		return r.trainers
	}
	return r.customers
}

// Create inserts a new profile record. The account ID is caller-supplied and
// used as the document key, so a duplicate insert fails on _id.
func (r *mongoAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if account.ID == "" || account.Email == "" || account.Role == "" {
		return errors.New("account id, email, and role are required")
	}

	_, err := r.collection(account.Role).InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *mongoAccountRepository) GetByID(ctx context.Context, role domain.Role, id string) (*domain.Account, error) {
	var account domain.Account
	err := r.collection(role).FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *mongoAccountRepository) GetByEmail(ctx context.Context, role domain.Role, email string) (*domain.Account, error) {
	var account domain.Account
	err := r.collection(role).FindOne(ctx, bson.M{"email": email}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *mongoAccountRepository) List(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	cursor, err := r.collection(role).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	accounts := []domain.Account{}
	if err = cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListByTrainer retrieves all customer profiles referencing the given trainer.
func (r *mongoAccountRepository) ListByTrainer(ctx context.Context, trainerID string) ([]domain.Account, error) {
	cursor, err := r.customers.Find(ctx, bson.M{"trainerId": trainerID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	customers := []domain.Account{}
	if err = cursor.All(ctx, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// UpdateFields applies a partial update; only non-nil fields are written.
// This is a plain read-modify-write $set, not the atomic counter path.
func (r *mongoAccountRepository) UpdateFields(ctx context.Context, role domain.Role, id string, update repository.ProfileUpdate) error {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.PhoneNumber != nil {
		set["phoneNumber"] = *update.PhoneNumber
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.PlanID != nil {
		set["planId"] = *update.PlanID
	}
	if update.ExpirationAt != nil {
		set["expirationAt"] = *update.ExpirationAt
	}
	if update.ImageKey != nil {
		set["imageKey"] = *update.ImageKey
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.FirstLogin != nil {
		set["firstLogin"] = *update.FirstLogin
	}
	if len(set) == 0 {
		return nil
	}

	result, err := r.collection(role).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoAccountRepository) SetMembershipStatus(ctx context.Context, role domain.Role, id, status string) error {
	result, err := r.collection(role).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"membershipStatus": status}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoAccountRepository) Delete(ctx context.Context, role domain.Role, id string) error {
	result, err := r.collection(role).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoAccountRepository) CountByPlan(ctx context.Context, role domain.Role, planID string) (int64, error) {
	return r.collection(role).CountDocuments(ctx, bson.M{"planId": planID})
}

// AdjustTraineeCount applies max(traineeCount+delta, 0) as a single
// FindOneAndUpdate with an aggregation pipeline, so two concurrent
// adjustments serialize inside the store instead of lost-updating.
func (r *mongoAccountRepository) AdjustTraineeCount(ctx context.Context, trainerID string, delta int) (int, error) {
	update := clampedCounterUpdate("traineeCount", delta)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var trainer domain.Account
	err := r.trainers.FindOneAndUpdate(ctx, bson.M{"_id": trainerID}, update, opts).Decode(&trainer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return trainer.TraineeCount, nil
}

func (r *mongoAccountRepository) GetMeasurements(ctx context.Context, customerID string) ([]domain.MeasurementEntry, error) {
	customer, err := r.GetByID(ctx, domain.RoleCustomer, customerID)
	if err != nil {
		return nil, err
	}
	if customer.Measurements == nil {
		return []domain.MeasurementEntry{}, nil
	}
	return customer.Measurements, nil
}

func (r *mongoAccountRepository) ReplaceMeasurements(ctx context.Context, customerID string, entries []domain.MeasurementEntry) error {
	result, err := r.customers.UpdateOne(ctx,
		bson.M{"_id": customerID},
		bson.M{"$set": bson.M{"measurements": entries}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetPlanDocument stores the object key for one kind and refreshes both plan
// timestamps unconditionally, matching how uploads have always behaved.
func (r *mongoAccountRepository) SetPlanDocument(ctx context.Context, customerID string, kind domain.DocumentKind, objectKey string, updatedAt time.Time) error {
	set := bson.M{
		"trainingPlanUpdatedAt": updatedAt,
		"foodPlanUpdatedAt":     updatedAt,
	}
	switch kind {
	case domain.DocumentTrainingPlan:
		set["trainingPlanKey"] = objectKey
	case domain.DocumentFoodPlan:
		set["foodPlanKey"] = objectKey
	default:
		return errors.New("unknown document kind")
	}

	result, err := r.customers.UpdateOne(ctx, bson.M{"_id": customerID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// clampedCounterUpdate builds the pipeline update shared by every counter in
// the system: newValue = max(current + delta, 0), with a missing counter
// treated as zero.
func clampedCounterUpdate(field string, delta int) mongo.Pipeline {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}}
	return mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{
			{Key: "$max", Value: bson.A{
				bson.D{{Key: "$add", Value: bson.A{current, delta}}},
				0,
			}},
		}}}}},
	}
}

// EnsureAccountIndexes creates the indexes for both profile collections.
// Call this once during application startup.
func EnsureAccountIndexes(ctx context.Context, db *mongo.Database) error {
	emailUnique := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	if _, err := db.Collection(trainerCollectionName).Indexes().CreateOne(ctx, emailUnique); err != nil {
		return err
	}

	customerIndexes := []mongo.IndexModel{
		emailUnique,
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "planId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := db.Collection(customerCollectionName).Indexes().CreateMany(ctx, customerIndexes)
	return err
}
