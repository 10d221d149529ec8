package identity

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const credentialCollectionName = "credentials"

// storedCredential is the persisted form; secrets only ever leave this
// package hashed.
type storedCredential struct {
	UID        string    `bson:"_id"`
	Email      string    `bson:"email"`
	SecretHash string    `bson:"secretHash"`
	CreatedAt  time.Time `bson:"createdAt"`
}

// mongoProvider implements Provider over a credentials collection with a
// unique email index. That index is what makes email uniqueness authoritative.
type mongoProvider struct {
	collection *mongo.Collection
}

// NewMongoProvider creates a Provider backed by the given database.
func NewMongoProvider(db *mongo.Database) Provider {
	return &mongoProvider{
		collection: db.Collection(credentialCollectionName),
	}
}

func (p *mongoProvider) CreateCredential(ctx context.Context, email, secret string) (string, error) {
	if email == "" || secret == "" {
		return "", errors.New("identity: email and secret are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	cred := storedCredential{
		UID:        primitive.NewObjectID().Hex(),
		Email:      email,
		SecretHash: string(hash),
		CreatedAt:  time.Now().UTC(),
	}

	if _, err := p.collection.InsertOne(ctx, cred); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrEmailAlreadyInUse
		}
		return "", err
	}
	return cred.UID, nil
}

func (p *mongoProvider) LookupByEmail(ctx context.Context, email string) (*Credential, error) {
	var cred storedCredential
	err := p.collection.FindOne(ctx, bson.M{"email": email}).Decode(&cred)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Credential{UID: cred.UID, Email: cred.Email, CreatedAt: cred.CreatedAt}, nil
}

func (p *mongoProvider) VerifySecret(ctx context.Context, email, secret string) (*Credential, error) {
	var cred storedCredential
	err := p.collection.FindOne(ctx, bson.M{"email": email}).Decode(&cred)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)); err != nil {
		return nil, ErrBadCredentials
	}
	return &Credential{UID: cred.UID, Email: cred.Email, CreatedAt: cred.CreatedAt}, nil
}

func (p *mongoProvider) UpdateSecret(ctx context.Context, uid, newSecret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newSecret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	result, err := p.collection.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$set": bson.M{"secretHash": string(hash)}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *mongoProvider) DeleteCredential(ctx context.Context, uid string) error {
	result, err := p.collection.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureCredentialIndexes creates the unique email index backing
// ErrEmailAlreadyInUse. Call once during application startup.
func EnsureCredentialIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(credentialCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
