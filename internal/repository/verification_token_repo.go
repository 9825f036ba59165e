package repository

import (
	"context"
	"errors"
	"time"

	"aiformreply-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type VerificationTokenRepo struct {
	collection *mongo.Collection
}

func NewVerificationTokenRepo(db *mongo.Database) *VerificationTokenRepo {
	return &VerificationTokenRepo{
		collection: db.Collection("verification_tokens"),
	}
}

func (r *VerificationTokenRepo) Create(ctx context.Context, token *models.VerificationToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	result, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	token.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *VerificationTokenRepo) FindByToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	var vt models.VerificationToken
	err := r.collection.FindOne(ctx, bson.M{"token": token}).Decode(&vt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &vt, nil
}

// Consume flips is_used in a single conditional update, so only one caller
// can consume a given token.
func (r *VerificationTokenRepo) Consume(ctx context.Context, token string, at time.Time) error {
	filter := bson.D{
		{Key: "token", Value: token},
		{Key: "is_used", Value: false},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_used", Value: true},
		{Key: "used_at", Value: at},
	}}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRecentByEmail counts tokens issued for email at or after since.
func (r *VerificationTokenRepo) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"email":      email,
		"created_at": bson.M{"$gte": since},
	})
}

// EnsureIndexes: unique token, (email, created_at) for the resend rate limit,
// and a TTL on expires_at.
func (r *VerificationTokenRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
