package repository

import (
	"context"
	"time"

	"aiformreply-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ProfileRepo keys profiles by the owning user's ID, so the store itself
// enforces one document per identity.
type ProfileRepo struct {
	collection *mongo.Collection
}

func NewProfileRepo(db *mongo.Database) *ProfileRepo {
	return &ProfileRepo{
		collection: db.Collection("profiles"),
	}
}

func (r *ProfileRepo) Ensure(ctx context.Context, userID bson.ObjectID, now time.Time) (*models.Profile, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var profile models.Profile
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{
		"$setOnInsert": bson.M{
			"knowledge_base": "",
			"trial_start":    now,
		},
	}, opts).Decode(&profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepo) MergeKnowledgeBase(ctx context.Context, userID bson.ObjectID, text string, now time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{
			"knowledge_base": text,
			"updated_at":     now,
		},
		// A save that races ahead of the first dashboard load still starts the trial.
		"$setOnInsert": bson.M{"trial_start": now},
	}, options.UpdateOne().SetUpsert(true))
	return err
}
