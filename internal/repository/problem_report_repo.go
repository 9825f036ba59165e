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

type ProblemReportRepo struct {
	collection *mongo.Collection
}

func NewProblemReportRepo(db *mongo.Database) *ProblemReportRepo {
	return &ProblemReportRepo{
		collection: db.Collection("problem_reports"),
	}
}

func (r *ProblemReportRepo) Create(ctx context.Context, report *models.ProblemReport) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	result, err := r.collection.InsertOne(ctx, report)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	report.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// FindByIdempotencyKey returns the user's report submitted under key, if any.
// Keys are scoped per user, so another user's report is never returned.
func (r *ProblemReportRepo) FindByIdempotencyKey(ctx context.Context, userID bson.ObjectID, key string) (*models.ProblemReport, error) {
	filter := bson.D{
		{Key: "user_id", Value: userID},
		{Key: "idempotency_key", Value: key},
	}
	var report models.ProblemReport
	err := r.collection.FindOne(ctx, filter).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

// EnsureIndexes makes (user_id, idempotency_key) unique. The compound index
// also serves lookups by user alone.
func (r *ProblemReportRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "idempotency_key", Value: 1},
			},
			Options: options.Index().SetName("user_idempotency_key").SetUnique(true),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
