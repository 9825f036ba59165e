package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type ProblemReport struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         bson.ObjectID `bson:"user_id" json:"user_id"`
	Email          string        `bson:"email" json:"email"`
	Message        string        `bson:"message" json:"message"`
	IdempotencyKey string        `bson:"idempotency_key" json:"idempotency_key"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
}
