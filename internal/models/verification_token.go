package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// VerificationToken is a single-use email verification link token.
type VerificationToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    bson.ObjectID `bson:"user_id" json:"user_id"`
	Email     string        `bson:"email" json:"email"`
	Token     string        `bson:"token" json:"token"`
	ExpiresAt time.Time     `bson:"expires_at" json:"expires_at"`
	IsUsed    bool          `bson:"is_used" json:"is_used"`
	UsedAt    *time.Time    `bson:"used_at,omitempty" json:"used_at,omitempty"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}

func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
