package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Session struct {
	ID        string        `bson:"_id" json:"id"`
	UserID    bson.ObjectID `bson:"user_id" json:"user_id"`
	ExpiresAt time.Time     `bson:"expires_at" json:"expires_at"`
	Revoked   bool          `bson:"revoked" json:"revoked"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
