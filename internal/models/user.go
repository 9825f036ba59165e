package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is an identity known to the auth adapter.
type User struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email         string        `bson:"email" json:"email"`
	PasswordHash  string        `bson:"password_hash" json:"-"`
	EmailVerified bool          `bson:"email_verified" json:"email_verified"`
	LastSignInAt  time.Time     `bson:"last_sign_in_at" json:"last_sign_in_at"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
}
