package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Profile is the single per-user document. TrialStart is written when the
// document is created and never changed afterwards.
type Profile struct {
	UserID        bson.ObjectID `bson:"_id" json:"user_id"`
	KnowledgeBase string        `bson:"knowledge_base" json:"knowledge_base"`
	TrialStart    time.Time     `bson:"trial_start" json:"trial_start"`
	UpdatedAt     time.Time     `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
