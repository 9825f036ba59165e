// Package repository defines the storage contracts used by the services and
// their MongoDB implementations. Lookups that find nothing return (nil, nil).
package repository

import (
	"context"
	"errors"
	"time"

	"aiformreply-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrDuplicate = errors.New("duplicate key")
	ErrNotFound  = errors.New("document not found")
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateEmail(ctx context.Context, id bson.ObjectID, email string, at time.Time) error
	UpdatePassword(ctx context.Context, id bson.ObjectID, hash string, at time.Time) error
	MarkEmailVerified(ctx context.Context, id bson.ObjectID, at time.Time) error
	TouchSignIn(ctx context.Context, id bson.ObjectID, at time.Time) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string) error
}

type VerificationTokenRepository interface {
	Create(ctx context.Context, token *models.VerificationToken) error
	FindByToken(ctx context.Context, token string) (*models.VerificationToken, error)
	// Consume marks an unused token as used. It returns ErrNotFound when no
	// unused token matches, including when a concurrent call consumed it first.
	Consume(ctx context.Context, token string, at time.Time) error
	CountRecentByEmail(ctx context.Context, email string, since time.Time) (int64, error)
}

// ProfileRepository stores one profile document per identity.
type ProfileRepository interface {
	// Ensure returns the profile, creating it with an empty knowledge base and
	// TrialStart=now when absent. An existing TrialStart is never rewritten.
	Ensure(ctx context.Context, userID bson.ObjectID, now time.Time) (*models.Profile, error)
	// MergeKnowledgeBase writes only the knowledge base field.
	MergeKnowledgeBase(ctx context.Context, userID bson.ObjectID, text string, now time.Time) error
}

type ProblemReportRepository interface {
	Create(ctx context.Context, report *models.ProblemReport) error
	// FindByIdempotencyKey looks up a report by key within one user's reports.
	FindByIdempotencyKey(ctx context.Context, userID bson.ObjectID, key string) (*models.ProblemReport, error)
}
