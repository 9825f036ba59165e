// Package profile owns the per-user dashboard document: the knowledge base
// text and the trial countdown derived from the document's creation time.
package profile

import (
	"context"
	"fmt"
	"time"

	"aiformreply-backend/internal/models"
	"aiformreply-backend/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Dashboard is what the dashboard view renders for a user.
type Dashboard struct {
	Profile   models.Profile
	DaysLeft  int
	TrialDays int
}

type Service struct {
	profiles  repository.ProfileRepository
	trialDays int
	now       func() time.Time
}

func NewService(profiles repository.ProfileRepository, trialDays int) *Service {
	return &Service{
		profiles:  profiles,
		trialDays: trialDays,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Load returns the user's dashboard, creating the profile on first access.
func (s *Service) Load(ctx context.Context, userID bson.ObjectID) (*Dashboard, error) {
	now := s.now()
	p, err := s.profiles.Ensure(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &Dashboard{
		Profile:   *p,
		DaysLeft:  DaysLeft(now, p.TrialStart, s.trialDays),
		TrialDays: s.trialDays,
	}, nil
}

// SaveKnowledgeBase stores text verbatim. Only the knowledge base field is
// written; the trial start is left alone.
func (s *Service) SaveKnowledgeBase(ctx context.Context, userID bson.ObjectID, text string) error {
	if err := s.profiles.MergeKnowledgeBase(ctx, userID, text, s.now()); err != nil {
		return fmt.Errorf("save knowledge base: %w", err)
	}
	return nil
}
