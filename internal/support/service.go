// Package support records "Report a Problem" submissions from signed-in users.
package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"aiformreply-backend/internal/models"
	"aiformreply-backend/internal/notify"
	"aiformreply-backend/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrEmptyMessage          = errors.New("message is required")
	ErrMissingIdempotencyKey = errors.New("idempotency_key is required")
)

type Service struct {
	reports  repository.ProblemReportRepository
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewService(reports repository.ProblemReportRepository, notifier notify.Notifier, log *zap.Logger) *Service {
	return &Service{
		reports:  reports,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Submit stores a report. A repeated idempotency key returns the stored
// report with created=false and publishes nothing.
func (s *Service) Submit(ctx context.Context, user models.User, message, key string) (report *models.ProblemReport, created bool, err error) {
	if strings.TrimSpace(message) == "" {
		return nil, false, ErrEmptyMessage
	}
	if key == "" {
		return nil, false, ErrMissingIdempotencyKey
	}

	existing, err := s.reports.FindByIdempotencyKey(ctx, user.ID, key)
	if err != nil {
		return nil, false, fmt.Errorf("check idempotency: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	report = &models.ProblemReport{
		UserID:         user.ID,
		Email:          user.Email,
		Message:        message,
		IdempotencyKey: key,
		CreatedAt:      s.now(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent submit of the same key.
			existing, ferr := s.reports.FindByIdempotencyKey(ctx, user.ID, key)
			if ferr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("create report: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.notifier.Publish(context.Background(), formatReport(report)); err != nil {
			s.log.Error("publish problem report", zap.Error(err))
		}
	}()

	return report, true, nil
}

// Wait blocks until background notifications have been published.
func (s *Service) Wait() {
	s.wg.Wait()
}

func formatReport(r *models.ProblemReport) string {
	return "*New Problem Report*\n" +
		"User: `" + r.Email + "` (" + r.UserID.Hex() + ")\n" +
		"Message: " + r.Message
}
