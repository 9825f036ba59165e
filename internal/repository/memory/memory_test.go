package memory

import (
	"context"
	"testing"
	"time"

	"aiformreply-backend/internal/models"
	"aiformreply-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestProfileRepo_EnsureKeepsTrialStart(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepo()
	id := bson.NewObjectID()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	p, err := repo.Ensure(ctx, id, first)
	require.NoError(t, err)
	assert.Equal(t, first, p.TrialStart)
	assert.Empty(t, p.KnowledgeBase)

	p, err = repo.Ensure(ctx, id, first.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, p.TrialStart)
}

func TestProfileRepo_MergeLeavesTrialStart(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepo()
	id := bson.NewObjectID()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Ensure(ctx, id, start)
	require.NoError(t, err)
	require.NoError(t, repo.MergeKnowledgeBase(ctx, id, "hours: 9-5", start.Add(time.Hour)))

	got, ok := repo.Get(id)
	require.True(t, ok)
	assert.Equal(t, "hours: 9-5", got.KnowledgeBase)
	assert.Equal(t, start, got.TrialStart)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()

	require.NoError(t, repo.Create(ctx, &models.User{Email: "a@example.com"}))
	err := repo.Create(ctx, &models.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	other := &models.User{Email: "b@example.com"}
	require.NoError(t, repo.Create(ctx, other))
	err = repo.UpdateEmail(ctx, other.ID, "a@example.com", time.Now())
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	err = repo.TouchSignIn(ctx, bson.NewObjectID(), time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerificationTokenRepo_CountRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationTokenRepo()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &models.VerificationToken{Email: "a@example.com", Token: "t1", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.VerificationToken{Email: "a@example.com", Token: "t2", CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &models.VerificationToken{Email: "b@example.com", Token: "t3", CreatedAt: now}))

	n, err := repo.CountRecentByEmail(ctx, "a@example.com", now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestVerificationTokenRepo_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationTokenRepo()
	require.NoError(t, repo.Create(ctx, &models.VerificationToken{Token: "tok", Email: "a@example.com"}))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Consume(ctx, "tok", at))
	assert.ErrorIs(t, repo.Consume(ctx, "tok", at), repository.ErrNotFound)
	assert.ErrorIs(t, repo.Consume(ctx, "missing", at), repository.ErrNotFound)

	vt, err := repo.FindByToken(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, vt.UsedAt)
	assert.True(t, vt.IsUsed)
	assert.Equal(t, at, *vt.UsedAt)
}

func TestProblemReportRepo_KeysArePerUser(t *testing.T) {
	ctx := context.Background()
	repo := NewProblemReportRepo()
	alice, bob := bson.NewObjectID(), bson.NewObjectID()

	require.NoError(t, repo.Create(ctx, &models.ProblemReport{UserID: alice, IdempotencyKey: "1"}))
	require.NoError(t, repo.Create(ctx, &models.ProblemReport{UserID: bob, IdempotencyKey: "1"}))
	assert.ErrorIs(t, repo.Create(ctx, &models.ProblemReport{UserID: alice, IdempotencyKey: "1"}), repository.ErrDuplicate)

	got, err := repo.FindByIdempotencyKey(ctx, bob, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, bob, got.UserID)

	got, err = repo.FindByIdempotencyKey(ctx, bson.NewObjectID(), "1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
