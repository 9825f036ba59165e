// Package memory provides in-process implementations of the repository
// contracts. They back the server's --memory mode and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"aiformreply-backend/internal/models"
	"aiformreply-backend/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store bundles one of each repository over shared maps.
type Store struct {
	Users    *UserRepo
	Sessions *SessionRepo
	Tokens   *VerificationTokenRepo
	Profiles *ProfileRepo
	Reports  *ProblemReportRepo
}

func NewStore() *Store {
	return &Store{
		Users:    NewUserRepo(),
		Sessions: NewSessionRepo(),
		Tokens:   NewVerificationTokenRepo(),
		Profiles: NewProfileRepo(),
		Reports:  NewProblemReportRepo(),
	}
}

type UserRepo struct {
	mu    sync.RWMutex
	users map[bson.ObjectID]models.User
}

var _ repository.UserRepository = (*UserRepo)(nil)

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[bson.ObjectID]models.User)}
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepo) UpdateEmail(_ context.Context, id bson.ObjectID, email string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for otherID, u := range r.users {
		if otherID != id && u.Email == email {
			return repository.ErrDuplicate
		}
	}
	return r.update(id, func(u *models.User) {
		u.Email = email
		u.EmailVerified = false
		u.UpdatedAt = at
	})
}

func (r *UserRepo) UpdatePassword(_ context.Context, id bson.ObjectID, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(id, func(u *models.User) {
		u.PasswordHash = hash
		u.UpdatedAt = at
	})
}

func (r *UserRepo) MarkEmailVerified(_ context.Context, id bson.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(id, func(u *models.User) {
		u.EmailVerified = true
		u.UpdatedAt = at
	})
}

func (r *UserRepo) TouchSignIn(_ context.Context, id bson.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(id, func(u *models.User) {
		u.LastSignInAt = at
	})
}

// update must be called with mu held.
func (r *UserRepo) update(id bson.ObjectID, fn func(*models.User)) error {
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.users[id] = u
	return nil
}

type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

var _ repository.SessionRepository = (*SessionRepo)(nil)

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]models.Session)}
}

func (r *SessionRepo) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; ok {
		return repository.ErrDuplicate
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepo) FindByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SessionRepo) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Revoked = true
	r.sessions[id] = s
	return nil
}

type VerificationTokenRepo struct {
	mu     sync.RWMutex
	tokens map[string]models.VerificationToken
}

var _ repository.VerificationTokenRepository = (*VerificationTokenRepo)(nil)

func NewVerificationTokenRepo() *VerificationTokenRepo {
	return &VerificationTokenRepo{tokens: make(map[string]models.VerificationToken)}
}

func (r *VerificationTokenRepo) Create(_ context.Context, token *models.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token.Token]; ok {
		return repository.ErrDuplicate
	}
	if token.ID.IsZero() {
		token.ID = bson.NewObjectID()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.tokens[token.Token] = *token
	return nil
}

func (r *VerificationTokenRepo) FindByToken(_ context.Context, token string) (*models.VerificationToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *VerificationTokenRepo) Consume(_ context.Context, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.IsUsed {
		return repository.ErrNotFound
	}
	t.IsUsed = true
	t.UsedAt = &at
	r.tokens[token] = t
	return nil
}

func (r *VerificationTokenRepo) CountRecentByEmail(_ context.Context, email string, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, t := range r.tokens {
		if t.Email == email && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type ProfileRepo struct {
	mu       sync.RWMutex
	profiles map[bson.ObjectID]models.Profile
}

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{profiles: make(map[bson.ObjectID]models.Profile)}
}

func (r *ProfileRepo) Ensure(_ context.Context, userID bson.ObjectID, now time.Time) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		p = models.Profile{UserID: userID, TrialStart: now}
		r.profiles[userID] = p
	}
	return &p, nil
}

func (r *ProfileRepo) MergeKnowledgeBase(_ context.Context, userID bson.ObjectID, text string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		p = models.Profile{UserID: userID, TrialStart: now}
	}
	p.KnowledgeBase = text
	p.UpdatedAt = now
	r.profiles[userID] = p
	return nil
}

// Get returns a copy of the stored profile without creating one.
func (r *ProfileRepo) Get(userID bson.ObjectID) (models.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	return p, ok
}

type ProblemReportRepo struct {
	mu      sync.RWMutex
	reports []models.ProblemReport
}

var _ repository.ProblemReportRepository = (*ProblemReportRepo)(nil)

func NewProblemReportRepo() *ProblemReportRepo {
	return &ProblemReportRepo{}
}

func (r *ProblemReportRepo) Create(_ context.Context, report *models.ProblemReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reports {
		if report.IdempotencyKey != "" && existing.UserID == report.UserID && existing.IdempotencyKey == report.IdempotencyKey {
			return repository.ErrDuplicate
		}
	}
	if report.ID.IsZero() {
		report.ID = bson.NewObjectID()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	r.reports = append(r.reports, *report)
	return nil
}

func (r *ProblemReportRepo) FindByIdempotencyKey(_ context.Context, userID bson.ObjectID, key string) (*models.ProblemReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rep := range r.reports {
		if rep.UserID == userID && rep.IdempotencyKey == key {
			return &rep, nil
		}
	}
	return nil, nil
}

// Len reports how many problem reports are stored.
func (r *ProblemReportRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reports)
}
