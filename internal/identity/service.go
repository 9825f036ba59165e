// Package identity is the auth adapter: sign-up with email verification,
// sign-in and sign-out over server-side sessions, credential updates, and an
// auth-state subscription for in-process listeners.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"aiformreply-backend/internal/auth"
	"aiformreply-backend/internal/mailer"
	"aiformreply-backend/internal/models"
	"aiformreply-backend/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6

	verificationRateWindow = 10 * time.Minute
	verificationRateLimit  = 5
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrReauthRequired     = errors.New("recent sign-in required, please confirm your password")
	ErrUnauthenticated    = errors.New("not signed in")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrRateLimited        = errors.New("too many verification requests, please try again later")

	ErrVerificationTokenInvalid = errors.New("invalid verification token")
	ErrVerificationTokenExpired = errors.New("verification token has expired")
	ErrVerificationTokenUsed    = errors.New("verification token has already been used")
)

type Options struct {
	JWTSecret       string
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	// ReauthWindow is how long after the last sign-in a password change is
	// allowed without confirming the current password again.
	ReauthWindow time.Duration
	// BaseURL prefixes the verification links sent by email.
	BaseURL string
}

// AuthResult is returned by the operations that open a session.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	User      models.User
	SessionID string
}

type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   repository.VerificationTokenRepository
	mailer   mailer.Mailer
	opts     Options
	log      *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	nextID    uint64
	listeners []subscription
}

func NewService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens repository.VerificationTokenRepository,
	m mailer.Mailer,
	opts Options,
	log *zap.Logger,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		mailer:   m,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Now reads the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		LastSignInAt: now,
		CreatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Delivery is best-effort: the account exists either way and the user can
	// ask for another link.
	if err := s.sendVerification(ctx, user); err != nil {
		s.log.Warn("verification email not sent", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}

	res, err := s.openSession(ctx, user, now)
	if err != nil {
		return nil, err
	}
	s.emit(StateChange{Kind: SignedUp, User: *user, At: now})
	return res, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchSignIn(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("record sign-in: %w", err)
	}
	user.LastSignInAt = now

	res, err := s.openSession(ctx, user, now)
	if err != nil {
		return nil, err
	}
	s.emit(StateChange{Kind: SignedIn, User: *user, At: now})
	return res, nil
}

func (s *Service) SignOut(ctx context.Context, p *Principal) error {
	if err := s.sessions.Revoke(ctx, p.SessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.emit(StateChange{Kind: SignedOut, User: p.User, At: s.now()})
	return nil
}

// Authenticate resolves a bearer token to the signed-in user. Tokens whose
// session was revoked or has expired are rejected.
func (s *Service) Authenticate(ctx context.Context, bearer string) (*Principal, error) {
	now := s.now()
	claims, err := auth.ParseToken(bearer, []byte(s.opts.JWTSecret), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	userID, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || session.Revoked || session.IsExpired(now) || session.UserID != userID {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return &Principal{User: *user, SessionID: session.ID}, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID bson.ObjectID) (*models.User, error) {
	return s.loadUser(ctx, userID)
}

// UpdateEmail changes the sign-in email. Unlike UpdatePassword it does not
// require a recent sign-in.
func (s *Service) UpdateEmail(ctx context.Context, userID bson.ObjectID, newEmail string) (*models.User, error) {
	email, err := normalizeEmail(newEmail)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateEmail(ctx, userID, email, now); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update email: %w", err)
	}
	user.Email = email
	user.EmailVerified = false
	user.UpdatedAt = now

	s.emit(StateChange{Kind: EmailChanged, User: *user, At: now})
	return user, nil
}

// UpdatePassword sets a new password. When the last sign-in is older than
// the reauthentication window it returns ErrReauthRequired and changes
// nothing; the caller must Reauthenticate first.
func (s *Service) UpdatePassword(ctx context.Context, userID bson.ObjectID, newPassword string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	now := s.now()
	if s.NeedsReauth(user, now) {
		return ErrReauthRequired
	}
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash), now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// NeedsReauth reports whether the user's last sign-in is outside the
// reauthentication window.
func (s *Service) NeedsReauth(user *models.User, now time.Time) bool {
	return now.Sub(user.LastSignInAt) > s.opts.ReauthWindow
}

// Reauthenticate confirms the current password and counts as a fresh sign-in.
func (s *Service) Reauthenticate(ctx context.Context, userID bson.ObjectID, password string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	if err := s.users.TouchSignIn(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("record sign-in: %w", err)
	}
	return nil
}

// ResendVerification issues a fresh verification link, at most
// verificationRateLimit per verificationRateWindow per email.
func (s *Service) ResendVerification(ctx context.Context, userID bson.ObjectID) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	count, err := s.tokens.CountRecentByEmail(ctx, user.Email, s.now().Add(-verificationRateWindow))
	if err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}
	if count >= verificationRateLimit {
		return ErrRateLimited
	}
	return s.sendVerification(ctx, user)
}

// VerifyEmail consumes a single-use verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	vt, err := s.tokens.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	if vt == nil {
		return nil, ErrVerificationTokenInvalid
	}
	now := s.now()
	if vt.IsExpired(now) {
		return nil, ErrVerificationTokenExpired
	}
	if vt.IsUsed {
		return nil, ErrVerificationTokenUsed
	}

	if err := s.tokens.Consume(ctx, token, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVerificationTokenUsed
		}
		return nil, fmt.Errorf("consume token: %w", err)
	}

	user, err := s.users.FindByID(ctx, vt.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	// A link sent to a previous address must not verify the current one.
	if user == nil || user.Email != vt.Email {
		return nil, ErrVerificationTokenInvalid
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	user.EmailVerified = true
	return user, nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User) error {
	now := s.now()
	vt := &models.VerificationToken{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(s.opts.VerificationTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, vt); err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}

	link := fmt.Sprintf("%s/auth/verify?token=%s", strings.TrimRight(s.opts.BaseURL, "/"), vt.Token)
	return s.mailer.SendVerification(ctx, user.Email, link)
}

func (s *Service) openSession(ctx context.Context, user *models.User, now time.Time) (*AuthResult, error) {
	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.opts.SessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := auth.GenerateToken(user.ID.Hex(), session.ID, []byte(s.opts.JWTSecret), now, s.opts.SessionTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

func (s *Service) loadUser(ctx context.Context, userID bson.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
