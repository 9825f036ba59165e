package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"aiformreply-backend/internal/handlers"
	"aiformreply-backend/internal/identity"
	"aiformreply-backend/internal/notify"
	"aiformreply-backend/internal/profile"
	"aiformreply-backend/internal/repository/memory"
	"aiformreply-backend/internal/support"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type fakeMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *fakeMailer) SendVerification(_ context.Context, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *fakeMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.links)
	u, err := url.Parse(m.links[len(m.links)-1])
	require.NoError(t, err)
	return u.Query().Get("token")
}

type fakeSuggester struct {
	out string
	err error
}

func (s *fakeSuggester) Suggest(_ context.Context, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}

type testServer struct {
	handler   http.Handler
	store     *memory.Store
	mailer    *fakeMailer
	suggester *fakeSuggester
	support   *support.Service
	now       time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:     memory.NewStore(),
		mailer:    &fakeMailer{},
		suggester: &fakeSuggester{out: "Reply politely and sign as the owner."},
		now:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return ts.now }
	log := zap.NewNop()

	ids := identity.NewService(ts.store.Users, ts.store.Sessions, ts.store.Tokens, ts.mailer, identity.Options{
		JWTSecret:       "test-secret",
		SessionTTL:      24 * time.Hour,
		VerificationTTL: time.Hour,
		ReauthWindow:    5 * time.Minute,
		BaseURL:         "http://localhost:8080",
	}, log)
	ids.SetClock(clock)

	profiles := profile.NewService(ts.store.Profiles, 30)
	profiles.SetClock(clock)

	ts.support = support.NewService(ts.store.Reports, notify.NewLogNotifier(log), log)

	ts.handler = New(Handlers{
		Auth:     handlers.NewAuthHandler(ids, log),
		Profile:  handlers.NewProfileHandler(profiles, ts.suggester, log),
		Settings: handlers.NewSettingsHandler(ids, log),
		Support:  handlers.NewSupportHandler(ts.support, log),
		Health:   handlers.NewHealthHandler(func(context.Context) error { return nil }, log),
	}, ids, log, Options{CORSOrigins: "*"})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) signUp(t *testing.T, email, password string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res identity.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/profile", "/auth/state"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestSignUp_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.signUp(t, "owner@example.com", "hunter22")

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"duplicate email", map[string]string{"email": "owner@example.com", "password": "hunter22"}, http.StatusConflict, "email_taken"},
		{"weak password", map[string]string{"email": "new@example.com", "password": "123"}, http.StatusBadRequest, "weak_password"},
		{"invalid email", map[string]string{"email": "not-an-email", "password": "hunter22"}, http.StatusBadRequest, ""},
		{"bad body", "just a string", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/auth/signup", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.NotEmpty(t, body["error"])
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
		})
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.signUp(t, "owner@example.com", "hunter22")

	rec := ts.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "owner@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decode(t, rec)["code"])

	rec = ts.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "owner@example.com", "password": "hunter22"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboard_LoadAndSave(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "owner@example.com", "hunter22")

	rec := ts.do(t, http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "owner@example.com", body["email"])
	assert.Equal(t, "", body["knowledge_base"])
	assert.EqualValues(t, 30, body["days_left"])
	assert.EqualValues(t, 30, body["trial_days"])

	rec = ts.do(t, http.MethodPut, "/profile/knowledge-base", token, map[string]string{"knowledge_base": "We ship worldwide."})
	require.Equal(t, http.StatusOK, rec.Code)

	ts.now = ts.now.Add(10 * 24 * time.Hour)
	rec = ts.do(t, http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "We ship worldwide.", body["knowledge_base"])
	assert.EqualValues(t, 20, body["days_left"])
}

func TestAssist(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "owner@example.com", "hunter22")

	t.Run("suggest without saving", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/profile/knowledge-base/assist", token, map[string]interface{}{"knowledge_base": "be nice"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, ts.suggester.out, body["knowledge_base"])
		assert.Equal(t, false, body["saved"])

		p, ok := ts.store.Profiles.Get(mustUserID(t, ts))
		if ok {
			assert.Empty(t, p.KnowledgeBase)
		}
	})

	t.Run("suggest and save", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/profile/knowledge-base/assist", token, map[string]interface{}{"knowledge_base": "be nice", "save": true})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decode(t, rec)["saved"])

		p, ok := ts.store.Profiles.Get(mustUserID(t, ts))
		require.True(t, ok)
		assert.Equal(t, ts.suggester.out, p.KnowledgeBase)
	})

	t.Run("upstream failure", func(t *testing.T) {
		ts.suggester.err = errors.New("connection reset")
		defer func() { ts.suggester.err = nil }()

		rec := ts.do(t, http.MethodPost, "/profile/knowledge-base/assist", token, map[string]interface{}{"knowledge_base": "be nice"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "failed to generate suggestion", decode(t, rec)["error"])
	})
}

func mustUserID(t *testing.T, ts *testServer) bson.ObjectID {
	t.Helper()
	u, err := ts.store.Users.FindByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.ID
}

func TestPasswordChange_RequiresRecentSignIn(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "owner@example.com", "hunter22")

	rec := ts.do(t, http.MethodPatch, "/settings/password", token, map[string]string{"password": "newpass1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ts.now = ts.now.Add(6 * time.Minute)

	rec = ts.do(t, http.MethodGet, "/auth/state", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["password_change_needs_reauth"])

	rec = ts.do(t, http.MethodPatch, "/settings/password", token, map[string]string{"password": "newpass2"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "reauth_required", decode(t, rec)["code"])

	// Email changes are not gated.
	rec = ts.do(t, http.MethodPatch, "/settings/email", token, map[string]string{"email": "owner2@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/auth/reauthenticate", token, map[string]string{"password": "newpass1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPatch, "/settings/password", token, map[string]string{"password": "newpass2"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestVerifyEmail(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "owner@example.com", "hunter22")
	link := "/auth/verify?token=" + ts.mailer.lastToken(t)

	rec := ts.do(t, http.MethodGet, link, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Email verified")

	rec = ts.do(t, http.MethodGet, link, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/auth/verify", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/verification", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignOut_RevokesSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "owner@example.com", "hunter22")

	rec := ts.do(t, http.MethodPost, "/auth/signout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/auth/state", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSupportReports_Idempotent(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "owner@example.com", "hunter22")
	body := map[string]string{"message": "Save button does nothing", "idempotency_key": "k-1"}

	rec := ts.do(t, http.MethodPost, "/support/reports", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode(t, rec)

	rec = ts.do(t, http.MethodPost, "/support/reports", token, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first["id"], decode(t, rec)["id"])

	rec = ts.do(t, http.MethodPost, "/support/reports", token, map[string]string{"message": " ", "idempotency_key": "k-2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.support.Wait()
	assert.Equal(t, 1, ts.store.Reports.Len())
}
