package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"aiformreply-backend/internal/identity"
	"aiformreply-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeAuthn struct {
	token string
	p     *identity.Principal
}

func (f fakeAuthn) Authenticate(_ context.Context, bearer string) (*identity.Principal, error) {
	if bearer != f.token {
		return nil, errors.New("bad token")
	}
	return f.p, nil
}

func TestJWTAuth(t *testing.T) {
	p := &identity.Principal{User: models.User{ID: bson.NewObjectID(), Email: "a@example.com"}, SessionID: "s1"}
	h := JWTAuth(fakeAuthn{token: "good", p: p})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := GetPrincipal(r.Context())
		require.NotNil(t, got)
		assert.Equal(t, "s1", got.SessionID)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"good token", "Bearer good", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/profile", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGetPrincipal_Absent(t *testing.T) {
	assert.Nil(t, GetPrincipal(context.Background()))
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mw := RequestLogger(zap.New(core))

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.EqualValues(t, 404, entries[1].ContextMap()["status"])
}
