package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup map[uint]*Identity

func (s stubLookup) LookupIdentity(_ context.Context, userID uint) (*Identity, error) {
	if id, ok := s[userID]; ok {
		return id, nil
	}
	return nil, errors.New("not found")
}

func identityEcho(t *testing.T, got **Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorMiddleware(t *testing.T) {
	log, _ := test.NewNullLogger()
	tokens, err := NewTokens(testSecret, time.Hour, time.Hour)
	require.NoError(t, err)

	lookup := stubLookup{5: {UserID: 5, Username: "fresh@x.com", Role: intPtr(1)}}
	authn := NewAuthenticator(log, tokens, lookup)

	access, err := tokens.IssueAccess(Identity{UserID: 5, Username: "stale@x.com"})
	require.NoError(t, err)
	refresh, err := tokens.IssueRefresh(5)
	require.NoError(t, err)
	orphan, err := tokens.IssueAccess(Identity{UserID: 99})
	require.NoError(t, err)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedUser   string
	}{
		{name: "anonymous", header: "", expectedStatus: http.StatusOK},
		{name: "valid token", header: "Bearer " + access, expectedStatus: http.StatusOK, expectedUser: "fresh@x.com"},
		{name: "refresh token", header: "Bearer " + refresh, expectedStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", expectedStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", expectedStatus: http.StatusUnauthorized},
		{name: "deleted user", header: "Bearer " + orphan, expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *Identity
			req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			authn.Middleware(identityEcho(t, &got)).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedUser == "" {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, tt.expectedUser, got.Username)
				assert.Equal(t, 1, *got.Role)
			}
		})
	}
}

func TestRequireIdentity(t *testing.T) {
	handler := RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forms/alice", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"detail":"Authentication credentials were not provided."}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/forms/alice", nil)
	req = req.WithContext(WithIdentity(req.Context(), &Identity{UserID: 1}))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
