package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dom/bookshelf-api/internal/api/middleware"
	"github.com/dom/bookshelf-api/internal/auth"
)

func TestAuth(t *testing.T) {
	now := time.Now()
	codec := auth.NewTokenCodec([]byte("middleware-test-secret-0123456789"), time.Hour, auth.WithClock(func() time.Time { return now }))
	expiredCodec := auth.NewTokenCodec([]byte("middleware-test-secret-0123456789"), time.Hour, auth.WithClock(func() time.Time { return now.Add(-2 * time.Hour) }))
	otherCodec := auth.NewTokenCodec([]byte("a-completely-different-secret-xyz"), time.Hour)

	accountID := uuid.New()
	valid, _, err := codec.Issue(accountID, "reader")
	require.NoError(t, err)
	expired, _, err := expiredCodec.Issue(accountID, "reader")
	require.NoError(t, err)
	forged, _, err := otherCodec.Issue(accountID, "reader")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "no scheme", header: valid, wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "extra field", header: "Bearer " + valid + " extra", wantStatus: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + forged, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			var gotID uuid.UUID
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				gotID, _ = middleware.GetAccountID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/books", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			middleware.Auth(codec)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, called)
				assert.Equal(t, accountID, gotID)
				return
			}
			assert.False(t, called, "rejected request must not reach the handler")
			assert.Equal(t, `Bearer realm="bookshelf"`, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestClaimsFromContext(t *testing.T) {
	codec := auth.NewTokenCodec([]byte("middleware-test-secret-0123456789"), time.Hour)
	token, _, err := codec.Issue(uuid.New(), "reader")
	require.NoError(t, err)

	var claims *auth.SessionClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ = middleware.ClaimsFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	middleware.Auth(codec)(next).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, claims)
	assert.Equal(t, "reader", claims.Username)

	_, ok := middleware.ClaimsFromContext(req.Context())
	assert.False(t, ok, "claims only exist downstream of the gate")
}
