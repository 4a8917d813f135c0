package api_test

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dom/bookshelf-api/internal/auth"
	"github.com/dom/bookshelf-api/internal/domain"
	"github.com/dom/bookshelf-api/internal/testutil"
)

func TestScenario_RegisterThenManageBooks(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp := testutil.DoRequest(t, http.MethodPost, ts.URL("/register"), "", map[string]string{
		"username": "alice",
		"email":    "a@x.com",
		"password": "pw1",
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	var registered testutil.AuthResponse
	testutil.AssertJSONResponse(t, resp, &registered)
	require.NotEmpty(t, registered.Token)
	assert.Equal(t, "alice", registered.Account.Username)
	token := registered.Token

	resp = testutil.DoRequest(t, http.MethodGet, ts.URL("/books"), token, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))

	resp = testutil.DoRequest(t, http.MethodPost, ts.URL("/books"), token, map[string]string{
		"title":  "Dune",
		"author": "Herbert",
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	var created domain.Book
	testutil.AssertJSONResponse(t, resp, &created)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "Dune", created.Title)
	assert.Equal(t, "Herbert", created.Author)

	resp = testutil.DoRequest(t, http.MethodGet, ts.URL("/books/"+created.ID.String()), "", nil)
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
}

func TestProtectedRoutesRejectBeforeStore(t *testing.T) {
	ts := testutil.NewTestServer(t)

	expiredCodec := auth.NewTokenCodec([]byte(ts.Config.JWTSecret), auth.SessionTTL,
		auth.WithClock(func() time.Time { return time.Now().Add(-25 * time.Hour) }))
	expired, _, err := expiredCodec.Issue(uuid.New(), "alice")
	require.NoError(t, err)

	forgedCodec := auth.NewTokenCodec([]byte("not-the-server-secret-0123456789"), auth.SessionTTL)
	forged, _, err := forgedCodec.Issue(uuid.New(), "alice")
	require.NoError(t, err)

	id := uuid.New().String()
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/me"},
		{http.MethodGet, "/books"},
		{http.MethodPost, "/books"},
		{http.MethodGet, "/books/" + id},
		{http.MethodPatch, "/books/" + id},
		{http.MethodDelete, "/books/" + id},
		{http.MethodPost, "/generate-book"},
	}

	credentials := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "malformed prefix", header: "Token abc"},
		{name: "garbage", header: "Bearer abc.def.ghi"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong secret", header: "Bearer " + forged},
	}

	for _, route := range routes {
		for _, cred := range credentials {
			t.Run(route.method+" "+route.path+" "+cred.name, func(t *testing.T) {
				req, err := http.NewRequest(route.method, ts.URL(route.path), nil)
				require.NoError(t, err)
				if cred.header != "" {
					req.Header.Set("Authorization", cred.header)
				}

				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				defer resp.Body.Close()

				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			})
		}
	}

	assert.Zero(t, ts.Store.TotalCalls(), "rejected requests never reach the store")
}

func TestPublicRoutes(t *testing.T) {
	ts := testutil.NewTestServer(t)

	tests := []struct {
		path     string
		wantBody string
	}{
		{path: "/", wantBody: "Works"},
		{path: "/health", wantBody: "OK"},
		{path: "/metrics", wantBody: "bookshelf_"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			// Generate at least one observation so request metrics are exported.
			testutil.DoRequest(t, http.MethodGet, ts.URL("/health"), "", nil)

			resp := testutil.DoRequest(t, http.MethodGet, ts.URL(tt.path), "", nil)
			testutil.AssertStatusCode(t, resp, http.StatusOK)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

func TestStoreFailuresAreInternalErrors(t *testing.T) {
	ts := testutil.NewTestServer(t)
	session := testutil.NewAccountBuilder().BuildAndAuthenticate(t, ts)

	ts.Store.FailWith(domain.ErrPoolExhausted)

	resp := testutil.DoRequest(t, http.MethodGet, ts.URL("/books"), session.Token, nil)
	testutil.AssertErrorResponse(t, resp, http.StatusInternalServerError, "Internal server error")
}

func TestGenerateBook_NotConfigured(t *testing.T) {
	ts := testutil.NewTestServer(t)
	session := testutil.NewAccountBuilder().BuildAndAuthenticate(t, ts)

	resp := testutil.DoRequest(t, http.MethodPost, ts.URL("/generate-book"), session.Token, nil)
	testutil.AssertStatusCode(t, resp, http.StatusServiceUnavailable)
}
