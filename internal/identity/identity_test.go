package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docchat/internal/store"
)

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "id.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMiddlewareIssuesCookieAndRecordsUser(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	var gotUser, gotSession string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotSession = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	req.Header.Set(SessionHeaderName, "tab-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, isValidAnonID(gotUser))
	assert.Equal(t, "tab-1", gotSession)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AnonCookieName, cookies[0].Name)
	assert.Equal(t, gotUser, cookies[0].Value)
	assert.False(t, cookies[0].Secure)

	user, err := repo.GetUser(context.Background(), gotUser)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, displayName(gotUser), user.Username)
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	const id = "anon_0123456789abcdef0123456789abcdef"

	var gotUser string
	h := Middleware(repo, false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, id, gotUser)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestMiddlewareRejectsForgedCookie(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	var gotUser string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "admin", gotUser)
	assert.True(t, isValidAnonID(gotUser))
}

func TestSessionIDSources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"header", "tab-9", "", "tab-9"},
		{"query fallback", "", "tab-q", "tab-q"},
		{"invalid", "bad id with spaces", "", DefaultSessionIDValue},
		{"missing", "", "", DefaultSessionIDValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := "/ws/chat"
			if tt.query != "" {
				target += "?session_id=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set(SessionHeaderName, tt.header)
			}
			assert.Equal(t, tt.want, sessionIDFromRequest(req))
		})
	}
}

func TestWithIdentity(t *testing.T) {
	t.Parallel()

	ctx := WithIdentity(context.Background(), "anon_0123456789abcdef0123456789abcdef", "")
	assert.Equal(t, "anon_0123456789abcdef0123456789abcdef", UserIDFromContext(ctx))
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(ctx))
	assert.Equal(t, Identity{UserID: "anon_0123456789abcdef0123456789abcdef", SessionID: DefaultSessionIDValue}, FromContext(ctx))
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(context.Background()))
	assert.Empty(t, UserIDFromContext(context.Background()))
}
