package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docchat/internal/conversation"
	"github.com/ashureev/docchat/internal/domain"
	"github.com/ashureev/docchat/internal/identity"
	"github.com/ashureev/docchat/internal/store"
)

const (
	testUser    = "anon_0123456789abcdef0123456789abcdef"
	testSession = "tab-1"
)

var errModelDown = errors.New("model unavailable")

type staticDocs struct{}

func (staticDocs) ContextFor(context.Context, string) string { return "guide text" }

// fakeModel answers with the number of turns it was sent. When holdCall is
// set, that call signals entered and waits for release before answering.
type fakeModel struct {
	mu    sync.Mutex
	fail  bool
	calls int

	holdCall int
	entered  chan struct{}
	release  chan struct{}
}

func (m *fakeModel) Invoke(_ context.Context, turns []domain.Turn) (string, error) {
	m.mu.Lock()
	m.calls++
	hold := m.holdCall != 0 && m.calls == m.holdCall
	fail := m.fail
	m.mu.Unlock()

	if hold {
		close(m.entered)
		<-m.release
	}
	if fail {
		return "", fmt.Errorf("%w: throttled", errModelDown)
	}
	return fmt.Sprintf("reply to %d turns", len(turns)), nil
}

func (m *fakeModel) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func newTestService(t *testing.T, model *fakeModel, repo store.Repository) *Service {
	t.Helper()
	svc := NewService(func() *conversation.Controller {
		return conversation.NewController(staticDocs{}, model, nil)
	}, repo, nil, nil, nil)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func newTestRepo(t *testing.T) *store.SQLiteStore {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// withIdentity stands in for identity.Middleware with a fixed user.
func withIdentity(userID, sessionID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), userID, sessionID)))
		})
	}
}

func newTestRouter(svc *Service, rl *RateLimiter) chi.Router {
	r := chi.NewRouter()
	r.Use(withIdentity(testUser, testSession))
	NewHandler(svc, rl, 1024).RegisterRoutes(r)
	r.Get("/ws/chat", NewWebSocketHandler(svc, nil, rl, "*", true).ServeHTTP)
	return r
}
