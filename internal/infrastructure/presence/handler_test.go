package presence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"owlet/internal/core/domain"
	"owlet/internal/core/services"
	"owlet/internal/infrastructure/middleware"
	"owlet/internal/infrastructure/repositories"
	"owlet/pkg/config"
)

type presenceFixture struct {
	server *httptest.Server
	auth   *services.AuthService
	coord  *Coordinator
}

func newPresenceFixture(t *testing.T) *presenceFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	repos := repositories.NewMemorySet()
	logger := zaptest.NewLogger(t).Sugar()

	require.NoError(t, repos.Users.Upsert(context.Background(),
		&domain.User{ID: "u1", Username: "u-one", CreatedAt: time.Now()}))
	require.NoError(t, repos.Users.Upsert(context.Background(),
		&domain.User{ID: "u2", Username: "u-two", CreatedAt: time.Now()}))

	auth := services.NewAuthService("test-secret", time.Hour, repos.Users)
	shards := NewShards()
	coord := NewCoordinator(shards, cfg.Presence.QueryTimeout, nil, logger)
	handler := NewHandler(shards, cfg, nil, logger)

	router := gin.New()
	router.GET("/api/presence/ws", middleware.AuthMiddleware(auth), handler.HandlePresenceSocket)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &presenceFixture{server: srv, auth: auth, coord: coord}
}

func (f *presenceFixture) dial(t *testing.T, identity domain.Identity, status string) *websocket.Conn {
	t.Helper()
	token, err := f.auth.GenerateToken(identity)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/presence/ws?token=" + token
	if status != "" {
		url += "&status=" + status
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *presenceFixture) online(ids ...domain.UserID) map[domain.UserID]bool {
	return f.coord.QueryPresence(context.Background(), ids)
}

func TestPresenceLifecycle(t *testing.T) {
	f := newPresenceFixture(t)

	conn := f.dial(t, domain.Identity{UserID: "u2", Username: "u-two"}, "")
	require.Eventually(t, func() bool {
		return f.online("u2")["u2"]
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return !f.online("u2")["u2"]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvisibleConnectionReadsOffline(t *testing.T) {
	f := newPresenceFixture(t)

	f.dial(t, domain.Identity{UserID: "u1", Username: "u-one"}, "8")
	f.dial(t, domain.Identity{UserID: "u2", Username: "u-two"}, "1")

	require.Eventually(t, func() bool {
		return f.online("u2")["u2"]
	}, 2*time.Second, 10*time.Millisecond)

	online := f.online("u1", "u2")
	assert.True(t, online["u2"])
	assert.False(t, online["u1"])
}

func TestPresenceRejectsPlainHTTP(t *testing.T) {
	f := newPresenceFixture(t)

	token, err := f.auth.GenerateToken(domain.Identity{UserID: "u1", Username: "u-one"})
	require.NoError(t, err)

	resp, err := http.Get(f.server.URL + "/api/presence/ws?token=" + token)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestPresenceRequiresAuth(t *testing.T) {
	f := newPresenceFixture(t)

	base := "ws" + strings.TrimPrefix(f.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(base+"/api/presence/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
