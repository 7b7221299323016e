package socket

import (
	"context"
	"encoding/json"
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

type socketFixture struct {
	server    *httptest.Server
	auth      *services.AuthService
	registry  *Registry
	repos     *repositories.Set
	channelID domain.ChannelID
	dmID      domain.ChannelID
}

func newSocketFixture(t *testing.T) *socketFixture {
	return newSocketFixtureWithPing(t, 100*time.Millisecond)
}

func newSocketFixtureWithPing(t *testing.T, pingInterval time.Duration) *socketFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Socket.PingInterval = pingInterval
	cfg.Socket.PongTimeout = 5 * time.Second

	repos := repositories.NewMemorySet()
	logger := zaptest.NewLogger(t).Sugar()

	now := time.Now()
	require.NoError(t, repos.Users.Upsert(ctx, &domain.User{ID: "alice1", Username: "alice", CreatedAt: now}))
	require.NoError(t, repos.Users.Upsert(ctx, &domain.User{ID: "bob2", Username: "bob", CreatedAt: now}))
	require.NoError(t, repos.Users.Upsert(ctx, &domain.User{ID: "carol3", Username: "carol", CreatedAt: now}))

	server := &domain.Server{ID: "srv1", Name: "test", OwnerID: "alice1", CreatedAt: now}
	role := &domain.Role{ID: "role1", ServerID: server.ID, Name: "@everyone",
		Permissions: domain.PermViewChannel | domain.PermSendMessages, Position: 0}
	channel := &domain.Channel{ID: "chan1", ServerID: server.ID, Name: "general", Type: domain.ChannelTypeText, CreatedAt: now}
	member := &domain.Member{ServerID: server.ID, UserID: "alice1", RoleID: role.ID, JoinedAt: now}
	require.NoError(t, repos.Servers.Create(ctx, server, []*domain.Role{role}, channel, member))
	require.NoError(t, repos.Members.Add(ctx, &domain.Member{ServerID: server.ID, UserID: "bob2", RoleID: role.ID, JoinedAt: now}))
	require.NoError(t, repos.Members.Add(ctx, &domain.Member{ServerID: server.ID, UserID: "carol3", RoleID: role.ID, JoinedAt: now}))

	dm := &domain.Channel{ID: "dm1", Name: "", Type: domain.ChannelTypeDM, CreatedAt: now}
	require.NoError(t, repos.Channels.CreateDirect(ctx, dm, []domain.UserID{"alice1", "bob2"}))

	auth := services.NewAuthService("test-secret", time.Hour, repos.Users)
	perms := services.NewPermissionService(repos.Servers, repos.Channels, repos.Members, repos.Overrides)

	registry := NewRegistry(cfg.Socket.WriteTimeout, nil, logger)
	handler := NewHandler(registry, repos.Channels, perms, cfg, nil, logger)

	router := gin.New()
	router.GET("/api/channels/:channelID/ws", middleware.AuthMiddleware(auth), handler.HandleChannelSocket)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &socketFixture{
		server:    srv,
		auth:      auth,
		registry:  registry,
		repos:     repos,
		channelID: channel.ID,
		dmID:      dm.ID,
	}
}

func (f *socketFixture) wsURL(channelID domain.ChannelID, token string) string {
	base := "ws" + strings.TrimPrefix(f.server.URL, "http")
	return base + "/api/channels/" + string(channelID) + "/ws?token=" + token
}

func (f *socketFixture) token(t *testing.T, identity domain.Identity) string {
	t.Helper()
	token, err := f.auth.GenerateToken(identity)
	require.NoError(t, err)
	return token
}

func (f *socketFixture) dial(t *testing.T, channelID domain.ChannelID, identity domain.Identity) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(channelID, f.token(t, identity)), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event domain.Event
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

var alice = domain.Identity{UserID: "alice1", Username: "alice"}
var bob = domain.Identity{UserID: "bob2", Username: "bob"}
var carol = domain.Identity{UserID: "carol3", Username: "carol"}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	f := newSocketFixture(t)

	conns := []*websocket.Conn{
		f.dial(t, f.channelID, alice),
		f.dial(t, f.channelID, bob),
		f.dial(t, f.channelID, carol),
	}
	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.channelID) == 3
	}, 2*time.Second, 10*time.Millisecond)

	f.registry.Broadcast(f.channelID, domain.Event{
		Type:    domain.EventNewMessage,
		Payload: map[string]string{"message_id": "m1"},
	})

	for _, conn := range conns {
		event := readEvent(t, conn)
		assert.Equal(t, domain.EventNewMessage, event.Type)
		assert.NotNil(t, event.Payload)
		assert.Nil(t, event.Data)
	}
}

func TestTypingFanOutExcludesSender(t *testing.T) {
	f := newSocketFixture(t)

	sender := f.dial(t, f.channelID, alice)
	receiver := f.dial(t, f.channelID, bob)
	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.channelID) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteJSON(map[string]string{"type": domain.EventTypingStart}))

	event := readEvent(t, receiver)
	assert.Equal(t, domain.EventTypingUpdate, event.Type)
	payload, ok := event.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice1", payload["user_id"])
	assert.Equal(t, "alice", payload["username"])
	assert.Equal(t, true, payload["is_typing"])

	// The sender must not hear its own typing indicator. Pings are
	// control frames and do not count as messages.
	require.NoError(t, sender.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := sender.ReadMessage()
	assert.Error(t, err)
}

func TestTypingStopClearsIndicator(t *testing.T) {
	f := newSocketFixture(t)

	sender := f.dial(t, f.channelID, alice)
	receiver := f.dial(t, f.channelID, bob)
	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.channelID) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteJSON(map[string]string{"type": domain.EventTypingStop}))

	event := readEvent(t, receiver)
	assert.Equal(t, domain.EventTypingUpdate, event.Type)
	payload, ok := event.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, payload["is_typing"])
}

func TestDirectChannelUsesDataEnvelope(t *testing.T) {
	f := newSocketFixture(t)

	sender := f.dial(t, f.dmID, alice)
	receiver := f.dial(t, f.dmID, bob)
	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.dmID) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteJSON(map[string]string{"type": domain.EventTypingStart}))

	event := readEvent(t, receiver)
	assert.Equal(t, domain.EventTypingUpdate, event.Type)
	assert.Nil(t, event.Payload)
	assert.NotNil(t, event.Data)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	f := newSocketFixture(t)

	sender := f.dial(t, f.channelID, alice)
	receiver := f.dial(t, f.channelID, bob)
	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.channelID) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, sender.WriteJSON(map[string]string{"type": domain.EventTypingStart}))

	// The malformed frame is swallowed; the valid one still arrives.
	event := readEvent(t, receiver)
	assert.Equal(t, domain.EventTypingUpdate, event.Type)

	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.channelID) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastSurvivesClosedConnection(t *testing.T) {
	f := newSocketFixture(t)

	first := f.dial(t, f.channelID, alice)
	second := f.dial(t, f.channelID, bob)
	third := f.dial(t, f.channelID, carol)
	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.channelID) == 3
	}, 2*time.Second, 10*time.Millisecond)

	second.Close()
	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.channelID) == 2
	}, 2*time.Second, 10*time.Millisecond)

	f.registry.Broadcast(f.channelID, domain.Event{
		Type:    domain.EventNewMessage,
		Payload: map[string]string{"message_id": "m2"},
	})

	for _, conn := range []*websocket.Conn{first, third} {
		event := readEvent(t, conn)
		assert.Equal(t, domain.EventNewMessage, event.Type)
	}
	assert.Equal(t, 2, f.registry.ConnectionCount(f.channelID))
}

func TestPingsDoNotDisruptConcurrentBroadcasts(t *testing.T) {
	f := newSocketFixtureWithPing(t, time.Millisecond)

	conn := f.dial(t, f.channelID, alice)
	require.Eventually(t, func() bool {
		return f.registry.ConnectionCount(f.channelID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Broadcasts come from the session actor while the serve loop keeps
	// pinging every millisecond; both write to the same connection.
	const broadcasts = 500
	go func() {
		for i := 0; i < broadcasts; i++ {
			f.registry.Broadcast(f.channelID, domain.Event{
				Type:    domain.EventNewMessage,
				Payload: map[string]string{"message_id": "m1"},
			})
		}
	}()

	for i := 0; i < broadcasts; i++ {
		event := readEvent(t, conn)
		assert.Equal(t, domain.EventNewMessage, event.Type)
	}
	assert.Equal(t, 1, f.registry.ConnectionCount(f.channelID))
}

func TestSessionRetiresWhenEmpty(t *testing.T) {
	f := newSocketFixture(t)

	conn := f.dial(t, f.channelID, alice)
	require.Eventually(t, func() bool {
		return f.registry.SessionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return f.registry.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPlainHTTPGetsUpgradeRequired(t *testing.T) {
	f := newSocketFixture(t)

	url := f.server.URL + "/api/channels/" + string(f.channelID) + "/ws?token=" + f.token(t, alice)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestMissingTokenIsRejected(t *testing.T) {
	f := newSocketFixture(t)

	base := "ws" + strings.TrimPrefix(f.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(base+"/api/channels/chan1/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnknownChannelIsRejected(t *testing.T) {
	f := newSocketFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("missing", f.token(t, alice)), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDirectChannelRejectsOutsiders(t *testing.T) {
	f := newSocketFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(f.dmID, f.token(t, carol)), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServerChannelRequiresViewPermission(t *testing.T) {
	f := newSocketFixture(t)

	outsider := domain.Identity{UserID: "dave4", Username: "dave"}
	require.NoError(t, f.repos.Users.Upsert(context.Background(),
		&domain.User{ID: "dave4", Username: "dave", CreatedAt: time.Now()}))

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(f.channelID, f.token(t, outsider)), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
