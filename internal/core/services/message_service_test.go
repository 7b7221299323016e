package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"owlet/internal/core/domain"
	"owlet/internal/infrastructure/repositories"
	"owlet/pkg/snowflake"
)

// recordingBroadcaster captures fan-out calls for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []struct {
		ChannelID domain.ChannelID
		Event     domain.Event
	}
}

func (b *recordingBroadcaster) Broadcast(channelID domain.ChannelID, event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, struct {
		ChannelID domain.ChannelID
		Event     domain.Event
	}{channelID, event})
}

func (b *recordingBroadcaster) last(t *testing.T) (domain.ChannelID, domain.Event) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.events)
	entry := b.events[len(b.events)-1]
	return entry.ChannelID, entry.Event
}

type noPresence struct{}

func (noPresence) QueryPresence(ctx context.Context, ids []domain.UserID) map[domain.UserID]bool {
	return map[domain.UserID]bool{}
}

type messageFixture struct {
	repos       *repositories.Set
	broadcaster *recordingBroadcaster
	service     *MessageService
	serverID    domain.ServerID
	channelID   domain.ChannelID
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	ctx := context.Background()
	repos := repositories.NewMemorySet()
	broadcaster := &recordingBroadcaster{}
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	perms := NewPermissionService(repos.Servers, repos.Channels, repos.Members, repos.Overrides)
	service := NewMessageService(repos.Messages, repos.Channels, repos.Users, perms, node, broadcaster,
		zaptest.NewLogger(t).Sugar())

	now := time.Now()
	require.NoError(t, repos.Users.Upsert(ctx, &domain.User{ID: "alice1", Username: "alice", CreatedAt: now}))
	require.NoError(t, repos.Users.Upsert(ctx, &domain.User{ID: "bob2", Username: "bob", CreatedAt: now}))

	server := &domain.Server{ID: "srv1", Name: "test", OwnerID: "alice1", CreatedAt: now}
	role := &domain.Role{ID: "role1", ServerID: server.ID, Name: "@everyone",
		Permissions: domain.PermViewChannel | domain.PermSendMessages, Position: 0}
	channel := &domain.Channel{ID: "chan1", ServerID: server.ID, Name: "general", Type: domain.ChannelTypeText, CreatedAt: now}
	member := &domain.Member{ServerID: server.ID, UserID: "alice1", RoleID: role.ID, JoinedAt: now}
	require.NoError(t, repos.Servers.Create(ctx, server, []*domain.Role{role}, channel, member))
	require.NoError(t, repos.Members.Add(ctx, &domain.Member{ServerID: server.ID, UserID: "bob2", RoleID: role.ID, JoinedAt: now}))

	return &messageFixture{
		repos:       repos,
		broadcaster: broadcaster,
		service:     service,
		serverID:    server.ID,
		channelID:   channel.ID,
	}
}

func TestSendPersistsThenBroadcasts(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	payload, err := f.service.Send(ctx, "alice1", f.channelID, "hello", "")
	require.NoError(t, err)
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, "alice", payload.Author.Username)

	stored, err := f.repos.Messages.GetByID(ctx, payload.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Content)

	channelID, event := f.broadcaster.last(t)
	assert.Equal(t, f.channelID, channelID)
	assert.Equal(t, domain.EventNewMessage, event.Type)
	assert.NotNil(t, event.Payload, "server channels use the payload field")
	assert.Nil(t, event.Data)
}

func TestSendWithoutPermission(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.service.Send(context.Background(), "stranger", f.channelID, "hi", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSendEmptyContent(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.service.Send(context.Background(), "alice1", f.channelID, "   ", "")
	assert.Error(t, err)
}

func TestEditAuthorOnly(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	sent, err := f.service.Send(ctx, "alice1", f.channelID, "original", "")
	require.NoError(t, err)

	_, err = f.service.Edit(ctx, "bob2", sent.ID, "hijacked")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	updated, err := f.service.Edit(ctx, "alice1", sent.ID, "fixed")
	require.NoError(t, err)
	assert.True(t, updated.IsEdited)

	_, event := f.broadcaster.last(t)
	assert.Equal(t, domain.EventMessageUpdate, event.Type)
}

func TestDeleteByModerator(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	sent, err := f.service.Send(ctx, "bob2", f.channelID, "spam", "")
	require.NoError(t, err)

	// bob2's role has no ManageMessages, so another plain member fails.
	_, err = f.service.Delete(ctx, "alice1", sent.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	modRole := &domain.Role{ID: "role2", ServerID: f.serverID, Name: "mod",
		Permissions: domain.PermViewChannel | domain.PermSendMessages | domain.PermManageMessages, Position: 5}
	require.NoError(t, f.repos.Roles.Create(ctx, modRole))
	require.NoError(t, f.repos.Members.SetRole(ctx, f.serverID, "alice1", modRole.ID))

	payload, err := f.service.Delete(ctx, "alice1", sent.ID)
	require.NoError(t, err)
	assert.True(t, payload.IsDeleted)

	_, event := f.broadcaster.last(t)
	assert.Equal(t, domain.EventMessageDelete, event.Type)
}

func TestHistorySanitizesDeleted(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	first, err := f.service.Send(ctx, "alice1", f.channelID, "first", "")
	require.NoError(t, err)
	_, err = f.service.Send(ctx, "alice1", f.channelID, "second", "")
	require.NoError(t, err)

	_, err = f.service.Delete(ctx, "alice1", first.ID)
	require.NoError(t, err)

	views, err := f.service.History(ctx, "bob2", f.channelID, "", 10)
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Newest first.
	assert.Equal(t, "second", views[0].Content)
	assert.True(t, views[1].IsDeleted)
	assert.Empty(t, views[1].Content, "deleted content never leaves the server")
}

func TestHistoryCursorPagination(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	var ids []domain.MessageID
	for _, content := range []string{"one", "two", "three"} {
		sent, err := f.service.Send(ctx, "alice1", f.channelID, content, "")
		require.NoError(t, err)
		ids = append(ids, sent.ID)
	}

	page, err := f.service.History(ctx, "alice1", f.channelID, ids[2], 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "two", page[0].Content)
	assert.Equal(t, "one", page[1].Content)
}

func TestSearchMatchesContentSubstring(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	for _, content := range []string{"deploy went fine", "Deploy broke again", "lunch plans"} {
		_, err := f.service.Send(ctx, "alice1", f.channelID, content, "")
		require.NoError(t, err)
	}

	views, err := f.service.Search(ctx, "bob2", f.channelID, "deploy", 10)
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Newest first, case-insensitive match.
	assert.Equal(t, "Deploy broke again", views[0].Content)
	assert.Equal(t, "deploy went fine", views[1].Content)
}

func TestSearchExcludesDeletedMessages(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	kept, err := f.service.Send(ctx, "alice1", f.channelID, "keep this secret", "")
	require.NoError(t, err)
	gone, err := f.service.Send(ctx, "alice1", f.channelID, "another secret", "")
	require.NoError(t, err)
	_, err = f.service.Delete(ctx, "alice1", gone.ID)
	require.NoError(t, err)

	views, err := f.service.Search(ctx, "alice1", f.channelID, "secret", 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, kept.ID, views[0].ID)
}

func TestSearchRequiresTwoCharacters(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.service.Search(context.Background(), "alice1", f.channelID, " a ", 10)
	assert.Error(t, err)
}

func TestSearchRequiresReadAccess(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.service.Search(context.Background(), "stranger", f.channelID, "deploy", 10)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestToggleReaction(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	sent, err := f.service.Send(ctx, "alice1", f.channelID, "react to me", "")
	require.NoError(t, err)

	payload, err := f.service.ToggleReaction(ctx, "bob2", sent.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, "added", payload.Action)

	payload, err = f.service.ToggleReaction(ctx, "bob2", sent.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, "removed", payload.Action)

	_, event := f.broadcaster.last(t)
	assert.Equal(t, domain.EventReactionUpdate, event.Type)
}

func TestDirectMessagesUseDataEnvelope(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repos.Channels.CreateDirect(ctx,
		&domain.Channel{ID: "dm1", Type: domain.ChannelTypeDM, CreatedAt: time.Now()},
		[]domain.UserID{"alice1", "bob2"}))

	_, err := f.service.Send(ctx, "alice1", "dm1", "psst", "")
	require.NoError(t, err)

	_, event := f.broadcaster.last(t)
	assert.Equal(t, domain.EventNewMessage, event.Type)
	assert.Nil(t, event.Payload)
	assert.NotNil(t, event.Data, "direct conversations use the data field")

	// Outsiders cannot write into the conversation.
	_, err = f.service.Send(ctx, "stranger", "dm1", "let me in", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
