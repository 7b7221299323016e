package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
	"owlet/internal/infrastructure/repositories/memory"
)

type permFixture struct {
	users     ports.UserRepository
	servers   ports.ServerRepository
	members   ports.MemberRepository
	roles     ports.RoleRepository
	overrides ports.OverrideRepository
	channels  ports.ChannelRepository
	service   *PermissionService
}

func newPermFixture(t *testing.T) *permFixture {
	t.Helper()
	users := memory.NewMemoryUserRepository()
	store := memory.NewStore(users)
	messages := memory.NewMemoryMessageRepository(users)
	channels := memory.NewMemoryChannelRepository(users, messages)
	f := &permFixture{
		users:     users,
		servers:   memory.NewMemoryServerRepository(store, channels),
		members:   memory.NewMemoryMemberRepository(store),
		roles:     memory.NewMemoryRoleRepository(store),
		overrides: memory.NewMemoryOverrideRepository(store),
		channels:  channels,
	}
	f.service = NewPermissionService(f.servers, f.channels, f.members, f.overrides)
	return f
}

// seed creates a server with one member holding the given role bitmask
// and one text channel.
func (f *permFixture) seed(t *testing.T, perms domain.Bitmask) (domain.UserID, domain.ServerID, domain.ChannelID) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	server := &domain.Server{ID: "srv1", Name: "test", OwnerID: "owner1", CreatedAt: now}
	role := &domain.Role{ID: "role1", ServerID: server.ID, Name: "member", Permissions: perms, Position: 1}
	channel := &domain.Channel{ID: "chan1", ServerID: server.ID, Name: "general", Type: domain.ChannelTypeText, CreatedAt: now}
	member := &domain.Member{ServerID: server.ID, UserID: "user1", RoleID: role.ID, JoinedAt: now}

	require.NoError(t, f.servers.Create(ctx, server, []*domain.Role{role}, channel, member))
	return "user1", server.ID, channel.ID
}

func TestComputeNoMembership(t *testing.T) {
	f := newPermFixture(t)
	_, serverID, channelID := f.seed(t, domain.PermViewChannel)

	got, err := f.service.Compute(context.Background(), "stranger", serverID, channelID)
	require.NoError(t, err)
	assert.Equal(t, domain.Bitmask(0), got)
}

func TestComputeUnknownServer(t *testing.T) {
	f := newPermFixture(t)

	got, err := f.service.Compute(context.Background(), "user1", "nope", "")
	require.NoError(t, err)
	assert.Equal(t, domain.Bitmask(0), got)
}

func TestComputeAdminShortCircuit(t *testing.T) {
	f := newPermFixture(t)
	userID, serverID, channelID := f.seed(t, domain.PermAdministrator|domain.PermViewChannel)

	// A channel deny mask must not reach an administrator.
	require.NoError(t, f.overrides.Upsert(context.Background(), &domain.Override{
		ChannelID: channelID,
		RoleID:    "role1",
		Deny:      domain.PermViewChannel | domain.PermSendMessages,
	}))

	got, err := f.service.Compute(context.Background(), userID, serverID, channelID)
	require.NoError(t, err)
	assert.Equal(t, domain.PermAdministrator, got, "admin resolves to the lone administrator bit")

	ok, err := f.service.Has(context.Background(), userID, serverID, channelID, domain.PermBanMembers)
	require.NoError(t, err)
	assert.True(t, ok, "admin passes every bit check")
}

func TestComputeDeletedServerRevokesAdmin(t *testing.T) {
	f := newPermFixture(t)
	userID, serverID, channelID := f.seed(t, domain.PermAdministrator)

	require.NoError(t, f.servers.SoftDelete(context.Background(), serverID, time.Now()))

	got, err := f.service.Compute(context.Background(), userID, serverID, channelID)
	require.NoError(t, err)
	assert.Equal(t, domain.Bitmask(0), got)
}

func TestComputeDeletedChannel(t *testing.T) {
	f := newPermFixture(t)
	userID, serverID, channelID := f.seed(t, domain.PermViewChannel|domain.PermSendMessages)

	require.NoError(t, f.channels.SoftDelete(context.Background(), channelID, time.Now()))

	got, err := f.service.Compute(context.Background(), userID, serverID, channelID)
	require.NoError(t, err)
	assert.Equal(t, domain.Bitmask(0), got)
}

func TestComputeServerLevelSkipsOverrides(t *testing.T) {
	f := newPermFixture(t)
	userID, serverID, channelID := f.seed(t, domain.PermViewChannel|domain.PermSendMessages)

	require.NoError(t, f.overrides.Upsert(context.Background(), &domain.Override{
		ChannelID: channelID,
		RoleID:    "role1",
		Deny:      domain.PermSendMessages,
	}))

	got, err := f.service.Compute(context.Background(), userID, serverID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PermViewChannel|domain.PermSendMessages, got)
}

func TestComputeOverrideLayering(t *testing.T) {
	f := newPermFixture(t)
	userID, serverID, channelID := f.seed(t, domain.PermViewChannel|domain.PermSendMessages)
	ctx := context.Background()

	// Role override removes send; the user override restores it.
	require.NoError(t, f.overrides.Upsert(ctx, &domain.Override{
		ChannelID: channelID,
		RoleID:    "role1",
		Deny:      domain.PermSendMessages,
	}))

	got, err := f.service.Compute(ctx, userID, serverID, channelID)
	require.NoError(t, err)
	assert.Equal(t, domain.PermViewChannel, got)

	require.NoError(t, f.overrides.Upsert(ctx, &domain.Override{
		ChannelID: channelID,
		UserID:    userID,
		Allow:     domain.PermSendMessages,
	}))

	got, err = f.service.Compute(ctx, userID, serverID, channelID)
	require.NoError(t, err)
	assert.True(t, got.Has(domain.PermSendMessages), "user override wins over role deny")
}

func TestApplyAllowWinsInsideOneOverride(t *testing.T) {
	base := domain.PermViewChannel
	got := base.Apply(domain.PermSendMessages, domain.PermSendMessages|domain.PermViewChannel)
	assert.Equal(t, domain.PermSendMessages, got)
}

func TestHasRequiresEveryBit(t *testing.T) {
	f := newPermFixture(t)
	userID, serverID, channelID := f.seed(t, domain.PermViewChannel)

	ok, err := f.service.Has(context.Background(), userID, serverID, channelID, domain.PermViewChannel|domain.PermSendMessages)
	require.NoError(t, err)
	assert.False(t, ok)
}
