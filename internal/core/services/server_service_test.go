package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"owlet/internal/core/domain"
	"owlet/internal/infrastructure/repositories"
	"owlet/pkg/snowflake"
)

func newServerFixture(t *testing.T) (*ServerService, *repositories.Set) {
	t.Helper()
	repos := repositories.NewMemorySet()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	perms := NewPermissionService(repos.Servers, repos.Channels, repos.Members, repos.Overrides)
	service := NewServerService(repos.Servers, repos.Members, repos.Roles, repos.Invites, repos.Bans,
		perms, node, noPresence{}, zaptest.NewLogger(t).Sugar())

	ctx := context.Background()
	require.NoError(t, repos.Users.Upsert(ctx, &domain.User{ID: "owner1", Username: "owner"}))
	require.NoError(t, repos.Users.Upsert(ctx, &domain.User{ID: "guest2", Username: "guest"}))
	return service, repos
}

func TestCreateServerProvisionsStarterSet(t *testing.T) {
	service, repos := newServerFixture(t)
	ctx := context.Background()

	server, channel, err := service.Create(ctx, "owner1", "my place", "")
	require.NoError(t, err)
	assert.Equal(t, "general", channel.Name)

	roles, err := repos.Roles.ListForServer(ctx, server.ID)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.True(t, roles[0].Permissions.IsAdmin(), "highest role is the admin role")
	assert.Equal(t, 0, roles[len(roles)-1].Position, "baseline role sits at position 0")

	// The owner holds the admin role from the start.
	_, role, err := repos.Members.Membership(ctx, server.ID, "owner1")
	require.NoError(t, err)
	assert.True(t, role.Permissions.IsAdmin())
}

func TestJoinByInvite(t *testing.T) {
	service, _ := newServerFixture(t)
	ctx := context.Background()

	server, _, err := service.Create(ctx, "owner1", "my place", "")
	require.NoError(t, err)

	invite, err := service.CreateInvite(ctx, "owner1", server.ID)
	require.NoError(t, err)

	joined, err := service.Join(ctx, "guest2", invite.Code)
	require.NoError(t, err)
	assert.Equal(t, server.ID, joined.ID)

	// Joining twice while active fails.
	_, err = service.Join(ctx, "guest2", invite.Code)
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	// Leaving and rejoining revives the membership.
	require.NoError(t, service.Leave(ctx, "guest2", server.ID))
	_, err = service.Join(ctx, "guest2", invite.Code)
	require.NoError(t, err)
}

func TestBanBlocksRejoin(t *testing.T) {
	service, _ := newServerFixture(t)
	ctx := context.Background()

	server, _, err := service.Create(ctx, "owner1", "my place", "")
	require.NoError(t, err)
	invite, err := service.CreateInvite(ctx, "owner1", server.ID)
	require.NoError(t, err)
	_, err = service.Join(ctx, "guest2", invite.Code)
	require.NoError(t, err)

	require.NoError(t, service.Ban(ctx, "owner1", server.ID, "guest2", "spam"))

	_, err = service.Join(ctx, "guest2", invite.Code)
	assert.ErrorIs(t, err, domain.ErrBanned)

	require.NoError(t, service.Unban(ctx, "owner1", server.ID, "guest2"))
	_, err = service.Join(ctx, "guest2", invite.Code)
	require.NoError(t, err)
}

func TestOwnerImmunities(t *testing.T) {
	service, _ := newServerFixture(t)
	ctx := context.Background()

	server, _, err := service.Create(ctx, "owner1", "my place", "")
	require.NoError(t, err)

	// The owner cannot leave their own server.
	assert.ErrorIs(t, service.Leave(ctx, "owner1", server.ID), ErrOwnerImmutable)

	// Nobody kicks or bans the owner, admin bit or not.
	invite, err := service.CreateInvite(ctx, "owner1", server.ID)
	require.NoError(t, err)
	_, err = service.Join(ctx, "guest2", invite.Code)
	require.NoError(t, err)

	err = service.Kick(ctx, "guest2", server.ID, "owner1")
	assert.Error(t, err)
}

func TestDeleteOwnerOnly(t *testing.T) {
	service, _ := newServerFixture(t)
	ctx := context.Background()

	server, _, err := service.Create(ctx, "owner1", "my place", "")
	require.NoError(t, err)

	assert.ErrorIs(t, service.Delete(ctx, "guest2", server.ID), ErrPermissionDenied)
	require.NoError(t, service.Delete(ctx, "owner1", server.ID))

	_, err = service.Get(ctx, server.ID)
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}
