package services

import (
	"context"
	"errors"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

// PermissionService resolves effective capability bitmasks for
// (user, server, channel) triples. Resolution is stateless and reads
// the store on every call; resolved masks are never cached or
// persisted, so a role edit takes effect on the next request.
//
// Absence is always "no permission", never an error: a missing
// membership, a soft-deleted server or channel all resolve to 0.
// Only infrastructure failures propagate.
type PermissionService struct {
	servers   ports.ServerRepository
	channels  ports.ChannelRepository
	members   ports.MemberRepository
	overrides ports.OverrideRepository
}

func NewPermissionService(
	servers ports.ServerRepository,
	channels ports.ChannelRepository,
	members ports.MemberRepository,
	overrides ports.OverrideRepository,
) *PermissionService {
	return &PermissionService{
		servers:   servers,
		channels:  channels,
		members:   members,
		overrides: overrides,
	}
}

// Compute resolves the bitmask. channelID may be empty for server-level
// checks, in which case the role bitmask is returned unmodified.
func (s *PermissionService) Compute(ctx context.Context, userID domain.UserID, serverID domain.ServerID, channelID domain.ChannelID) (domain.Bitmask, error) {
	// Deletion revokes all rights, administrators included.
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, domain.ErrServerNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if server.Deleted() {
		return 0, nil
	}

	if channelID != "" {
		channel, err := s.channels.GetByID(ctx, channelID)
		if err != nil {
			if errors.Is(err, domain.ErrChannelNotFound) {
				return 0, nil
			}
			return 0, err
		}
		if channel.Deleted() {
			return 0, nil
		}
	}

	_, role, err := s.members.Membership(ctx, serverID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotMember) {
			return 0, nil
		}
		return 0, err
	}

	perms := role.Permissions
	if perms.IsAdmin() {
		// Callers treat the lone administrator bit as "everything";
		// skipping the override walk keeps admin immune to channel
		// level deny masks.
		return domain.PermAdministrator, nil
	}

	if channelID == "" {
		return perms, nil
	}

	overrides, err := s.overrides.ListFor(ctx, channelID, role.ID, userID)
	if err != nil {
		return 0, err
	}

	// Role override first, user override second: the user-scoped record
	// is applied last and therefore wins.
	for _, o := range overrides {
		if o.RoleID == role.ID && o.RoleID != "" {
			perms = perms.Apply(o.Allow, o.Deny)
		}
	}
	for _, o := range overrides {
		if o.UserID == userID && o.UserID != "" {
			perms = perms.Apply(o.Allow, o.Deny)
		}
	}

	return perms, nil
}

// Has reports whether the resolved bitmask carries perm. Administrator
// passes every check as long as the server and channel are alive.
func (s *PermissionService) Has(ctx context.Context, userID domain.UserID, serverID domain.ServerID, channelID domain.ChannelID, perm domain.Bitmask) (bool, error) {
	resolved, err := s.Compute(ctx, userID, serverID, channelID)
	if err != nil {
		return false, err
	}
	if resolved.IsAdmin() {
		return true, nil
	}
	return resolved.Has(perm), nil
}
