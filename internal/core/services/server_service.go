package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
	apperrors "owlet/pkg/errors"
	"owlet/pkg/validation"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrOwnerImmutable   = errors.New("operation not allowed on the server owner")
)

// ServerService owns the guild lifecycle: creation with its starter
// roles and channel, settings, membership, moderation and invites.
type ServerService struct {
	servers  ports.ServerRepository
	members  ports.MemberRepository
	roles    ports.RoleRepository
	invites  ports.InviteRepository
	bans     ports.BanRepository
	perms    ports.PermissionResolver
	ids      ports.IDGenerator
	presence ports.PresenceQuerier
	logger   *zap.SugaredLogger
}

func NewServerService(
	servers ports.ServerRepository,
	members ports.MemberRepository,
	roles ports.RoleRepository,
	invites ports.InviteRepository,
	bans ports.BanRepository,
	perms ports.PermissionResolver,
	ids ports.IDGenerator,
	presence ports.PresenceQuerier,
	logger *zap.SugaredLogger,
) *ServerService {
	return &ServerService{
		servers:  servers,
		members:  members,
		roles:    roles,
		invites:  invites,
		bans:     bans,
		perms:    perms,
		ids:      ids,
		presence: presence,
		logger:   logger,
	}
}

// Create provisions a server with an administrator role for the owner,
// a baseline role at position 0 and an initial text channel, committed
// as one batch.
func (s *ServerService) Create(ctx context.Context, ownerID domain.UserID, name, iconURL string) (*domain.Server, *domain.Channel, error) {
	if err := validation.ValidateEntityName("server", name); err != nil {
		return nil, nil, err
	}

	serverID, err := s.ids.Generate()
	if err != nil {
		return nil, nil, err
	}
	adminRoleID, err := s.ids.Generate()
	if err != nil {
		return nil, nil, err
	}
	baseRoleID, err := s.ids.Generate()
	if err != nil {
		return nil, nil, err
	}
	channelID, err := s.ids.Generate()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	server := &domain.Server{
		ID:        domain.ServerID(serverID),
		Name:      name,
		IconURL:   iconURL,
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	roles := []*domain.Role{
		{
			ID:          domain.RoleID(adminRoleID),
			ServerID:    server.ID,
			Name:        "admin",
			Permissions: domain.PermAdministrator,
			Position:    999,
		},
		{
			ID:          domain.RoleID(baseRoleID),
			ServerID:    server.ID,
			Name:        "@everyone",
			Permissions: domain.PermViewChannel | domain.PermSendMessages,
			Position:    0,
		},
	}
	channel := &domain.Channel{
		ID:        domain.ChannelID(channelID),
		ServerID:  server.ID,
		Name:      "general",
		Type:      domain.ChannelTypeText,
		CreatedAt: now,
	}
	owner := &domain.Member{
		ServerID: server.ID,
		UserID:   ownerID,
		RoleID:   domain.RoleID(adminRoleID),
		JoinedAt: now,
	}

	if err := s.servers.Create(ctx, server, roles, channel, owner); err != nil {
		return nil, nil, err
	}
	s.logger.Infow("server created", "server_id", server.ID, "owner_id", ownerID)
	return server, channel, nil
}

func (s *ServerService) Get(ctx context.Context, serverID domain.ServerID) (*domain.Server, error) {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if server.Deleted() {
		return nil, domain.ErrServerNotFound
	}
	return server, nil
}

func (s *ServerService) ListMine(ctx context.Context, userID domain.UserID) ([]*domain.Server, error) {
	return s.servers.ListForUser(ctx, userID)
}

func (s *ServerService) Update(ctx context.Context, actor domain.UserID, serverID domain.ServerID, name, iconURL string) (*domain.Server, error) {
	if name != "" {
		if err := validation.ValidateEntityName("server", name); err != nil {
			return nil, err
		}
	}
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermManageGuild)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	server, err := s.Get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		server.Name = name
	}
	if iconURL != "" {
		server.IconURL = iconURL
	}
	if err := s.servers.Update(ctx, server); err != nil {
		return nil, err
	}
	return server, nil
}

// Delete soft-deletes. Only the owner may do this; administrators with
// ManageGuild cannot destroy a server they do not own.
func (s *ServerService) Delete(ctx context.Context, actor domain.UserID, serverID domain.ServerID) error {
	server, err := s.Get(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID != actor {
		return ErrPermissionDenied
	}
	return s.servers.SoftDelete(ctx, serverID, time.Now())
}

// Leave removes the caller's own membership. The owner cannot leave;
// they delete or transfer instead.
func (s *ServerService) Leave(ctx context.Context, actor domain.UserID, serverID domain.ServerID) error {
	server, err := s.Get(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID == actor {
		return ErrOwnerImmutable
	}
	return s.members.Remove(ctx, serverID, actor, time.Now())
}

// ListMembers returns the active roster enriched with live presence.
func (s *ServerService) ListMembers(ctx context.Context, actor domain.UserID, serverID domain.ServerID) ([]*domain.MemberProfile, error) {
	if _, _, err := s.members.Membership(ctx, serverID, actor); err != nil {
		return nil, err
	}
	profiles, err := s.members.List(ctx, serverID)
	if err != nil {
		return nil, err
	}

	ids := make([]domain.UserID, 0, len(profiles))
	for _, profile := range profiles {
		ids = append(ids, profile.UserID)
	}
	online := s.presence.QueryPresence(ctx, ids)
	for _, profile := range profiles {
		profile.Online = online[profile.UserID]
	}
	return profiles, nil
}

// Kick ends a member's stay. The owner cannot be kicked, and kicking a
// member holding the administrator bit is reserved for the owner.
func (s *ServerService) Kick(ctx context.Context, actor domain.UserID, serverID domain.ServerID, target domain.UserID) error {
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermKickMembers)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	if err := s.guardPrivileged(ctx, actor, serverID, target); err != nil {
		return err
	}
	if err := s.members.Remove(ctx, serverID, target, time.Now()); err != nil {
		return err
	}
	s.logger.Infow("member kicked", "server_id", serverID, "user_id", target, "by", actor)
	return nil
}

// Ban records the ban and removes the membership in one go. A banned
// user cannot rejoin through an invite until unbanned.
func (s *ServerService) Ban(ctx context.Context, actor domain.UserID, serverID domain.ServerID, target domain.UserID, reason string) error {
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermBanMembers)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	if err := s.guardPrivileged(ctx, actor, serverID, target); err != nil {
		return err
	}

	if err := s.bans.Add(ctx, &domain.Ban{
		ServerID: serverID,
		UserID:   target,
		Reason:   reason,
		BannedBy: actor,
		BannedAt: time.Now(),
	}); err != nil {
		return err
	}
	if err := s.members.Remove(ctx, serverID, target, time.Now()); err != nil && !errors.Is(err, domain.ErrNotMember) {
		return err
	}
	s.logger.Infow("member banned", "server_id", serverID, "user_id", target, "by", actor)
	return nil
}

func (s *ServerService) Unban(ctx context.Context, actor domain.UserID, serverID domain.ServerID, target domain.UserID) error {
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermBanMembers)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return s.bans.Remove(ctx, serverID, target)
}

func (s *ServerService) ListBans(ctx context.Context, actor domain.UserID, serverID domain.ServerID) ([]*domain.BanView, error) {
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermBanMembers)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return s.bans.List(ctx, serverID)
}

// SetMemberRole assigns a role belonging to the same server.
func (s *ServerService) SetMemberRole(ctx context.Context, actor domain.UserID, serverID domain.ServerID, target domain.UserID, roleID domain.RoleID) error {
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermManageRoles)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.ServerID != serverID {
		return apperrors.NewInvalidInputError(fmt.Sprintf("role %s does not belong to server %s", roleID, serverID))
	}
	return s.members.SetRole(ctx, serverID, target, roleID)
}

// CreateInvite mints a join code for the server.
func (s *ServerService) CreateInvite(ctx context.Context, actor domain.UserID, serverID domain.ServerID) (*domain.Invite, error) {
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermCreateInvite)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	invite := &domain.Invite{
		Code:      uuid.NewString(),
		ServerID:  serverID,
		CreatedBy: actor,
		CreatedAt: time.Now(),
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

// Join redeems an invite code. Bans block rejoining; a past member who
// left gets their row revived.
func (s *ServerService) Join(ctx context.Context, actor domain.UserID, code string) (*domain.Server, error) {
	invite, err := s.invites.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	server, err := s.Get(ctx, invite.ServerID)
	if err != nil {
		return nil, err
	}

	banned, err := s.bans.IsBanned(ctx, server.ID, actor)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, domain.ErrBanned
	}

	baseRole, err := s.baselineRole(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	err = s.members.Add(ctx, &domain.Member{
		ServerID: server.ID,
		UserID:   actor,
		RoleID:   baseRole.ID,
		JoinedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("member joined", "server_id", server.ID, "user_id", actor)
	return server, nil
}

// baselineRole is the position-0 role new members receive.
func (s *ServerService) baselineRole(ctx context.Context, serverID domain.ServerID) (*domain.Role, error) {
	roles, err := s.roles.ListForServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if role.Position == 0 {
			return role, nil
		}
	}
	if len(roles) == 0 {
		return nil, domain.ErrRoleNotFound
	}
	return roles[len(roles)-1], nil
}

func (s *ServerService) guardPrivileged(ctx context.Context, actor domain.UserID, serverID domain.ServerID, target domain.UserID) error {
	server, err := s.Get(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID == target {
		return ErrOwnerImmutable
	}

	// Moderating a member who holds the administrator bit is reserved
	// for the owner.
	_, role, err := s.members.Membership(ctx, serverID, target)
	if err != nil {
		if errors.Is(err, domain.ErrNotMember) {
			return nil
		}
		return err
	}
	if role.Permissions.IsAdmin() && server.OwnerID != actor {
		return ErrPermissionDenied
	}
	return nil
}
