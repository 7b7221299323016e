package services

import (
	"context"
	"fmt"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
	apperrors "owlet/pkg/errors"
	"owlet/pkg/validation"
)

// ChannelService manages server channels, their permission overrides
// and direct conversations.
type ChannelService struct {
	channels  ports.ChannelRepository
	roles     ports.RoleRepository
	overrides ports.OverrideRepository
	perms     ports.PermissionResolver
	ids       ports.IDGenerator
}

func NewChannelService(
	channels ports.ChannelRepository,
	roles ports.RoleRepository,
	overrides ports.OverrideRepository,
	perms ports.PermissionResolver,
	ids ports.IDGenerator,
) *ChannelService {
	return &ChannelService{
		channels:  channels,
		roles:     roles,
		overrides: overrides,
		perms:     perms,
		ids:       ids,
	}
}

// List returns the server's channels the caller can view. Filtering is
// per channel so a view deny on one channel hides just that channel.
func (s *ChannelService) List(ctx context.Context, actor domain.UserID, serverID domain.ServerID) ([]*domain.Channel, error) {
	channels, err := s.channels.ListForServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	visible := channels[:0]
	for _, channel := range channels {
		ok, err := s.perms.Has(ctx, actor, serverID, channel.ID, domain.PermViewChannel)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, channel)
		}
	}
	return visible, nil
}

func (s *ChannelService) Get(ctx context.Context, id domain.ChannelID) (*domain.Channel, error) {
	channel, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if channel.Deleted() {
		return nil, domain.ErrChannelNotFound
	}
	return channel, nil
}

func (s *ChannelService) Create(ctx context.Context, actor domain.UserID, serverID domain.ServerID, name string) (*domain.Channel, error) {
	if err := validation.ValidateEntityName("channel", name); err != nil {
		return nil, err
	}
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermManageChannels)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, err
	}
	channel := &domain.Channel{
		ID:        domain.ChannelID(id),
		ServerID:  serverID,
		Name:      name,
		Type:      domain.ChannelTypeText,
		CreatedAt: time.Now(),
	}
	if err := s.channels.Create(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *ChannelService) Update(ctx context.Context, actor domain.UserID, channelID domain.ChannelID, name string) (*domain.Channel, error) {
	if err := validation.ValidateEntityName("channel", name); err != nil {
		return nil, err
	}
	channel, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	ok, err := s.perms.Has(ctx, actor, channel.ServerID, channelID, domain.PermManageChannels)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	channel.Name = name
	if err := s.channels.Update(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *ChannelService) Delete(ctx context.Context, actor domain.UserID, channelID domain.ChannelID) error {
	channel, err := s.Get(ctx, channelID)
	if err != nil {
		return err
	}
	ok, err := s.perms.Has(ctx, actor, channel.ServerID, "", domain.PermManageChannels)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return s.channels.SoftDelete(ctx, channelID, time.Now())
}

// SetOverride upserts a channel permission override. Exactly one of
// roleID/userID must be set.
func (s *ChannelService) SetOverride(ctx context.Context, actor domain.UserID, channelID domain.ChannelID, roleID domain.RoleID, userID domain.UserID, allow, deny domain.Bitmask) error {
	if (roleID == "") == (userID == "") {
		return apperrors.NewInvalidInputError("exactly one of role_id and user_id must be set")
	}
	channel, err := s.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if channel.Direct() {
		return apperrors.NewInvalidInputError("direct conversations carry no overrides")
	}
	ok, err := s.perms.Has(ctx, actor, channel.ServerID, "", domain.PermManageRoles)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	if roleID != "" {
		role, err := s.roles.GetByID(ctx, roleID)
		if err != nil {
			return err
		}
		if role.ServerID != channel.ServerID {
			return apperrors.NewInvalidInputError(fmt.Sprintf("role %s does not belong to server %s", roleID, channel.ServerID))
		}
	}

	return s.overrides.Upsert(ctx, &domain.Override{
		ChannelID: channelID,
		RoleID:    roleID,
		UserID:    userID,
		Allow:     allow,
		Deny:      deny,
	})
}

// OpenDirect returns the existing conversation covering exactly the
// given participants, creating it when absent.
func (s *ChannelService) OpenDirect(ctx context.Context, actor domain.UserID, others []domain.UserID) (*domain.Channel, error) {
	participants := dedupeWith(actor, others)
	if len(participants) < 2 {
		return nil, apperrors.NewInvalidInputError("a conversation needs at least two participants")
	}

	views, err := s.channels.ListDirectForUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	for _, view := range views {
		if sameParticipants(view.Participants, participants) {
			channel := view.Channel
			return &channel, nil
		}
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, err
	}
	channelType := domain.ChannelTypeDM
	if len(participants) > 2 {
		channelType = domain.ChannelTypeGroup
	}
	channel := &domain.Channel{
		ID:        domain.ChannelID(id),
		Name:      "",
		Type:      channelType,
		CreatedAt: time.Now(),
	}
	if err := s.channels.CreateDirect(ctx, channel, participants); err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *ChannelService) ListDirect(ctx context.Context, actor domain.UserID) ([]*domain.DirectChannelView, error) {
	return s.channels.ListDirectForUser(ctx, actor)
}

func dedupeWith(actor domain.UserID, others []domain.UserID) []domain.UserID {
	seen := map[domain.UserID]bool{actor: true}
	result := []domain.UserID{actor}
	for _, id := range others {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

func sameParticipants(users []domain.User, ids []domain.UserID) bool {
	if len(users) != len(ids) {
		return false
	}
	want := make(map[domain.UserID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, user := range users {
		if !want[user.ID] {
			return false
		}
	}
	return true
}
