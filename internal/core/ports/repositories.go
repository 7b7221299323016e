package ports

import (
	"context"
	"time"

	"owlet/internal/core/domain"
)

// Repositories return domain sentinel errors (domain.ErrServerNotFound
// and friends) for absent rows; infrastructure failures come back as-is.

type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id domain.UserID, username, avatarURL string) error
}

type ServerRepository interface {
	// Create persists the server together with its starter roles, its
	// initial channel and the owner's membership as one atomic batch.
	Create(ctx context.Context, server *domain.Server, roles []*domain.Role, initial *domain.Channel, owner *domain.Member) error
	GetByID(ctx context.Context, id domain.ServerID) (*domain.Server, error)
	Update(ctx context.Context, server *domain.Server) error
	SoftDelete(ctx context.Context, id domain.ServerID, at time.Time) error
	ListForUser(ctx context.Context, userID domain.UserID) ([]*domain.Server, error)
}

type MemberRepository interface {
	// Membership returns the active membership and its role in one read.
	// Absence (no row, or left) yields domain.ErrNotMember.
	Membership(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (*domain.Member, *domain.Role, error)
	Add(ctx context.Context, member *domain.Member) error
	Remove(ctx context.Context, serverID domain.ServerID, userID domain.UserID, at time.Time) error
	SetRole(ctx context.Context, serverID domain.ServerID, userID domain.UserID, roleID domain.RoleID) error
	List(ctx context.Context, serverID domain.ServerID) ([]*domain.MemberProfile, error)
}

type RoleRepository interface {
	Create(ctx context.Context, role *domain.Role) error
	GetByID(ctx context.Context, id domain.RoleID) (*domain.Role, error)
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, id domain.RoleID) error
	ListForServer(ctx context.Context, serverID domain.ServerID) ([]*domain.Role, error)
}

type OverrideRepository interface {
	// Upsert replaces the override for the channel and the role-or-user
	// target it names.
	Upsert(ctx context.Context, override *domain.Override) error
	// ListFor returns the overrides on a channel scoped to the given
	// role id or user id, at most one of each.
	ListFor(ctx context.Context, channelID domain.ChannelID, roleID domain.RoleID, userID domain.UserID) ([]*domain.Override, error)
}

type ChannelRepository interface {
	Create(ctx context.Context, channel *domain.Channel) error
	GetByID(ctx context.Context, id domain.ChannelID) (*domain.Channel, error)
	Update(ctx context.Context, channel *domain.Channel) error
	SoftDelete(ctx context.Context, id domain.ChannelID, at time.Time) error
	ListForServer(ctx context.Context, serverID domain.ServerID) ([]*domain.Channel, error)

	// Direct conversations.
	CreateDirect(ctx context.Context, channel *domain.Channel, participants []domain.UserID) error
	IsParticipant(ctx context.Context, channelID domain.ChannelID, userID domain.UserID) (bool, error)
	Participants(ctx context.Context, channelID domain.ChannelID) ([]domain.UserID, error)
	ListDirectForUser(ctx context.Context, userID domain.UserID) ([]*domain.DirectChannelView, error)
}

type MessageRepository interface {
	Insert(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	// ListBefore pages backwards through a channel by snowflake id.
	// before may be empty to start from the newest message.
	ListBefore(ctx context.Context, channelID domain.ChannelID, before domain.MessageID, limit int) ([]*domain.MessageView, error)
	// Search matches the query as a case-insensitive content substring,
	// newest first. Soft-deleted messages never match.
	Search(ctx context.Context, channelID domain.ChannelID, query string, limit int) ([]*domain.MessageView, error)
	SetContent(ctx context.Context, id domain.MessageID, content string) error
	SoftDelete(ctx context.Context, id domain.MessageID) error
	// ToggleReaction adds the reaction if absent, removes it if present,
	// and reports whether it is now set.
	ToggleReaction(ctx context.Context, reaction *domain.Reaction) (bool, error)
	ReactionCounts(ctx context.Context, messageID domain.MessageID) ([]domain.ReactionCount, error)
}

type FriendRepository interface {
	Get(ctx context.Context, friendshipID string) (*domain.Friendship, error)
	Insert(ctx context.Context, friendship *domain.Friendship) error
	UpdateStatus(ctx context.Context, friendshipID string, status domain.FriendshipStatus, actor domain.UserID, at time.Time) error
	List(ctx context.Context, userID domain.UserID) ([]*domain.FriendView, error)
	MarkSeen(ctx context.Context, userID domain.UserID) error
}

type InviteRepository interface {
	Create(ctx context.Context, invite *domain.Invite) error
	GetByCode(ctx context.Context, code string) (*domain.Invite, error)
}

type BanRepository interface {
	Add(ctx context.Context, ban *domain.Ban) error
	Remove(ctx context.Context, serverID domain.ServerID, userID domain.UserID) error
	List(ctx context.Context, serverID domain.ServerID) ([]*domain.BanView, error)
	IsBanned(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error)
}
