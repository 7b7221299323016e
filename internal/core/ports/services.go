package ports

import (
	"context"

	"owlet/internal/core/domain"
)

// Broadcaster is the internal fan-out surface the write path calls
// after a persisted commit. Implemented by the channel session
// registry. Delivery is best-effort; failures never surface here.
type Broadcaster interface {
	Broadcast(channelID domain.ChannelID, event domain.Event)
}

// PresenceQuerier answers "who is online" for a set of user ids.
// Implemented by the presence fan-out coordinator. Ids missing from the
// result are unknown/offline, never an error.
type PresenceQuerier interface {
	QueryPresence(ctx context.Context, userIDs []domain.UserID) map[domain.UserID]bool
}

// IDGenerator hands out globally-orderable identifiers.
type IDGenerator interface {
	Generate() (string, error)
}

// PermissionResolver computes effective capability bitmasks. channelID
// may be empty for server-level checks.
type PermissionResolver interface {
	Compute(ctx context.Context, userID domain.UserID, serverID domain.ServerID, channelID domain.ChannelID) (domain.Bitmask, error)
	Has(ctx context.Context, userID domain.UserID, serverID domain.ServerID, channelID domain.ChannelID, perm domain.Bitmask) (bool, error)
}
