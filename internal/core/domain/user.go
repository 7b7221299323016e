package domain

import "time"

type (
	UserID    string
	ServerID  string
	ChannelID string
	MessageID string
	RoleID    string
)

// Identity is the verified payload produced once at the authentication
// boundary. Everything past the middleware trusts it as-is and passes
// it by value; no component re-derives identity from a request.
type Identity struct {
	UserID    UserID
	Email     string
	Username  string
	AvatarURL string
}

type User struct {
	ID        UserID
	Username  string
	Email     string
	AvatarURL string
	Status    PresenceStatus
	CreatedAt time.Time
}
