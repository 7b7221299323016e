package domain

import "time"

// Read-model shapes assembled by the repositories for list endpoints.

type MemberProfile struct {
	UserID    UserID
	Username  string
	AvatarURL string
	RoleID    RoleID
	RoleName  string
	JoinedAt  time.Time
	Online    bool
}

type MessageView struct {
	Message
	AuthorUsername  string
	AuthorAvatarURL string
	Reactions       []ReactionCount
}

type ReactionCount struct {
	Emoji string
	Count int
}

// Sanitize blanks the content of soft-deleted messages before they
// leave the server. Author identity and timestamps survive so clients
// can render a tombstone in place.
func (v *MessageView) Sanitize() {
	if v.IsDeleted {
		v.Content = ""
		v.IsEdited = false
		v.Reactions = nil
	}
}

type FriendView struct {
	Friendship
	OtherUser User
	Online    bool
}

type DirectChannelView struct {
	Channel
	Participants []User
	LastActivity MessageID // id of the newest message, or the channel id when empty
}

type BanView struct {
	Ban
	Username  string
	AvatarURL string
}

// Event is the envelope written to channel sockets. Server channels use
// the payload field; direct conversations use data. Exactly one is set.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Outbound event types.
const (
	EventNewMessage     = "NEW_MESSAGE"
	EventMessageUpdate  = "MESSAGE_UPDATE"
	EventMessageDelete  = "MESSAGE_DELETE"
	EventReactionUpdate = "REACTION_UPDATE"
	EventTypingUpdate   = "TYPING_UPDATE"
)

// Inbound event types accepted on channel sockets.
const (
	EventTypingStart = "TYPING_START"
	EventTypingStop  = "TYPING_STOP"
)
