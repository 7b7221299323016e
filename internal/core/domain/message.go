package domain

import "time"

// Message belongs to exactly one channel (server channel or direct
// conversation). Deletion is soft: the row survives with IsDeleted set
// and the read path blanks the content.
type Message struct {
	ID        MessageID
	ChannelID ChannelID
	AuthorID  UserID
	Content   string
	ReplyToID MessageID
	IsEdited  bool
	IsDeleted bool
	CreatedAt time.Time
}

// Reaction is one user's emoji on one message.
type Reaction struct {
	MessageID MessageID
	UserID    UserID
	Emoji     string
}
