package domain

import "time"

type ChannelType string

const (
	ChannelTypeText  ChannelType = "text"
	ChannelTypeDM    ChannelType = "dm"
	ChannelTypeGroup ChannelType = "group"
)

// Channel is a message stream. Server channels carry a ServerID; direct
// conversations leave it empty and track their participants explicitly.
type Channel struct {
	ID        ChannelID
	ServerID  ServerID // empty for dm/group channels
	Name      string
	Type      ChannelType
	IconURL   string
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (c *Channel) Deleted() bool {
	return c.DeletedAt != nil
}

func (c *Channel) Direct() bool {
	return c.Type == ChannelTypeDM || c.Type == ChannelTypeGroup
}

// Override adjusts a role's base bitmask on one channel. Exactly one of
// RoleID/UserID is set; user-scoped overrides are applied after
// role-scoped ones and therefore win.
type Override struct {
	ChannelID ChannelID
	RoleID    RoleID // set for role-scoped overrides
	UserID    UserID // set for user-scoped overrides
	Allow     Bitmask
	Deny      Bitmask
}
