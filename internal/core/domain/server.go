package domain

import "time"

// Server is a guild: a container of channels, roles and members.
// DeletedAt is the sole authority on existence; a set timestamp means
// the server is gone for every consumer, administrators included.
type Server struct {
	ID        ServerID
	Name      string
	IconURL   string
	OwnerID   UserID
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (s *Server) Deleted() bool {
	return s.DeletedAt != nil
}

// Role is a named bundle of capability bits. Position orders roles for
// hierarchy comparisons; higher position outranks lower.
type Role struct {
	ID          RoleID
	ServerID    ServerID
	Name        string
	Permissions Bitmask
	Position    int
}

// Member ties a user to a server with exactly one role. A set LeftAt
// means the membership is historical.
type Member struct {
	ServerID ServerID
	UserID   UserID
	RoleID   RoleID
	JoinedAt time.Time
	LeftAt   *time.Time
}

func (m *Member) Active() bool {
	return m.LeftAt == nil
}

// Ban records a server-level ban. Bans outlive membership: a banned
// user cannot rejoin through an invite.
type Ban struct {
	ServerID ServerID
	UserID   UserID
	Reason   string
	BannedBy UserID
	BannedAt time.Time
}

// Invite is a join code for a server.
type Invite struct {
	Code      string
	ServerID  ServerID
	CreatedBy UserID
	CreatedAt time.Time
}
