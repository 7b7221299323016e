package http

import (
	"time"

	"owlet/internal/core/domain"
)

// Wire shapes. Domain structs stay tag-free; everything leaving the
// API goes through one of these.

type userResponse struct {
	ID        domain.UserID `json:"id"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatar_url,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

type serverResponse struct {
	ID        domain.ServerID `json:"id"`
	Name      string          `json:"name"`
	IconURL   string          `json:"icon_url,omitempty"`
	OwnerID   domain.UserID   `json:"owner_id"`
	CreatedAt time.Time       `json:"created_at"`
}

func toServerResponse(s *domain.Server) serverResponse {
	return serverResponse{ID: s.ID, Name: s.Name, IconURL: s.IconURL, OwnerID: s.OwnerID, CreatedAt: s.CreatedAt}
}

type channelResponse struct {
	ID        domain.ChannelID   `json:"id"`
	ServerID  domain.ServerID    `json:"server_id,omitempty"`
	Name      string             `json:"name"`
	Type      domain.ChannelType `json:"type"`
	IconURL   string             `json:"icon_url,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

func toChannelResponse(c *domain.Channel) channelResponse {
	return channelResponse{ID: c.ID, ServerID: c.ServerID, Name: c.Name, Type: c.Type, IconURL: c.IconURL, CreatedAt: c.CreatedAt}
}

type roleResponse struct {
	ID          domain.RoleID   `json:"id"`
	ServerID    domain.ServerID `json:"server_id"`
	Name        string          `json:"name"`
	Permissions domain.Bitmask  `json:"permissions"`
	Position    int             `json:"position"`
}

func toRoleResponse(r *domain.Role) roleResponse {
	return roleResponse{ID: r.ID, ServerID: r.ServerID, Name: r.Name, Permissions: r.Permissions, Position: r.Position}
}

type memberResponse struct {
	UserID    domain.UserID `json:"user_id"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatar_url,omitempty"`
	RoleID    domain.RoleID `json:"role_id"`
	RoleName  string        `json:"role_name"`
	JoinedAt  time.Time     `json:"joined_at"`
	Online    bool          `json:"online"`
}

func toMemberResponse(m *domain.MemberProfile) memberResponse {
	return memberResponse{
		UserID:    m.UserID,
		Username:  m.Username,
		AvatarURL: m.AvatarURL,
		RoleID:    m.RoleID,
		RoleName:  m.RoleName,
		JoinedAt:  m.JoinedAt,
		Online:    m.Online,
	}
}

type messageResponse struct {
	ID        domain.MessageID `json:"id"`
	ChannelID domain.ChannelID `json:"channel_id"`
	AuthorID  domain.UserID    `json:"author_id"`
	Username  string           `json:"username"`
	AvatarURL string           `json:"avatar_url,omitempty"`
	Content   string           `json:"content"`
	ReplyToID domain.MessageID `json:"reply_to_id,omitempty"`
	IsEdited  bool             `json:"is_edited"`
	IsDeleted bool             `json:"is_deleted"`
	CreatedAt time.Time        `json:"created_at"`
	Reactions []reactionCount  `json:"reactions,omitempty"`
}

type reactionCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

func toMessageResponse(v *domain.MessageView) messageResponse {
	resp := messageResponse{
		ID:        v.ID,
		ChannelID: v.ChannelID,
		AuthorID:  v.AuthorID,
		Username:  v.AuthorUsername,
		AvatarURL: v.AuthorAvatarURL,
		Content:   v.Content,
		ReplyToID: v.ReplyToID,
		IsEdited:  v.IsEdited,
		IsDeleted: v.IsDeleted,
		CreatedAt: v.CreatedAt,
	}
	for _, r := range v.Reactions {
		resp.Reactions = append(resp.Reactions, reactionCount{Emoji: r.Emoji, Count: r.Count})
	}
	return resp
}

type friendResponse struct {
	ID         string                  `json:"id"`
	Status     domain.FriendshipStatus `json:"status"`
	ActionByMe bool                    `json:"action_by_me"`
	Seen       bool                    `json:"seen"`
	UpdatedAt  time.Time               `json:"updated_at"`
	User       userResponse            `json:"user"`
	Online     bool                    `json:"online"`
}

func toFriendResponse(actor domain.UserID, v *domain.FriendView) friendResponse {
	return friendResponse{
		ID:         v.ID,
		Status:     v.Status,
		ActionByMe: v.LastActionBy == actor,
		Seen:       v.Seen,
		UpdatedAt:  v.UpdatedAt,
		User:       toUserResponse(&v.OtherUser),
		Online:     v.Online,
	}
}

type directChannelResponse struct {
	channelResponse
	Participants []userResponse   `json:"participants"`
	LastActivity domain.MessageID `json:"last_activity"`
}

func toDirectChannelResponse(v *domain.DirectChannelView) directChannelResponse {
	resp := directChannelResponse{
		channelResponse: toChannelResponse(&v.Channel),
		LastActivity:    v.LastActivity,
		Participants:    make([]userResponse, 0, len(v.Participants)),
	}
	for i := range v.Participants {
		resp.Participants = append(resp.Participants, toUserResponse(&v.Participants[i]))
	}
	return resp
}

type banResponse struct {
	UserID    domain.UserID `json:"user_id"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatar_url,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	BannedBy  domain.UserID `json:"banned_by"`
	BannedAt  time.Time     `json:"banned_at"`
}

func toBanResponse(v *domain.BanView) banResponse {
	return banResponse{
		UserID:    v.UserID,
		Username:  v.Username,
		AvatarURL: v.AvatarURL,
		Reason:    v.Reason,
		BannedBy:  v.BannedBy,
		BannedAt:  v.BannedAt,
	}
}

type inviteResponse struct {
	Code      string          `json:"code"`
	ServerID  domain.ServerID `json:"server_id"`
	CreatedAt time.Time       `json:"created_at"`
}

func toInviteResponse(i *domain.Invite) inviteResponse {
	return inviteResponse{Code: i.Code, ServerID: i.ServerID, CreatedAt: i.CreatedAt}
}
