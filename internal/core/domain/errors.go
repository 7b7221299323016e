package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrServerNotFound     = errors.New("server not found")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrInviteNotFound     = errors.New("invite not found")
	ErrFriendshipNotFound = errors.New("friendship not found")
	ErrNotMember          = errors.New("not a member")
	ErrAlreadyMember      = errors.New("already a member")
	ErrBanned             = errors.New("user is banned")
)
