package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
	apperrors "owlet/pkg/errors"
	"owlet/pkg/validation"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// MessageUpdatePayload is broadcast after an edit.
type MessageUpdatePayload struct {
	MessageID domain.MessageID `json:"message_id"`
	ChannelID domain.ChannelID `json:"channel_id"`
	Content   string           `json:"content"`
	IsEdited  bool             `json:"is_edited"`
}

// MessageDeletePayload is broadcast after a soft delete.
type MessageDeletePayload struct {
	MessageID domain.MessageID `json:"message_id"`
	ChannelID domain.ChannelID `json:"channel_id"`
	IsDeleted bool             `json:"is_deleted"`
}

// ReactionUpdatePayload is broadcast after a reaction toggle.
type ReactionUpdatePayload struct {
	MessageID domain.MessageID `json:"message_id"`
	ChannelID domain.ChannelID `json:"channel_id"`
	UserID    domain.UserID    `json:"user_id"`
	Emoji     string           `json:"emoji"`
	Action    string           `json:"action"` // "added" or "removed"
}

// MessagePayload is the NEW_MESSAGE body: the stored row plus author.
type MessagePayload struct {
	ID        domain.MessageID `json:"id"`
	ChannelID domain.ChannelID `json:"channel_id"`
	AuthorID  domain.UserID    `json:"author_id"`
	Content   string           `json:"content"`
	ReplyToID domain.MessageID `json:"reply_to_id,omitempty"`
	IsEdited  bool             `json:"is_edited"`
	IsDeleted bool             `json:"is_deleted"`
	CreatedAt int64            `json:"created_at"`
	Author    AuthorPayload    `json:"author"`
}

type AuthorPayload struct {
	ID        domain.UserID `json:"id"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatar_url,omitempty"`
}

// MessageService is the message write/read path. Every write commits
// to the store first and notifies live sessions second; a notify
// failure is warn-logged and never rolls back the commit.
type MessageService struct {
	messages    ports.MessageRepository
	channels    ports.ChannelRepository
	users       ports.UserRepository
	perms       ports.PermissionResolver
	ids         ports.IDGenerator
	broadcaster ports.Broadcaster
	logger      *zap.SugaredLogger
}

func NewMessageService(
	messages ports.MessageRepository,
	channels ports.ChannelRepository,
	users ports.UserRepository,
	perms ports.PermissionResolver,
	ids ports.IDGenerator,
	broadcaster ports.Broadcaster,
	logger *zap.SugaredLogger,
) *MessageService {
	return &MessageService{
		messages:    messages,
		channels:    channels,
		users:       users,
		perms:       perms,
		ids:         ids,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Send persists a message and fans it out to the channel's live
// sessions. Server channels require SendMessages; direct conversations
// require participation.
func (s *MessageService) Send(ctx context.Context, author domain.UserID, channelID domain.ChannelID, content string, replyTo domain.MessageID) (*MessagePayload, error) {
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, err
	}
	channel, err := s.liveChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWrite(ctx, author, channel); err != nil {
		return nil, err
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, err
	}
	message := &domain.Message{
		ID:        domain.MessageID(id),
		ChannelID: channelID,
		AuthorID:  author,
		Content:   content,
		ReplyToID: replyTo,
		CreatedAt: time.Now(),
	}
	if err := s.messages.Insert(ctx, message); err != nil {
		return nil, err
	}

	payload := s.toPayload(ctx, message)
	s.notify(channel, domain.EventNewMessage, payload)
	return payload, nil
}

// History pages backwards by snowflake id. Soft-deleted messages come
// back blanked; the rows stay so clients can render tombstones.
func (s *MessageService) History(ctx context.Context, actor domain.UserID, channelID domain.ChannelID, before domain.MessageID, limit int) ([]*domain.MessageView, error) {
	channel, err := s.liveChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRead(ctx, actor, channel); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.messages.ListBefore(ctx, channelID, before, limit)
}

// Search finds messages containing the query text, newest first. The
// read gate matches History; soft-deleted messages never surface.
func (s *MessageService) Search(ctx context.Context, actor domain.UserID, channelID domain.ChannelID, query string, limit int) ([]*domain.MessageView, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, apperrors.NewInvalidInputError("search query must be at least 2 characters")
	}
	channel, err := s.liveChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRead(ctx, actor, channel); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.messages.Search(ctx, channelID, query, limit)
}

// Edit changes a message body. Author only, regardless of bitmask.
func (s *MessageService) Edit(ctx context.Context, actor domain.UserID, messageID domain.MessageID, content string) (*MessageUpdatePayload, error) {
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, err
	}
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.IsDeleted {
		return nil, domain.ErrMessageNotFound
	}
	if message.AuthorID != actor {
		return nil, ErrPermissionDenied
	}
	channel, err := s.liveChannel(ctx, message.ChannelID)
	if err != nil {
		return nil, err
	}

	if err := s.messages.SetContent(ctx, messageID, content); err != nil {
		return nil, err
	}
	payload := &MessageUpdatePayload{
		MessageID: messageID,
		ChannelID: message.ChannelID,
		Content:   content,
		IsEdited:  true,
	}
	s.notify(channel, domain.EventMessageUpdate, payload)
	return payload, nil
}

// Delete soft-deletes. The author may always delete their own message;
// in server channels ManageMessages unlocks deleting others'.
func (s *MessageService) Delete(ctx context.Context, actor domain.UserID, messageID domain.MessageID) (*MessageDeletePayload, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	channel, err := s.liveChannel(ctx, message.ChannelID)
	if err != nil {
		return nil, err
	}

	if message.AuthorID != actor {
		if channel.Direct() {
			return nil, ErrPermissionDenied
		}
		ok, err := s.perms.Has(ctx, actor, channel.ServerID, channel.ID, domain.PermManageMessages)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrPermissionDenied
		}
	}

	if err := s.messages.SoftDelete(ctx, messageID); err != nil {
		return nil, err
	}
	payload := &MessageDeletePayload{
		MessageID: messageID,
		ChannelID: message.ChannelID,
		IsDeleted: true,
	}
	s.notify(channel, domain.EventMessageDelete, payload)
	return payload, nil
}

// ToggleReaction adds the caller's emoji if absent, removes it if
// present.
func (s *MessageService) ToggleReaction(ctx context.Context, actor domain.UserID, messageID domain.MessageID, emoji string) (*ReactionUpdatePayload, error) {
	if err := validation.ValidateEmoji(emoji); err != nil {
		return nil, err
	}
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	channel, err := s.liveChannel(ctx, message.ChannelID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRead(ctx, actor, channel); err != nil {
		return nil, err
	}

	added, err := s.messages.ToggleReaction(ctx, &domain.Reaction{
		MessageID: messageID,
		UserID:    actor,
		Emoji:     emoji,
	})
	if err != nil {
		return nil, err
	}

	action := "removed"
	if added {
		action = "added"
	}
	payload := &ReactionUpdatePayload{
		MessageID: messageID,
		ChannelID: message.ChannelID,
		UserID:    actor,
		Emoji:     emoji,
		Action:    action,
	}
	s.notify(channel, domain.EventReactionUpdate, payload)
	return payload, nil
}

func (s *MessageService) liveChannel(ctx context.Context, channelID domain.ChannelID) (*domain.Channel, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Deleted() {
		return nil, domain.ErrChannelNotFound
	}
	return channel, nil
}

func (s *MessageService) requireWrite(ctx context.Context, actor domain.UserID, channel *domain.Channel) error {
	if channel.Direct() {
		return s.requireParticipant(ctx, actor, channel.ID)
	}
	ok, err := s.perms.Has(ctx, actor, channel.ServerID, channel.ID, domain.PermSendMessages)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func (s *MessageService) requireRead(ctx context.Context, actor domain.UserID, channel *domain.Channel) error {
	if channel.Direct() {
		return s.requireParticipant(ctx, actor, channel.ID)
	}
	ok, err := s.perms.Has(ctx, actor, channel.ServerID, channel.ID, domain.PermViewChannel)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func (s *MessageService) requireParticipant(ctx context.Context, actor domain.UserID, channelID domain.ChannelID) error {
	ok, err := s.channels.IsParticipant(ctx, channelID, actor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// toPayload resolves the author from the store rather than trusting
// token claims, which may carry a stale avatar.
func (s *MessageService) toPayload(ctx context.Context, message *domain.Message) *MessagePayload {
	payload := &MessagePayload{
		ID:        message.ID,
		ChannelID: message.ChannelID,
		AuthorID:  message.AuthorID,
		Content:   message.Content,
		ReplyToID: message.ReplyToID,
		IsEdited:  message.IsEdited,
		IsDeleted: message.IsDeleted,
		CreatedAt: message.CreatedAt.UnixMilli(),
		Author:    AuthorPayload{ID: message.AuthorID, Username: "unknown"},
	}
	if user, err := s.users.GetByID(ctx, message.AuthorID); err == nil {
		payload.Author = AuthorPayload{ID: user.ID, Username: user.Username, AvatarURL: user.AvatarURL}
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Warnw("author lookup failed", "user_id", message.AuthorID, "error", err)
	}
	return payload
}

// notify fans out after commit. Server channels carry the payload
// field, direct conversations the data field. Failures stay here.
func (s *MessageService) notify(channel *domain.Channel, eventType string, payload interface{}) {
	if s.broadcaster == nil {
		s.logger.Warnw("no broadcaster wired, event dropped", "type", eventType, "channel_id", channel.ID)
		return
	}
	event := domain.Event{Type: eventType}
	if channel.Direct() {
		event.Data = payload
	} else {
		event.Payload = payload
	}
	s.broadcaster.Broadcast(channel.ID, event)
}
