package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

type MemoryMessageRepository struct {
	mu        sync.RWMutex
	messages  map[domain.MessageID]*domain.Message
	reactions map[domain.MessageID][]domain.Reaction
	users     ports.UserRepository
}

func NewMemoryMessageRepository(users ports.UserRepository) *MemoryMessageRepository {
	return &MemoryMessageRepository{
		messages:  make(map[domain.MessageID]*domain.Message),
		reactions: make(map[domain.MessageID][]domain.Reaction),
		users:     users,
	}
}

func (r *MemoryMessageRepository) Insert(ctx context.Context, message *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

func (r *MemoryMessageRepository) GetByID(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	message, exists := r.messages[id]
	if !exists {
		return nil, domain.ErrMessageNotFound
	}
	copied := *message
	return &copied, nil
}

func (r *MemoryMessageRepository) ListBefore(ctx context.Context, channelID domain.ChannelID, before domain.MessageID, limit int) ([]*domain.MessageView, error) {
	r.mu.RLock()
	var page []*domain.Message
	for _, message := range r.messages {
		if message.ChannelID != channelID {
			continue
		}
		if before != "" && message.ID >= before {
			continue
		}
		copied := *message
		page = append(page, &copied)
	}
	r.mu.RUnlock()

	// Newest first, same ordering the SQL backend produces.
	sort.Slice(page, func(i, j int) bool { return page[i].ID > page[j].ID })
	if len(page) > limit {
		page = page[:limit]
	}

	views := make([]*domain.MessageView, 0, len(page))
	for _, message := range page {
		view := &domain.MessageView{Message: *message}
		if user, err := r.users.GetByID(ctx, message.AuthorID); err == nil {
			view.AuthorUsername = user.Username
			view.AuthorAvatarURL = user.AvatarURL
		}
		counts, _ := r.ReactionCounts(ctx, message.ID)
		view.Reactions = counts
		view.Sanitize()
		views = append(views, view)
	}
	return views, nil
}

func (r *MemoryMessageRepository) Search(ctx context.Context, channelID domain.ChannelID, query string, limit int) ([]*domain.MessageView, error) {
	needle := strings.ToLower(query)

	r.mu.RLock()
	var matches []*domain.Message
	for _, message := range r.messages {
		if message.ChannelID != channelID || message.IsDeleted {
			continue
		}
		if !strings.Contains(strings.ToLower(message.Content), needle) {
			continue
		}
		copied := *message
		matches = append(matches, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	views := make([]*domain.MessageView, 0, len(matches))
	for _, message := range matches {
		view := &domain.MessageView{Message: *message}
		if user, err := r.users.GetByID(ctx, message.AuthorID); err == nil {
			view.AuthorUsername = user.Username
			view.AuthorAvatarURL = user.AvatarURL
		}
		counts, _ := r.ReactionCounts(ctx, message.ID)
		view.Reactions = counts
		views = append(views, view)
	}
	return views, nil
}

func (r *MemoryMessageRepository) SetContent(ctx context.Context, id domain.MessageID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, exists := r.messages[id]
	if !exists {
		return domain.ErrMessageNotFound
	}
	message.Content = content
	message.IsEdited = true
	return nil
}

func (r *MemoryMessageRepository) SoftDelete(ctx context.Context, id domain.MessageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, exists := r.messages[id]
	if !exists {
		return domain.ErrMessageNotFound
	}
	message.IsDeleted = true
	return nil
}

func (r *MemoryMessageRepository) ToggleReaction(ctx context.Context, reaction *domain.Reaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.messages[reaction.MessageID]; !exists {
		return false, domain.ErrMessageNotFound
	}

	existing := r.reactions[reaction.MessageID]
	for i, current := range existing {
		if current.UserID == reaction.UserID && current.Emoji == reaction.Emoji {
			r.reactions[reaction.MessageID] = append(existing[:i], existing[i+1:]...)
			return false, nil
		}
	}
	r.reactions[reaction.MessageID] = append(existing, *reaction)
	return true, nil
}

func (r *MemoryMessageRepository) ReactionCounts(ctx context.Context, messageID domain.MessageID) ([]domain.ReactionCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, reaction := range r.reactions[messageID] {
		counts[reaction.Emoji]++
	}
	result := make([]domain.ReactionCount, 0, len(counts))
	for emoji, count := range counts {
		result = append(result, domain.ReactionCount{Emoji: emoji, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Emoji < result[j].Emoji })
	return result, nil
}

// newestID returns the id of the most recent message in a channel, or
// empty when the channel has no messages.
func (r *MemoryMessageRepository) newestID(channelID domain.ChannelID) domain.MessageID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest domain.MessageID
	for _, message := range r.messages {
		if message.ChannelID == channelID && message.ID > newest {
			newest = message.ID
		}
	}
	return newest
}
