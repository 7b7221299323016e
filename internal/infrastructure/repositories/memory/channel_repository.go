package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

type MemoryChannelRepository struct {
	mu           sync.RWMutex
	channels     map[domain.ChannelID]*domain.Channel
	participants map[domain.ChannelID][]domain.UserID
	messages     *MemoryMessageRepository
	users        ports.UserRepository
}

func NewMemoryChannelRepository(users ports.UserRepository, messages *MemoryMessageRepository) *MemoryChannelRepository {
	return &MemoryChannelRepository{
		channels:     make(map[domain.ChannelID]*domain.Channel),
		participants: make(map[domain.ChannelID][]domain.UserID),
		messages:     messages,
		users:        users,
	}
}

func (r *MemoryChannelRepository) Create(ctx context.Context, channel *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *channel
	r.channels[channel.ID] = &copied
	return nil
}

func (r *MemoryChannelRepository) GetByID(ctx context.Context, id domain.ChannelID) (*domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channel, exists := r.channels[id]
	if !exists {
		return nil, domain.ErrChannelNotFound
	}
	copied := *channel
	return &copied, nil
}

func (r *MemoryChannelRepository) Update(ctx context.Context, channel *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[channel.ID]; !exists {
		return domain.ErrChannelNotFound
	}
	copied := *channel
	r.channels[channel.ID] = &copied
	return nil
}

func (r *MemoryChannelRepository) SoftDelete(ctx context.Context, id domain.ChannelID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	channel, exists := r.channels[id]
	if !exists {
		return domain.ErrChannelNotFound
	}
	channel.DeletedAt = &at
	return nil
}

func (r *MemoryChannelRepository) ListForServer(ctx context.Context, serverID domain.ServerID) ([]*domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Channel
	for _, channel := range r.channels {
		if channel.ServerID == serverID && !channel.Deleted() {
			copied := *channel
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryChannelRepository) CreateDirect(ctx context.Context, channel *domain.Channel, participants []domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *channel
	r.channels[channel.ID] = &copied
	r.participants[channel.ID] = append([]domain.UserID(nil), participants...)
	return nil
}

func (r *MemoryChannelRepository) IsParticipant(ctx context.Context, channelID domain.ChannelID, userID domain.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.participants[channelID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryChannelRepository) Participants(ctx context.Context, channelID domain.ChannelID) ([]domain.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.UserID(nil), r.participants[channelID]...), nil
}

func (r *MemoryChannelRepository) ListDirectForUser(ctx context.Context, userID domain.UserID) ([]*domain.DirectChannelView, error) {
	r.mu.RLock()
	var views []*domain.DirectChannelView
	for channelID, members := range r.participants {
		joined := false
		for _, id := range members {
			if id == userID {
				joined = true
				break
			}
		}
		if !joined {
			continue
		}
		channel, ok := r.channels[channelID]
		if !ok || channel.Deleted() {
			continue
		}
		view := &domain.DirectChannelView{Channel: *channel, LastActivity: domain.MessageID(channel.ID)}
		for _, id := range members {
			if user, err := r.users.GetByID(ctx, id); err == nil {
				view.Participants = append(view.Participants, *user)
			}
		}
		views = append(views, view)
	}
	r.mu.RUnlock()

	if r.messages != nil {
		for _, view := range views {
			if last := r.messages.newestID(view.Channel.ID); last != "" {
				view.LastActivity = last
			}
		}
	}

	// Newest activity first; snowflake ids order by time.
	sort.Slice(views, func(i, j int) bool { return views[i].LastActivity > views[j].LastActivity })
	return views, nil
}
