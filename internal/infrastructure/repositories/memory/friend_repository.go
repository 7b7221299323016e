package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

type MemoryFriendRepository struct {
	mu          sync.RWMutex
	friendships map[string]*domain.Friendship
	users       ports.UserRepository
}

func NewMemoryFriendRepository(users ports.UserRepository) *MemoryFriendRepository {
	return &MemoryFriendRepository{
		friendships: make(map[string]*domain.Friendship),
		users:       users,
	}
}

func (r *MemoryFriendRepository) Get(ctx context.Context, friendshipID string) (*domain.Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	friendship, exists := r.friendships[friendshipID]
	if !exists {
		return nil, domain.ErrFriendshipNotFound
	}
	copied := *friendship
	return &copied, nil
}

func (r *MemoryFriendRepository) Insert(ctx context.Context, friendship *domain.Friendship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *friendship
	r.friendships[friendship.ID] = &copied
	return nil
}

func (r *MemoryFriendRepository) UpdateStatus(ctx context.Context, friendshipID string, status domain.FriendshipStatus, actor domain.UserID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	friendship, exists := r.friendships[friendshipID]
	if !exists {
		return domain.ErrFriendshipNotFound
	}
	friendship.Status = status
	friendship.LastActionBy = actor
	friendship.Seen = false
	friendship.UpdatedAt = at
	return nil
}

func (r *MemoryFriendRepository) List(ctx context.Context, userID domain.UserID) ([]*domain.FriendView, error) {
	r.mu.RLock()
	var related []*domain.Friendship
	for _, friendship := range r.friendships {
		if friendship.UserA != userID && friendship.UserB != userID {
			continue
		}
		copied := *friendship
		related = append(related, &copied)
	}
	r.mu.RUnlock()

	views := make([]*domain.FriendView, 0, len(related))
	for _, friendship := range related {
		view := &domain.FriendView{Friendship: *friendship}
		if user, err := r.users.GetByID(ctx, friendship.Other(userID)); err == nil {
			view.OtherUser = *user
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].UpdatedAt.After(views[j].UpdatedAt)
	})
	return views, nil
}

func (r *MemoryFriendRepository) MarkSeen(ctx context.Context, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, friendship := range r.friendships {
		// Only state changes made by the counterpart are news to userID.
		if (friendship.UserA == userID || friendship.UserB == userID) && friendship.LastActionBy != userID {
			friendship.Seen = true
		}
	}
	return nil
}
