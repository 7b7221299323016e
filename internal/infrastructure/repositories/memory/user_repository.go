package memory

import (
	"context"
	"sync"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

type MemoryUserRepository struct {
	users map[domain.UserID]*domain.User
	mu    sync.RWMutex
}

func NewMemoryUserRepository() ports.UserRepository {
	return &MemoryUserRepository{
		users: make(map[domain.UserID]*domain.User),
	}
}

func (r *MemoryUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == user.Username && existing.ID != user.ID {
			return domain.ErrUsernameTaken
		}
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *MemoryUserRepository) UpdateProfile(ctx context.Context, id domain.UserID, username, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return domain.ErrUserNotFound
	}
	if username != "" {
		for _, existing := range r.users {
			if existing.Username == username && existing.ID != id {
				return domain.ErrUsernameTaken
			}
		}
		user.Username = username
	}
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}
	return nil
}
