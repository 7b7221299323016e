package memory

import (
	"context"
	"sort"
	"sync"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

type MemoryInviteRepository struct {
	mu      sync.RWMutex
	invites map[string]*domain.Invite
}

func NewMemoryInviteRepository() *MemoryInviteRepository {
	return &MemoryInviteRepository{invites: make(map[string]*domain.Invite)}
}

func (r *MemoryInviteRepository) Create(ctx context.Context, invite *domain.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *invite
	r.invites[invite.Code] = &copied
	return nil
}

func (r *MemoryInviteRepository) GetByCode(ctx context.Context, code string) (*domain.Invite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	invite, exists := r.invites[code]
	if !exists {
		return nil, domain.ErrInviteNotFound
	}
	copied := *invite
	return &copied, nil
}

type banKey struct {
	serverID domain.ServerID
	userID   domain.UserID
}

type MemoryBanRepository struct {
	mu    sync.RWMutex
	bans  map[banKey]*domain.Ban
	users ports.UserRepository
}

func NewMemoryBanRepository(users ports.UserRepository) *MemoryBanRepository {
	return &MemoryBanRepository{
		bans:  make(map[banKey]*domain.Ban),
		users: users,
	}
}

func (r *MemoryBanRepository) Add(ctx context.Context, ban *domain.Ban) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *ban
	r.bans[banKey{ban.ServerID, ban.UserID}] = &copied
	return nil
}

func (r *MemoryBanRepository) Remove(ctx context.Context, serverID domain.ServerID, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.bans, banKey{serverID, userID})
	return nil
}

func (r *MemoryBanRepository) List(ctx context.Context, serverID domain.ServerID) ([]*domain.BanView, error) {
	r.mu.RLock()
	var matched []*domain.Ban
	for _, ban := range r.bans {
		if ban.ServerID != serverID {
			continue
		}
		copied := *ban
		matched = append(matched, &copied)
	}
	r.mu.RUnlock()

	views := make([]*domain.BanView, 0, len(matched))
	for _, ban := range matched {
		view := &domain.BanView{Ban: *ban}
		if user, err := r.users.GetByID(ctx, ban.UserID); err == nil {
			view.Username = user.Username
			view.AvatarURL = user.AvatarURL
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].BannedAt.After(views[j].BannedAt)
	})
	return views, nil
}

func (r *MemoryBanRepository) IsBanned(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, banned := r.bans[banKey{serverID, userID}]
	return banned, nil
}
