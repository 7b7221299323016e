package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

// Store is the shared backing state for the in-memory backend.
// Server, member, role and override repositories all hang off one
// instance so cross-aggregate reads (membership joins role) work.
type Store struct {
	mu        sync.RWMutex
	servers   map[domain.ServerID]*domain.Server
	members   map[domain.ServerID]map[domain.UserID]*domain.Member
	roles     map[domain.RoleID]*domain.Role
	overrides map[domain.ChannelID][]*domain.Override
	users     ports.UserRepository
}

func NewStore(users ports.UserRepository) *Store {
	return &Store{
		servers:   make(map[domain.ServerID]*domain.Server),
		members:   make(map[domain.ServerID]map[domain.UserID]*domain.Member),
		roles:     make(map[domain.RoleID]*domain.Role),
		overrides: make(map[domain.ChannelID][]*domain.Override),
		users:     users,
	}
}

type MemoryServerRepository struct {
	store    *Store
	channels ports.ChannelRepository
}

func NewMemoryServerRepository(store *Store, channels ports.ChannelRepository) ports.ServerRepository {
	return &MemoryServerRepository{store: store, channels: channels}
}

func (r *MemoryServerRepository) Create(ctx context.Context, server *domain.Server, roles []*domain.Role, initial *domain.Channel, owner *domain.Member) error {
	r.store.mu.Lock()
	srv := *server
	r.store.servers[server.ID] = &srv
	for _, role := range roles {
		copied := *role
		r.store.roles[role.ID] = &copied
	}
	if r.store.members[server.ID] == nil {
		r.store.members[server.ID] = make(map[domain.UserID]*domain.Member)
	}
	m := *owner
	r.store.members[server.ID][owner.UserID] = &m
	r.store.mu.Unlock()

	if initial != nil {
		return r.channels.Create(ctx, initial)
	}
	return nil
}

func (r *MemoryServerRepository) GetByID(ctx context.Context, id domain.ServerID) (*domain.Server, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	server, exists := r.store.servers[id]
	if !exists {
		return nil, domain.ErrServerNotFound
	}
	copied := *server
	return &copied, nil
}

func (r *MemoryServerRepository) Update(ctx context.Context, server *domain.Server) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.servers[server.ID]; !exists {
		return domain.ErrServerNotFound
	}
	copied := *server
	r.store.servers[server.ID] = &copied
	return nil
}

func (r *MemoryServerRepository) SoftDelete(ctx context.Context, id domain.ServerID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	server, exists := r.store.servers[id]
	if !exists {
		return domain.ErrServerNotFound
	}
	server.DeletedAt = &at
	return nil
}

func (r *MemoryServerRepository) ListForUser(ctx context.Context, userID domain.UserID) ([]*domain.Server, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []*domain.Server
	for serverID, members := range r.store.members {
		member, ok := members[userID]
		if !ok || !member.Active() {
			continue
		}
		server, ok := r.store.servers[serverID]
		if !ok || server.Deleted() {
			continue
		}
		copied := *server
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
