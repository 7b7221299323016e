package memory

import (
	"context"
	"sort"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

type MemoryRoleRepository struct {
	store *Store
}

func NewMemoryRoleRepository(store *Store) ports.RoleRepository {
	return &MemoryRoleRepository{store: store}
}

func (r *MemoryRoleRepository) Create(ctx context.Context, role *domain.Role) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *role
	r.store.roles[role.ID] = &copied
	return nil
}

func (r *MemoryRoleRepository) GetByID(ctx context.Context, id domain.RoleID) (*domain.Role, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	role, exists := r.store.roles[id]
	if !exists {
		return nil, domain.ErrRoleNotFound
	}
	copied := *role
	return &copied, nil
}

func (r *MemoryRoleRepository) Update(ctx context.Context, role *domain.Role) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.roles[role.ID]; !exists {
		return domain.ErrRoleNotFound
	}
	copied := *role
	r.store.roles[role.ID] = &copied
	return nil
}

func (r *MemoryRoleRepository) Delete(ctx context.Context, id domain.RoleID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.roles[id]; !exists {
		return domain.ErrRoleNotFound
	}
	delete(r.store.roles, id)
	return nil
}

func (r *MemoryRoleRepository) ListForServer(ctx context.Context, serverID domain.ServerID) ([]*domain.Role, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []*domain.Role
	for _, role := range r.store.roles {
		if role.ServerID == serverID {
			copied := *role
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position > result[j].Position })
	return result, nil
}

type MemoryOverrideRepository struct {
	store *Store
}

func NewMemoryOverrideRepository(store *Store) ports.OverrideRepository {
	return &MemoryOverrideRepository{store: store}
}

func (r *MemoryOverrideRepository) Upsert(ctx context.Context, override *domain.Override) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *override
	existing := r.store.overrides[override.ChannelID]
	for i, o := range existing {
		sameRole := override.RoleID != "" && o.RoleID == override.RoleID
		sameUser := override.UserID != "" && o.UserID == override.UserID
		if sameRole || sameUser {
			existing[i] = &copied
			return nil
		}
	}
	r.store.overrides[override.ChannelID] = append(existing, &copied)
	return nil
}

func (r *MemoryOverrideRepository) ListFor(ctx context.Context, channelID domain.ChannelID, roleID domain.RoleID, userID domain.UserID) ([]*domain.Override, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []*domain.Override
	for _, o := range r.store.overrides[channelID] {
		if (o.RoleID != "" && o.RoleID == roleID) || (o.UserID != "" && o.UserID == userID) {
			copied := *o
			result = append(result, &copied)
		}
	}
	return result, nil
}
