package memory

import (
	"context"
	"sort"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
)

type MemoryMemberRepository struct {
	store *Store
}

func NewMemoryMemberRepository(store *Store) ports.MemberRepository {
	return &MemoryMemberRepository{store: store}
}

func (r *MemoryMemberRepository) Membership(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (*domain.Member, *domain.Role, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	members, ok := r.store.members[serverID]
	if !ok {
		return nil, nil, domain.ErrNotMember
	}
	member, ok := members[userID]
	if !ok || !member.Active() {
		return nil, nil, domain.ErrNotMember
	}
	role, ok := r.store.roles[member.RoleID]
	if !ok {
		return nil, nil, domain.ErrNotMember
	}

	m, rl := *member, *role
	return &m, &rl, nil
}

func (r *MemoryMemberRepository) Add(ctx context.Context, member *domain.Member) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.members[member.ServerID] == nil {
		r.store.members[member.ServerID] = make(map[domain.UserID]*domain.Member)
	}
	if existing, ok := r.store.members[member.ServerID][member.UserID]; ok && existing.Active() {
		return domain.ErrAlreadyMember
	}
	copied := *member
	r.store.members[member.ServerID][member.UserID] = &copied
	return nil
}

func (r *MemoryMemberRepository) Remove(ctx context.Context, serverID domain.ServerID, userID domain.UserID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	members, ok := r.store.members[serverID]
	if !ok {
		return domain.ErrNotMember
	}
	member, ok := members[userID]
	if !ok || !member.Active() {
		return domain.ErrNotMember
	}
	member.LeftAt = &at
	return nil
}

func (r *MemoryMemberRepository) SetRole(ctx context.Context, serverID domain.ServerID, userID domain.UserID, roleID domain.RoleID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	members, ok := r.store.members[serverID]
	if !ok {
		return domain.ErrNotMember
	}
	member, ok := members[userID]
	if !ok || !member.Active() {
		return domain.ErrNotMember
	}
	member.RoleID = roleID
	return nil
}

func (r *MemoryMemberRepository) List(ctx context.Context, serverID domain.ServerID) ([]*domain.MemberProfile, error) {
	r.store.mu.RLock()
	members := r.store.members[serverID]
	actives := make([]*domain.Member, 0, len(members))
	for _, m := range members {
		if m.Active() {
			copied := *m
			actives = append(actives, &copied)
		}
	}
	roles := make(map[domain.RoleID]string, len(r.store.roles))
	for id, role := range r.store.roles {
		roles[id] = role.Name
	}
	r.store.mu.RUnlock()

	profiles := make([]*domain.MemberProfile, 0, len(actives))
	for _, m := range actives {
		profile := &domain.MemberProfile{
			UserID:   m.UserID,
			RoleID:   m.RoleID,
			RoleName: roles[m.RoleID],
			JoinedAt: m.JoinedAt,
		}
		if user, err := r.store.users.GetByID(ctx, m.UserID); err == nil {
			profile.Username = user.Username
			profile.AvatarURL = user.AvatarURL
		}
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].UserID < profiles[j].UserID })
	return profiles, nil
}
