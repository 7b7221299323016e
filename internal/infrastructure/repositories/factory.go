package repositories

import (
	"context"

	"go.uber.org/zap"

	"owlet/internal/core/ports"
	"owlet/internal/infrastructure/repositories/memory"
	"owlet/internal/infrastructure/repositories/postgres"
	"owlet/pkg/config"
)

// Set bundles every repository behind its port interface. The gateway
// receives one Set and never learns which backend produced it.
type Set struct {
	Users     ports.UserRepository
	Servers   ports.ServerRepository
	Members   ports.MemberRepository
	Roles     ports.RoleRepository
	Overrides ports.OverrideRepository
	Channels  ports.ChannelRepository
	Messages  ports.MessageRepository
	Friends   ports.FriendRepository
	Invites   ports.InviteRepository
	Bans      ports.BanRepository

	store *postgres.Store
}

// NewSet builds the repository set. A configured database URL selects
// the SQL backend; an empty one selects the in-memory backend, meant
// for development and tests. The database is the source of truth, so a
// configured-but-unreachable database is a startup failure rather than
// a silent fallback.
func NewSet(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Set, error) {
	if cfg.Database.URL == "" {
		logger.Info("using memory repositories")
		return NewMemorySet(), nil
	}

	store, err := postgres.NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("using postgres repositories")
	return &Set{
		Users:     postgres.NewPostgresUserRepository(store),
		Servers:   postgres.NewPostgresServerRepository(store),
		Members:   postgres.NewPostgresMemberRepository(store),
		Roles:     postgres.NewPostgresRoleRepository(store),
		Overrides: postgres.NewPostgresOverrideRepository(store),
		Channels:  postgres.NewPostgresChannelRepository(store),
		Messages:  postgres.NewPostgresMessageRepository(store),
		Friends:   postgres.NewPostgresFriendRepository(store),
		Invites:   postgres.NewPostgresInviteRepository(store),
		Bans:      postgres.NewPostgresBanRepository(store),
		store:     store,
	}, nil
}

// NewMemorySet wires the in-memory backend. Exported for tests.
func NewMemorySet() *Set {
	users := memory.NewMemoryUserRepository()
	store := memory.NewStore(users)
	messages := memory.NewMemoryMessageRepository(users)
	channels := memory.NewMemoryChannelRepository(users, messages)
	return &Set{
		Users:     users,
		Servers:   memory.NewMemoryServerRepository(store, channels),
		Members:   memory.NewMemoryMemberRepository(store),
		Roles:     memory.NewMemoryRoleRepository(store),
		Overrides: memory.NewMemoryOverrideRepository(store),
		Channels:  channels,
		Messages:  messages,
		Friends:   memory.NewMemoryFriendRepository(users),
		Invites:   memory.NewMemoryInviteRepository(),
		Bans:      memory.NewMemoryBanRepository(users),
	}
}

// Ping verifies the backend is reachable. The memory backend is always
// ready.
func (s *Set) Ping(ctx context.Context) error {
	if s.store != nil {
		return s.store.Ping(ctx)
	}
	return nil
}

// Close releases backend resources, if any.
func (s *Set) Close() {
	if s.store != nil {
		s.store.Close()
	}
}
