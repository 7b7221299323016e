package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"owlet/pkg/config"
	"owlet/pkg/retry"
)

// Store owns the connection pool shared by all SQL-backed repositories.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore connects to PostgreSQL, retrying with backoff so the gateway
// survives the database coming up after it, and applies migrations.
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	var pool *pgxpool.Pool
	retryCfg := retry.DefaultConfig()
	if cfg.Database.ConnectAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Database.ConnectAttempts
	}
	err = retry.Do(ctx, retryCfg, func() error {
		var connErr error
		pool, connErr = pgxpool.ConnectConfig(ctx, poolCfg)
		if connErr != nil {
			logger.Warn("database connect failed, retrying", zap.Error(connErr))
		}
		return connErr
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	store := &Store{pool: pool, logger: logger}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", zap.Int32("max_conns", cfg.Database.MaxConns))
	return store, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping answers the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL UNIQUE,
			email      TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			status     INT  NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS servers (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			icon_url   TEXT NOT NULL DEFAULT '',
			owner_id   TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS roles (
			id          TEXT PRIMARY KEY,
			server_id   TEXT NOT NULL REFERENCES servers(id),
			name        TEXT NOT NULL,
			permissions BIGINT NOT NULL DEFAULT 0,
			position    INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS server_members (
			server_id TEXT NOT NULL REFERENCES servers(id),
			user_id   TEXT NOT NULL REFERENCES users(id),
			role_id   TEXT NOT NULL REFERENCES roles(id),
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			left_at   TIMESTAMPTZ,
			PRIMARY KEY (server_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id         TEXT PRIMARY KEY,
			server_id  TEXT NOT NULL DEFAULT '',
			name       TEXT NOT NULL,
			type       TEXT NOT NULL DEFAULT 'text',
			icon_url   TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS channel_members (
			channel_id TEXT NOT NULL REFERENCES channels(id),
			user_id    TEXT NOT NULL REFERENCES users(id),
			PRIMARY KEY (channel_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS channel_overrides (
			channel_id TEXT NOT NULL REFERENCES channels(id),
			role_id    TEXT NOT NULL DEFAULT '',
			user_id    TEXT NOT NULL DEFAULT '',
			allow      BIGINT NOT NULL DEFAULT 0,
			deny       BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (channel_id, role_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			channel_id  TEXT NOT NULL REFERENCES channels(id),
			author_id   TEXT NOT NULL,
			content     TEXT NOT NULL,
			reply_to_id TEXT NOT NULL DEFAULT '',
			is_edited   BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages (channel_id, id DESC)`,
		`CREATE TABLE IF NOT EXISTS reactions (
			message_id TEXT NOT NULL REFERENCES messages(id),
			user_id    TEXT NOT NULL,
			emoji      TEXT NOT NULL,
			PRIMARY KEY (message_id, user_id, emoji)
		)`,
		`CREATE TABLE IF NOT EXISTS friendships (
			id             TEXT PRIMARY KEY,
			user_a         TEXT NOT NULL,
			user_b         TEXT NOT NULL,
			status         INT NOT NULL,
			last_action_by TEXT NOT NULL,
			seen           BOOLEAN NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS invites (
			code       TEXT PRIMARY KEY,
			server_id  TEXT NOT NULL REFERENCES servers(id),
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS bans (
			server_id TEXT NOT NULL REFERENCES servers(id),
			user_id   TEXT NOT NULL,
			reason    TEXT NOT NULL DEFAULT '',
			banned_by TEXT NOT NULL,
			banned_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (server_id, user_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
