package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"owlet/internal/core/domain"
)

type PostgresInviteRepository struct {
	store *Store
}

func NewPostgresInviteRepository(store *Store) *PostgresInviteRepository {
	return &PostgresInviteRepository{store: store}
}

func (r *PostgresInviteRepository) Create(ctx context.Context, invite *domain.Invite) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO invites (code, server_id, created_by, created_at)
		VALUES ($1, $2, $3, $4)`,
		invite.Code, invite.ServerID, invite.CreatedBy, invite.CreatedAt)
	return err
}

func (r *PostgresInviteRepository) GetByCode(ctx context.Context, code string) (*domain.Invite, error) {
	var invite domain.Invite
	err := r.store.pool.QueryRow(ctx, `
		SELECT code, server_id, created_by, created_at
		FROM invites WHERE code = $1`, code).Scan(
		&invite.Code, &invite.ServerID, &invite.CreatedBy, &invite.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

type PostgresBanRepository struct {
	store *Store
}

func NewPostgresBanRepository(store *Store) *PostgresBanRepository {
	return &PostgresBanRepository{store: store}
}

func (r *PostgresBanRepository) Add(ctx context.Context, ban *domain.Ban) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO bans (server_id, user_id, reason, banned_by, banned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (server_id, user_id) DO UPDATE
		SET reason = EXCLUDED.reason, banned_by = EXCLUDED.banned_by, banned_at = EXCLUDED.banned_at`,
		ban.ServerID, ban.UserID, ban.Reason, ban.BannedBy, ban.BannedAt)
	return err
}

func (r *PostgresBanRepository) Remove(ctx context.Context, serverID domain.ServerID, userID domain.UserID) error {
	_, err := r.store.pool.Exec(ctx, `
		DELETE FROM bans WHERE server_id = $1 AND user_id = $2`, serverID, userID)
	return err
}

func (r *PostgresBanRepository) List(ctx context.Context, serverID domain.ServerID) ([]*domain.BanView, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT b.server_id, b.user_id, b.reason, b.banned_by, b.banned_at,
		       COALESCE(u.username, ''), COALESCE(u.avatar_url, '')
		FROM bans b
		LEFT JOIN users u ON u.id = b.user_id
		WHERE b.server_id = $1
		ORDER BY b.banned_at DESC`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*domain.BanView
	for rows.Next() {
		var view domain.BanView
		if err := rows.Scan(&view.ServerID, &view.UserID, &view.Reason, &view.BannedBy,
			&view.BannedAt, &view.Username, &view.AvatarURL); err != nil {
			return nil, err
		}
		views = append(views, &view)
	}
	return views, rows.Err()
}

func (r *PostgresBanRepository) IsBanned(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error) {
	var banned bool
	err := r.store.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bans WHERE server_id = $1 AND user_id = $2
		)`, serverID, userID).Scan(&banned)
	return banned, err
}
