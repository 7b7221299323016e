package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"

	"owlet/internal/core/domain"
)

type PostgresChannelRepository struct {
	store *Store
}

func NewPostgresChannelRepository(store *Store) *PostgresChannelRepository {
	return &PostgresChannelRepository{store: store}
}

func (r *PostgresChannelRepository) Create(ctx context.Context, channel *domain.Channel) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO channels (id, server_id, name, type, icon_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		channel.ID, channel.ServerID, channel.Name, string(channel.Type), channel.IconURL, channel.CreatedAt)
	return err
}

func (r *PostgresChannelRepository) GetByID(ctx context.Context, id domain.ChannelID) (*domain.Channel, error) {
	var channel domain.Channel
	var channelType string
	err := r.store.pool.QueryRow(ctx, `
		SELECT id, server_id, name, type, icon_url, created_at, deleted_at
		FROM channels WHERE id = $1`, id).Scan(
		&channel.ID, &channel.ServerID, &channel.Name, &channelType, &channel.IconURL, &channel.CreatedAt, &channel.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	channel.Type = domain.ChannelType(channelType)
	return &channel, nil
}

func (r *PostgresChannelRepository) Update(ctx context.Context, channel *domain.Channel) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE channels SET name = $2, icon_url = $3
		WHERE id = $1 AND deleted_at IS NULL`,
		channel.ID, channel.Name, channel.IconURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChannelNotFound
	}
	return nil
}

func (r *PostgresChannelRepository) SoftDelete(ctx context.Context, id domain.ChannelID, at time.Time) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE channels SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChannelNotFound
	}
	return nil
}

func (r *PostgresChannelRepository) ListForServer(ctx context.Context, serverID domain.ServerID) ([]*domain.Channel, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT id, server_id, name, type, icon_url, created_at, deleted_at
		FROM channels
		WHERE server_id = $1 AND deleted_at IS NULL
		ORDER BY id`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (r *PostgresChannelRepository) CreateDirect(ctx context.Context, channel *domain.Channel, participants []domain.UserID) error {
	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO channels (id, server_id, name, type, icon_url, created_at)
		VALUES ($1, '', $2, $3, $4, $5)`,
		channel.ID, channel.Name, string(channel.Type), channel.IconURL, channel.CreatedAt); err != nil {
		return err
	}
	for _, userID := range participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, channel.ID, userID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresChannelRepository) IsParticipant(ctx context.Context, channelID domain.ChannelID, userID domain.UserID) (bool, error) {
	var exists bool
	err := r.store.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM channel_members WHERE channel_id = $1 AND user_id = $2
		)`, channelID, userID).Scan(&exists)
	return exists, err
}

func (r *PostgresChannelRepository) Participants(ctx context.Context, channelID domain.ChannelID) ([]domain.UserID, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT user_id FROM channel_members WHERE channel_id = $1 ORDER BY user_id`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []domain.UserID
	for rows.Next() {
		var userID domain.UserID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		participants = append(participants, userID)
	}
	return participants, rows.Err()
}

func (r *PostgresChannelRepository) ListDirectForUser(ctx context.Context, userID domain.UserID) ([]*domain.DirectChannelView, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT c.id, c.server_id, c.name, c.type, c.icon_url, c.created_at, c.deleted_at,
		       COALESCE((SELECT MAX(id) FROM messages WHERE channel_id = c.id), c.id)
		FROM channels c
		JOIN channel_members cm ON cm.channel_id = c.id
		WHERE cm.user_id = $1 AND c.deleted_at IS NULL
		ORDER BY 8 DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*domain.DirectChannelView
	for rows.Next() {
		var view domain.DirectChannelView
		var channelType string
		if err := rows.Scan(&view.ID, &view.Channel.ServerID, &view.Channel.Name, &channelType,
			&view.IconURL, &view.Channel.CreatedAt, &view.Channel.DeletedAt, &view.LastActivity); err != nil {
			return nil, err
		}
		view.Type = domain.ChannelType(channelType)
		views = append(views, &view)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, view := range views {
		userRows, err := r.store.pool.Query(ctx, `
			SELECT u.id, u.username, u.email, u.avatar_url, u.status, u.created_at
			FROM users u
			JOIN channel_members cm ON cm.user_id = u.id
			WHERE cm.channel_id = $1
			ORDER BY u.id`, view.Channel.ID)
		if err != nil {
			return nil, err
		}
		for userRows.Next() {
			var user domain.User
			var status int
			if err := userRows.Scan(&user.ID, &user.Username, &user.Email, &user.AvatarURL, &status, &user.CreatedAt); err != nil {
				userRows.Close()
				return nil, err
			}
			user.Status = domain.PresenceStatus(status)
			view.Participants = append(view.Participants, user)
		}
		userRows.Close()
		if err := userRows.Err(); err != nil {
			return nil, err
		}
	}
	return views, nil
}

func scanChannels(rows pgx.Rows) ([]*domain.Channel, error) {
	var channels []*domain.Channel
	for rows.Next() {
		var channel domain.Channel
		var channelType string
		if err := rows.Scan(&channel.ID, &channel.ServerID, &channel.Name, &channelType,
			&channel.IconURL, &channel.CreatedAt, &channel.DeletedAt); err != nil {
			return nil, err
		}
		channel.Type = domain.ChannelType(channelType)
		channels = append(channels, &channel)
	}
	return channels, rows.Err()
}
