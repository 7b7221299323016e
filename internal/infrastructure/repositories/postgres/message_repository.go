package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"owlet/internal/core/domain"
)

type PostgresMessageRepository struct {
	store *Store
}

func NewPostgresMessageRepository(store *Store) *PostgresMessageRepository {
	return &PostgresMessageRepository{store: store}
}

func (r *PostgresMessageRepository) Insert(ctx context.Context, message *domain.Message) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO messages (id, channel_id, author_id, content, reply_to_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		message.ID, message.ChannelID, message.AuthorID, message.Content, message.ReplyToID, message.CreatedAt)
	return err
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	var message domain.Message
	err := r.store.pool.QueryRow(ctx, `
		SELECT id, channel_id, author_id, content, reply_to_id, is_edited, is_deleted, created_at
		FROM messages WHERE id = $1`, id).Scan(
		&message.ID, &message.ChannelID, &message.AuthorID, &message.Content,
		&message.ReplyToID, &message.IsEdited, &message.IsDeleted, &message.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *PostgresMessageRepository) ListBefore(ctx context.Context, channelID domain.ChannelID, before domain.MessageID, limit int) ([]*domain.MessageView, error) {
	query := `
		SELECT m.id, m.channel_id, m.author_id, m.content, m.reply_to_id,
		       m.is_edited, m.is_deleted, m.created_at,
		       COALESCE(u.username, ''), COALESCE(u.avatar_url, '')
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.channel_id = $1`
	args := []interface{}{channelID}
	if before != "" {
		query += ` AND m.id < $2 ORDER BY m.id DESC LIMIT $3`
		args = append(args, before, limit)
	} else {
		query += ` ORDER BY m.id DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.store.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*domain.MessageView
	for rows.Next() {
		var view domain.MessageView
		if err := rows.Scan(&view.Message.ID, &view.Message.ChannelID, &view.Message.AuthorID,
			&view.Message.Content, &view.Message.ReplyToID, &view.Message.IsEdited,
			&view.Message.IsDeleted, &view.Message.CreatedAt,
			&view.AuthorUsername, &view.AuthorAvatarURL); err != nil {
			return nil, err
		}
		views = append(views, &view)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, view := range views {
		counts, err := r.ReactionCounts(ctx, view.Message.ID)
		if err != nil {
			return nil, err
		}
		view.Reactions = counts
		view.Sanitize()
	}
	return views, nil
}

func (r *PostgresMessageRepository) Search(ctx context.Context, channelID domain.ChannelID, query string, limit int) ([]*domain.MessageView, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT m.id, m.channel_id, m.author_id, m.content, m.reply_to_id,
		       m.is_edited, m.is_deleted, m.created_at,
		       COALESCE(u.username, ''), COALESCE(u.avatar_url, '')
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.channel_id = $1
		  AND m.is_deleted = FALSE
		  AND m.content ILIKE '%' || $2 || '%'
		ORDER BY m.id DESC
		LIMIT $3`, channelID, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*domain.MessageView
	for rows.Next() {
		var view domain.MessageView
		if err := rows.Scan(&view.Message.ID, &view.Message.ChannelID, &view.Message.AuthorID,
			&view.Message.Content, &view.Message.ReplyToID, &view.Message.IsEdited,
			&view.Message.IsDeleted, &view.Message.CreatedAt,
			&view.AuthorUsername, &view.AuthorAvatarURL); err != nil {
			return nil, err
		}
		views = append(views, &view)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, view := range views {
		counts, err := r.ReactionCounts(ctx, view.Message.ID)
		if err != nil {
			return nil, err
		}
		view.Reactions = counts
	}
	return views, nil
}

func (r *PostgresMessageRepository) SetContent(ctx context.Context, id domain.MessageID, content string) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE messages SET content = $2, is_edited = TRUE
		WHERE id = $1 AND is_deleted = FALSE`, id, content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id domain.MessageID) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE messages SET is_deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) ToggleReaction(ctx context.Context, reaction *domain.Reaction) (bool, error) {
	tag, err := r.store.pool.Exec(ctx, `
		DELETE FROM reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`,
		reaction.MessageID, reaction.UserID, reaction.Emoji)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.store.pool.Exec(ctx, `
		INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		reaction.MessageID, reaction.UserID, reaction.Emoji)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresMessageRepository) ReactionCounts(ctx context.Context, messageID domain.MessageID) ([]domain.ReactionCount, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT emoji, COUNT(*) FROM reactions
		WHERE message_id = $1
		GROUP BY emoji
		ORDER BY emoji`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.ReactionCount
	for rows.Next() {
		var count domain.ReactionCount
		if err := rows.Scan(&count.Emoji, &count.Count); err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}
