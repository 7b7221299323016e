package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"

	"owlet/internal/core/domain"
)

type PostgresFriendRepository struct {
	store *Store
}

func NewPostgresFriendRepository(store *Store) *PostgresFriendRepository {
	return &PostgresFriendRepository{store: store}
}

func (r *PostgresFriendRepository) Get(ctx context.Context, friendshipID string) (*domain.Friendship, error) {
	var friendship domain.Friendship
	var status int
	err := r.store.pool.QueryRow(ctx, `
		SELECT id, user_a, user_b, status, last_action_by, seen, created_at, updated_at
		FROM friendships WHERE id = $1`, friendshipID).Scan(
		&friendship.ID, &friendship.UserA, &friendship.UserB, &status,
		&friendship.LastActionBy, &friendship.Seen, &friendship.CreatedAt, &friendship.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFriendshipNotFound
	}
	if err != nil {
		return nil, err
	}
	friendship.Status = domain.FriendshipStatus(status)
	return &friendship, nil
}

func (r *PostgresFriendRepository) Insert(ctx context.Context, friendship *domain.Friendship) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO friendships (id, user_a, user_b, status, last_action_by, seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		friendship.ID, friendship.UserA, friendship.UserB, int(friendship.Status),
		friendship.LastActionBy, friendship.Seen, friendship.CreatedAt, friendship.UpdatedAt)
	return err
}

func (r *PostgresFriendRepository) UpdateStatus(ctx context.Context, friendshipID string, status domain.FriendshipStatus, actor domain.UserID, at time.Time) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE friendships
		SET status = $2, last_action_by = $3, seen = FALSE, updated_at = $4
		WHERE id = $1`,
		friendshipID, int(status), actor, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFriendshipNotFound
	}
	return nil
}

func (r *PostgresFriendRepository) List(ctx context.Context, userID domain.UserID) ([]*domain.FriendView, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT f.id, f.user_a, f.user_b, f.status, f.last_action_by, f.seen, f.created_at, f.updated_at,
		       u.id, u.username, u.email, u.avatar_url, u.status, u.created_at
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.user_a = $1 THEN f.user_b ELSE f.user_a END
		WHERE f.user_a = $1 OR f.user_b = $1
		ORDER BY f.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*domain.FriendView
	for rows.Next() {
		var view domain.FriendView
		var friendStatus, userStatus int
		if err := rows.Scan(&view.Friendship.ID, &view.UserA, &view.UserB, &friendStatus,
			&view.LastActionBy, &view.Seen, &view.Friendship.CreatedAt, &view.Friendship.UpdatedAt,
			&view.OtherUser.ID, &view.OtherUser.Username, &view.OtherUser.Email,
			&view.OtherUser.AvatarURL, &userStatus, &view.OtherUser.CreatedAt); err != nil {
			return nil, err
		}
		view.Friendship.Status = domain.FriendshipStatus(friendStatus)
		view.OtherUser.Status = domain.PresenceStatus(userStatus)
		views = append(views, &view)
	}
	return views, rows.Err()
}

func (r *PostgresFriendRepository) MarkSeen(ctx context.Context, userID domain.UserID) error {
	_, err := r.store.pool.Exec(ctx, `
		UPDATE friendships SET seen = TRUE
		WHERE (user_a = $1 OR user_b = $1) AND last_action_by <> $1`, userID)
	return err
}
