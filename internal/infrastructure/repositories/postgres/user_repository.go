package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"

	"owlet/internal/core/domain"
)

type PostgresUserRepository struct {
	store *Store
}

func NewPostgresUserRepository(store *Store) *PostgresUserRepository {
	return &PostgresUserRepository{store: store}
}

func (r *PostgresUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, avatar_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    email = EXCLUDED.email,
		    avatar_url = EXCLUDED.avatar_url`,
		user.ID, user.Username, user.Email, user.AvatarURL, int(user.Status), user.CreatedAt)
	return mapUniqueViolation(err, domain.ErrUsernameTaken)
}

// mapUniqueViolation turns a 23505 into the given domain sentinel.
func mapUniqueViolation(err error, sentinel error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return sentinel
	}
	return err
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return r.scanOne(ctx, `
		SELECT id, username, email, avatar_url, status, created_at
		FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanOne(ctx, `
		SELECT id, username, email, avatar_url, status, created_at
		FROM users WHERE username = $1`, username)
}

func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id domain.UserID, username, avatarURL string) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE users SET username = $2, avatar_url = $3 WHERE id = $1`,
		id, username, avatarURL)
	if err != nil {
		return mapUniqueViolation(err, domain.ErrUsernameTaken)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) scanOne(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	var user domain.User
	var status int
	err := r.store.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL, &status, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.Status = domain.PresenceStatus(status)
	return &user, nil
}
