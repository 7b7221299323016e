package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"

	"owlet/internal/core/domain"
)

type PostgresServerRepository struct {
	store *Store
}

func NewPostgresServerRepository(store *Store) *PostgresServerRepository {
	return &PostgresServerRepository{store: store}
}

// Create writes the server, its default role, the initial channel and
// the owner's membership inside one transaction.
func (r *PostgresServerRepository) Create(ctx context.Context, server *domain.Server, roles []*domain.Role, initial *domain.Channel, owner *domain.Member) error {
	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO servers (id, name, icon_url, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		server.ID, server.Name, server.IconURL, server.OwnerID, server.CreatedAt)
	for _, role := range roles {
		batch.Queue(`
			INSERT INTO roles (id, server_id, name, permissions, position)
			VALUES ($1, $2, $3, $4, $5)`,
			role.ID, role.ServerID, role.Name, int64(role.Permissions), role.Position)
	}
	batch.Queue(`
		INSERT INTO channels (id, server_id, name, type, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		initial.ID, initial.ServerID, initial.Name, string(initial.Type), initial.CreatedAt)
	batch.Queue(`
		INSERT INTO server_members (server_id, user_id, role_id, joined_at)
		VALUES ($1, $2, $3, $4)`,
		owner.ServerID, owner.UserID, owner.RoleID, owner.JoinedAt)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	if err := results.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresServerRepository) GetByID(ctx context.Context, id domain.ServerID) (*domain.Server, error) {
	var server domain.Server
	err := r.store.pool.QueryRow(ctx, `
		SELECT id, name, icon_url, owner_id, created_at, deleted_at
		FROM servers WHERE id = $1`, id).Scan(
		&server.ID, &server.Name, &server.IconURL, &server.OwnerID, &server.CreatedAt, &server.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrServerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &server, nil
}

func (r *PostgresServerRepository) Update(ctx context.Context, server *domain.Server) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE servers SET name = $2, icon_url = $3
		WHERE id = $1 AND deleted_at IS NULL`,
		server.ID, server.Name, server.IconURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrServerNotFound
	}
	return nil
}

func (r *PostgresServerRepository) SoftDelete(ctx context.Context, id domain.ServerID, at time.Time) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE servers SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrServerNotFound
	}
	return nil
}

func (r *PostgresServerRepository) ListForUser(ctx context.Context, userID domain.UserID) ([]*domain.Server, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT s.id, s.name, s.icon_url, s.owner_id, s.created_at, s.deleted_at
		FROM servers s
		JOIN server_members m ON m.server_id = s.id
		WHERE m.user_id = $1 AND m.left_at IS NULL AND s.deleted_at IS NULL
		ORDER BY s.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []*domain.Server
	for rows.Next() {
		var server domain.Server
		if err := rows.Scan(&server.ID, &server.Name, &server.IconURL, &server.OwnerID, &server.CreatedAt, &server.DeletedAt); err != nil {
			return nil, err
		}
		servers = append(servers, &server)
	}
	return servers, rows.Err()
}
