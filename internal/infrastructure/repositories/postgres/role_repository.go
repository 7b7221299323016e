package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"owlet/internal/core/domain"
)

type PostgresRoleRepository struct {
	store *Store
}

func NewPostgresRoleRepository(store *Store) *PostgresRoleRepository {
	return &PostgresRoleRepository{store: store}
}

func (r *PostgresRoleRepository) Create(ctx context.Context, role *domain.Role) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO roles (id, server_id, name, permissions, position)
		VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.ServerID, role.Name, int64(role.Permissions), role.Position)
	return err
}

func (r *PostgresRoleRepository) GetByID(ctx context.Context, id domain.RoleID) (*domain.Role, error) {
	var role domain.Role
	var permissions int64
	err := r.store.pool.QueryRow(ctx, `
		SELECT id, server_id, name, permissions, position
		FROM roles WHERE id = $1`, id).Scan(
		&role.ID, &role.ServerID, &role.Name, &permissions, &role.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	role.Permissions = domain.Bitmask(permissions)
	return &role, nil
}

func (r *PostgresRoleRepository) Update(ctx context.Context, role *domain.Role) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE roles SET name = $2, permissions = $3, position = $4
		WHERE id = $1`,
		role.ID, role.Name, int64(role.Permissions), role.Position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

func (r *PostgresRoleRepository) Delete(ctx context.Context, id domain.RoleID) error {
	tag, err := r.store.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

func (r *PostgresRoleRepository) ListForServer(ctx context.Context, serverID domain.ServerID) ([]*domain.Role, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT id, server_id, name, permissions, position
		FROM roles WHERE server_id = $1
		ORDER BY position DESC`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*domain.Role
	for rows.Next() {
		var role domain.Role
		var permissions int64
		if err := rows.Scan(&role.ID, &role.ServerID, &role.Name, &permissions, &role.Position); err != nil {
			return nil, err
		}
		role.Permissions = domain.Bitmask(permissions)
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

type PostgresOverrideRepository struct {
	store *Store
}

func NewPostgresOverrideRepository(store *Store) *PostgresOverrideRepository {
	return &PostgresOverrideRepository{store: store}
}

func (r *PostgresOverrideRepository) Upsert(ctx context.Context, override *domain.Override) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO channel_overrides (channel_id, role_id, user_id, allow, deny)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (channel_id, role_id, user_id) DO UPDATE
		SET allow = EXCLUDED.allow, deny = EXCLUDED.deny`,
		override.ChannelID, override.RoleID, override.UserID,
		int64(override.Allow), int64(override.Deny))
	return err
}

func (r *PostgresOverrideRepository) ListFor(ctx context.Context, channelID domain.ChannelID, roleID domain.RoleID, userID domain.UserID) ([]*domain.Override, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT channel_id, role_id, user_id, allow, deny
		FROM channel_overrides
		WHERE channel_id = $1
		  AND ((role_id <> '' AND role_id = $2) OR (user_id <> '' AND user_id = $3))`,
		channelID, roleID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []*domain.Override
	for rows.Next() {
		var override domain.Override
		var allow, deny int64
		if err := rows.Scan(&override.ChannelID, &override.RoleID, &override.UserID, &allow, &deny); err != nil {
			return nil, err
		}
		override.Allow = domain.Bitmask(allow)
		override.Deny = domain.Bitmask(deny)
		overrides = append(overrides, &override)
	}
	return overrides, rows.Err()
}
