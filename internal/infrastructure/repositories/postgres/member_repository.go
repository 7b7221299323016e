package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"

	"owlet/internal/core/domain"
)

type PostgresMemberRepository struct {
	store *Store
}

func NewPostgresMemberRepository(store *Store) *PostgresMemberRepository {
	return &PostgresMemberRepository{store: store}
}

func (r *PostgresMemberRepository) Membership(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (*domain.Member, *domain.Role, error) {
	var member domain.Member
	var role domain.Role
	var permissions int64
	err := r.store.pool.QueryRow(ctx, `
		SELECT m.server_id, m.user_id, m.role_id, m.joined_at, m.left_at,
		       r.id, r.server_id, r.name, r.permissions, r.position
		FROM server_members m
		JOIN roles r ON r.id = m.role_id
		WHERE m.server_id = $1 AND m.user_id = $2 AND m.left_at IS NULL`,
		serverID, userID).Scan(
		&member.ServerID, &member.UserID, &member.RoleID, &member.JoinedAt, &member.LeftAt,
		&role.ID, &role.ServerID, &role.Name, &permissions, &role.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrNotMember
	}
	if err != nil {
		return nil, nil, err
	}
	role.Permissions = domain.Bitmask(permissions)
	return &member, &role, nil
}

// Add inserts a fresh membership, or revives a row whose holder left.
// An active duplicate is reported as domain.ErrAlreadyMember.
func (r *PostgresMemberRepository) Add(ctx context.Context, member *domain.Member) error {
	tag, err := r.store.pool.Exec(ctx, `
		INSERT INTO server_members (server_id, user_id, role_id, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (server_id, user_id) DO UPDATE
		SET role_id = EXCLUDED.role_id,
		    joined_at = EXCLUDED.joined_at,
		    left_at = NULL
		WHERE server_members.left_at IS NOT NULL`,
		member.ServerID, member.UserID, member.RoleID, member.JoinedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyMember
	}
	return nil
}

func (r *PostgresMemberRepository) Remove(ctx context.Context, serverID domain.ServerID, userID domain.UserID, at time.Time) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE server_members SET left_at = $3
		WHERE server_id = $1 AND user_id = $2 AND left_at IS NULL`,
		serverID, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (r *PostgresMemberRepository) SetRole(ctx context.Context, serverID domain.ServerID, userID domain.UserID, roleID domain.RoleID) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE server_members SET role_id = $3
		WHERE server_id = $1 AND user_id = $2 AND left_at IS NULL`,
		serverID, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (r *PostgresMemberRepository) List(ctx context.Context, serverID domain.ServerID) ([]*domain.MemberProfile, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT m.user_id, u.username, u.avatar_url, m.role_id, r.name, m.joined_at
		FROM server_members m
		JOIN users u ON u.id = m.user_id
		JOIN roles r ON r.id = m.role_id
		WHERE m.server_id = $1 AND m.left_at IS NULL
		ORDER BY m.user_id`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.MemberProfile
	for rows.Next() {
		var profile domain.MemberProfile
		if err := rows.Scan(&profile.UserID, &profile.Username, &profile.AvatarURL, &profile.RoleID, &profile.RoleName, &profile.JoinedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, &profile)
	}
	return profiles, rows.Err()
}
