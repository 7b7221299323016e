package services

import (
	"context"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
	apperrors "owlet/pkg/errors"
	"owlet/pkg/validation"
)

// RoleService manages a server's role set. Members always hold exactly
// one role; the position-0 baseline role cannot be deleted.
type RoleService struct {
	roles ports.RoleRepository
	perms ports.PermissionResolver
	ids   ports.IDGenerator
}

func NewRoleService(roles ports.RoleRepository, perms ports.PermissionResolver, ids ports.IDGenerator) *RoleService {
	return &RoleService{roles: roles, perms: perms, ids: ids}
}

func (s *RoleService) List(ctx context.Context, actor domain.UserID, serverID domain.ServerID) ([]*domain.Role, error) {
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermViewChannel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return s.roles.ListForServer(ctx, serverID)
}

func (s *RoleService) Create(ctx context.Context, actor domain.UserID, serverID domain.ServerID, name string, permissions domain.Bitmask, position int) (*domain.Role, error) {
	if err := validation.ValidateEntityName("role", name); err != nil {
		return nil, err
	}
	if err := s.requireManage(ctx, actor, serverID); err != nil {
		return nil, err
	}
	if position <= 0 {
		return nil, apperrors.NewInvalidInputError("role position must be positive")
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, err
	}
	role := &domain.Role{
		ID:          domain.RoleID(id),
		ServerID:    serverID,
		Name:        name,
		Permissions: permissions,
		Position:    position,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RoleService) Update(ctx context.Context, actor domain.UserID, serverID domain.ServerID, roleID domain.RoleID, name string, permissions domain.Bitmask, position int) (*domain.Role, error) {
	if err := s.requireManage(ctx, actor, serverID); err != nil {
		return nil, err
	}
	role, err := s.serverRole(ctx, serverID, roleID)
	if err != nil {
		return nil, err
	}

	if name != "" && role.Name != "@everyone" {
		if err := validation.ValidateEntityName("role", name); err != nil {
			return nil, err
		}
		role.Name = name
	}
	role.Permissions = permissions
	if position > 0 && role.Position != 0 {
		role.Position = position
	}
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RoleService) Delete(ctx context.Context, actor domain.UserID, serverID domain.ServerID, roleID domain.RoleID) error {
	if err := s.requireManage(ctx, actor, serverID); err != nil {
		return err
	}
	role, err := s.serverRole(ctx, serverID, roleID)
	if err != nil {
		return err
	}
	if role.Position == 0 || role.Name == "@everyone" {
		return apperrors.NewInvalidInputError("the baseline role cannot be deleted")
	}
	return s.roles.Delete(ctx, roleID)
}

func (s *RoleService) requireManage(ctx context.Context, actor domain.UserID, serverID domain.ServerID) error {
	ok, err := s.perms.Has(ctx, actor, serverID, "", domain.PermManageRoles)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func (s *RoleService) serverRole(ctx context.Context, serverID domain.ServerID, roleID domain.RoleID) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.ServerID != serverID {
		return nil, domain.ErrRoleNotFound
	}
	return role, nil
}
