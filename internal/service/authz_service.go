package service

import (
	"context"

	"auth-hub/internal/domain"
	"auth-hub/internal/repository"
)

// AuthzService resuelve una identidad verificada a sus roles y decide acceso.
type AuthzService struct {
	roles repository.RoleRepository
}

func NewAuthzService(roles repository.RoleRepository) *AuthzService {
	return &AuthzService{roles: roles}
}

// Authorize permite el acceso si el usuario tiene al menos uno de los roles
// requeridos (semántica OR). Un usuario conocido sin privilegio es "denegado",
// distinto de "no autenticado".
func (s *AuthzService) Authorize(ctx context.Context, userID string, requiredRoles []string) (bool, error) {
	if len(requiredRoles) == 0 {
		return true, nil
	}
	assigned, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range assigned {
		for _, required := range requiredRoles {
			if role.Name == required {
				return true, nil
			}
		}
	}
	return false, nil
}

// ListRoles devuelve los roles asignados al usuario.
func (s *AuthzService) ListRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	return s.roles.ListForUser(ctx, userID)
}
