package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"auth-hub/internal/domain"
)

// RoleRepository define el contrato de persistencia para roles y asignaciones.
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (domain.Role, error)
	Assign(ctx context.Context, userID, roleID string) error
	ListForUser(ctx context.Context, userID string) ([]domain.Role, error)
}

// PgRoleRepository implementa RoleRepository usando pgxpool.
type PgRoleRepository struct {
	pool *pgxpool.Pool
}

func NewPgRoleRepository(pool *pgxpool.Pool) *PgRoleRepository {
	return &PgRoleRepository{pool: pool}
}

func (r *PgRoleRepository) GetByName(ctx context.Context, name string) (domain.Role, error) {
	const query = `SELECT id, name, description FROM roles WHERE name = $1`
	var role domain.Role
	err := r.pool.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return domain.Role{}, err
	}
	return role, nil
}

func (r *PgRoleRepository) Assign(ctx context.Context, userID, roleID string) error {
	const query = `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, userID, roleID)
	return err
}

func (r *PgRoleRepository) ListForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	const query = `
		SELECT r.id, r.name, r.description
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
