package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-hub/internal/domain"
)

// ErrDuplicate indica violación de una restricción de unicidad.
var ErrDuplicate = errors.New("duplicate record")

// UserRepository define el contrato de persistencia para usuarios.
//
// CreateWithRole inserta el usuario y su asignación de rol en una sola
// transacción: o el alta queda completa con su rol, o no queda nada.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	CreateWithRole(ctx context.Context, user domain.User, roleID string) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName, avatar string) error
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error
	SetTwoFactorSecret(ctx context.Context, id, secret string) error
	EnableTwoFactor(ctx context.Context, id string) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, COALESCE(password_hash, ''), first_name, last_name, avatar,
	is_verified, two_factor_enabled, two_factor_secret, created_at`

const insertUserQuery = `
	INSERT INTO users (id, email, password_hash, first_name, last_name, avatar,
		is_verified, two_factor_enabled, two_factor_secret, created_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx, insertUserQuery, insertUserArgs(user)...)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PgUserRepository) CreateWithRole(ctx context.Context, user domain.User, roleID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertUserQuery, insertUserArgs(user)...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	const assignQuery = `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := tx.Exec(ctx, assignQuery, user.ID, roleID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertUserArgs(user domain.User) []any {
	return []any{
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Avatar,
		user.IsVerified,
		user.TwoFactorEnabled,
		user.TwoFactorSecret,
		user.CreatedAt,
	}
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id, firstName, lastName, avatar string) error {
	const query = `UPDATE users SET first_name = $2, last_name = $3, avatar = $4 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, firstName, lastName, avatar)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2 WHERE email = $1`
	tag, err := r.pool.Exec(ctx, query, email, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) SetTwoFactorSecret(ctx context.Context, id, secret string) error {
	const query = `UPDATE users SET two_factor_secret = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, secret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) EnableTwoFactor(ctx context.Context, id string) error {
	const query = `UPDATE users SET two_factor_enabled = TRUE WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Avatar,
		&u.IsVerified,
		&u.TwoFactorEnabled,
		&u.TwoFactorSecret,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
