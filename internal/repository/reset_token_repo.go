package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"auth-hub/internal/domain"
)

// PasswordResetTokenRepository define el contrato de persistencia para tokens de reseteo.
//
// Consume lee y borra el registro en un solo paso: ante canjes concurrentes
// del mismo token exactamente uno gana.
type PasswordResetTokenRepository interface {
	Create(ctx context.Context, token domain.PasswordResetToken) error
	Consume(ctx context.Context, token string) (domain.PasswordResetToken, error)
}

// PgPasswordResetTokenRepository implementa PasswordResetTokenRepository usando pgxpool.
type PgPasswordResetTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgPasswordResetTokenRepository(pool *pgxpool.Pool) *PgPasswordResetTokenRepository {
	return &PgPasswordResetTokenRepository{pool: pool}
}

func (r *PgPasswordResetTokenRepository) Create(ctx context.Context, token domain.PasswordResetToken) error {
	const query = `
		INSERT INTO password_reset_tokens (id, email, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, token.ID, token.Email, token.Token, token.ExpiresAt)
	return err
}

func (r *PgPasswordResetTokenRepository) Consume(ctx context.Context, token string) (domain.PasswordResetToken, error) {
	const query = `
		DELETE FROM password_reset_tokens
		WHERE token = $1
		RETURNING id, email, token, expires_at
	`
	var t domain.PasswordResetToken
	err := r.pool.QueryRow(ctx, query, token).Scan(&t.ID, &t.Email, &t.Token, &t.ExpiresAt)
	if err != nil {
		return domain.PasswordResetToken{}, err
	}
	return t, nil
}
