package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"auth-hub/internal/domain"
)

// ExternalAccountRepository define el contrato de persistencia para cuentas externas.
type ExternalAccountRepository interface {
	GetByProvider(ctx context.Context, provider, providerAccountID string) (domain.ExternalAccount, error)
	ListForUser(ctx context.Context, userID string) ([]domain.ExternalAccount, error)
	Create(ctx context.Context, account domain.ExternalAccount) error
}

// PgExternalAccountRepository implementa ExternalAccountRepository usando pgxpool.
type PgExternalAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgExternalAccountRepository(pool *pgxpool.Pool) *PgExternalAccountRepository {
	return &PgExternalAccountRepository{pool: pool}
}

func (r *PgExternalAccountRepository) GetByProvider(ctx context.Context, provider, providerAccountID string) (domain.ExternalAccount, error) {
	const query = `
		SELECT id, user_id, type, provider, provider_account_id, created_at
		FROM accounts
		WHERE provider = $1 AND provider_account_id = $2
	`
	var a domain.ExternalAccount
	err := r.pool.QueryRow(ctx, query, provider, providerAccountID).Scan(
		&a.ID,
		&a.UserID,
		&a.Type,
		&a.Provider,
		&a.ProviderAccountID,
		&a.CreatedAt,
	)
	if err != nil {
		return domain.ExternalAccount{}, err
	}
	return a, nil
}

func (r *PgExternalAccountRepository) ListForUser(ctx context.Context, userID string) ([]domain.ExternalAccount, error) {
	const query = `
		SELECT id, user_id, type, provider, provider_account_id, created_at
		FROM accounts
		WHERE user_id = $1
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.ExternalAccount
	for rows.Next() {
		var a domain.ExternalAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Provider, &a.ProviderAccountID, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *PgExternalAccountRepository) Create(ctx context.Context, account domain.ExternalAccount) error {
	const query = `
		INSERT INTO accounts (id, user_id, type, provider, provider_account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.UserID,
		account.Type,
		account.Provider,
		account.ProviderAccountID,
		account.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
