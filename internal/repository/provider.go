package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/minutely/consult-server/internal/model"
)

type ProviderRepository interface {
	FindByID(ctx context.Context, id string) (*model.Provider, error)
	WithTx(tx *sqlx.Tx) ProviderRepository
}

type providerRepo struct {
	db sqlxDB
}

func NewProviderRepository(db *sqlx.DB) ProviderRepository {
	return &providerRepo{db: db}
}

func (r *providerRepo) WithTx(tx *sqlx.Tx) ProviderRepository {
	return &providerRepo{db: tx}
}

func (r *providerRepo) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	var provider model.Provider
	err := r.db.GetContext(ctx, &provider, `
		SELECT * FROM providers WHERE id = $1
	`, id)
	return HandleNotFound(&provider, err)
}
