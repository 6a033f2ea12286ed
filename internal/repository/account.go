package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/minutely/consult-server/internal/model"
)

// AccountRepository reads the account directory owned by the identity service.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	WithTx(tx *sqlx.Tx) AccountRepository
}

type accountRepo struct {
	db sqlxDB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) WithTx(tx *sqlx.Tx) AccountRepository {
	return &accountRepo{db: tx}
}

func (r *accountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE id = $1
	`, id)
	return HandleNotFound(&account, err)
}
