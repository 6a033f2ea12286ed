package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/minutely/consult-server/internal/model"
)

type PayoutMethodRepository interface {
	// FindActive returns the owner's most recent active payout method of the given kind.
	FindActive(ctx context.Context, ownerID string, method model.PayoutMethodKind) (*model.PayoutMethod, error)
	WithTx(tx *sqlx.Tx) PayoutMethodRepository
}

type payoutMethodRepo struct {
	db sqlxDB
}

func NewPayoutMethodRepository(db *sqlx.DB) PayoutMethodRepository {
	return &payoutMethodRepo{db: db}
}

func (r *payoutMethodRepo) WithTx(tx *sqlx.Tx) PayoutMethodRepository {
	return &payoutMethodRepo{db: tx}
}

func (r *payoutMethodRepo) FindActive(ctx context.Context, ownerID string, method model.PayoutMethodKind) (*model.PayoutMethod, error) {
	var pm model.PayoutMethod
	err := r.db.GetContext(ctx, &pm, `
		SELECT * FROM payout_methods
		WHERE owner_id = $1 AND method = $2 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`, ownerID, method)
	return HandleNotFound(&pm, err)
}
