package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/minutely/consult-server/internal/model"
)

type LedgerRepository interface {
	Create(ctx context.Context, params model.CreateLedgerEntryParams) (*model.LedgerEntry, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.LedgerEntry, error)
	// UpdateStatusByWithdrawal moves the withdrawal's ledger entries from one
	// status to another and reports how many rows changed.
	UpdateStatusByWithdrawal(ctx context.Context, withdrawalID string, from, to model.LedgerEntryStatus) (int64, error)
	WithTx(tx *sqlx.Tx) LedgerRepository
}

type ledgerRepo struct {
	db sqlxDB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) WithTx(tx *sqlx.Tx) LedgerRepository {
	return &ledgerRepo{db: tx}
}

func (r *ledgerRepo) Create(ctx context.Context, params model.CreateLedgerEntryParams) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO ledger_entries (owner_id, type, amount, status, session_id, withdrawal_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.OwnerID, params.Type, params.Amount, params.Status,
		params.SessionID, params.WithdrawalID, params.Description)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM ledger_entries
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ledgerRepo) UpdateStatusByWithdrawal(ctx context.Context, withdrawalID string, from, to model.LedgerEntryStatus) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE ledger_entries SET
			status = $3,
			updated_at = NOW()
		WHERE withdrawal_id = $1 AND status = $2
	`, withdrawalID, from, to)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
