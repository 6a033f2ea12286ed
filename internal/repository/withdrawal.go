package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/minutely/consult-server/internal/model"
)

type WithdrawalRepository interface {
	// Create returns ErrConflict when the owner already has a pending request.
	Create(ctx context.Context, params model.CreateWithdrawalParams) (*model.WithdrawalRequest, error)
	FindByID(ctx context.Context, id string) (*model.WithdrawalRequest, error)
	FindPendingByOwner(ctx context.Context, ownerID string) (*model.WithdrawalRequest, error)
	// Decide moves a pending request to approved or rejected; (nil, nil) when
	// the request is no longer pending.
	Decide(ctx context.Context, id string, params model.DecideWithdrawalParams, at time.Time) (*model.WithdrawalRequest, error)
	// MarkPaid moves an approved request to paid; (nil, nil) otherwise.
	MarkPaid(ctx context.Context, id string, at time.Time) (*model.WithdrawalRequest, error)
	ListPending(ctx context.Context, limit, offset int) ([]model.WithdrawalRequest, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.WithdrawalRequest, error)
	WithTx(tx *sqlx.Tx) WithdrawalRepository
}

type withdrawalRepo struct {
	db sqlxDB
}

func NewWithdrawalRepository(db *sqlx.DB) WithdrawalRepository {
	return &withdrawalRepo{db: db}
}

func (r *withdrawalRepo) WithTx(tx *sqlx.Tx) WithdrawalRepository {
	return &withdrawalRepo{db: tx}
}

func (r *withdrawalRepo) Create(ctx context.Context, params model.CreateWithdrawalParams) (*model.WithdrawalRequest, error) {
	var wr model.WithdrawalRequest
	err := r.db.GetContext(ctx, &wr, `
		INSERT INTO withdrawal_requests (owner_id, amount, method, account_details)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.OwnerID, params.Amount, params.Method, params.AccountDetails)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &wr, nil
}

func (r *withdrawalRepo) FindByID(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	var wr model.WithdrawalRequest
	err := r.db.GetContext(ctx, &wr, `
		SELECT * FROM withdrawal_requests WHERE id = $1
	`, id)
	return HandleNotFound(&wr, err)
}

func (r *withdrawalRepo) FindPendingByOwner(ctx context.Context, ownerID string) (*model.WithdrawalRequest, error) {
	var wr model.WithdrawalRequest
	err := r.db.GetContext(ctx, &wr, `
		SELECT * FROM withdrawal_requests
		WHERE owner_id = $1 AND status = 'pending'
	`, ownerID)
	return HandleNotFound(&wr, err)
}

func (r *withdrawalRepo) Decide(ctx context.Context, id string, params model.DecideWithdrawalParams, at time.Time) (*model.WithdrawalRequest, error) {
	var wr model.WithdrawalRequest
	err := r.db.GetContext(ctx, &wr, `
		UPDATE withdrawal_requests SET
			status = $2,
			decided_by = $3,
			admin_note = $4,
			decided_at = $5,
			updated_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING *
	`, id, params.Status, params.DecidedBy, params.Note, at)
	return HandleNotFound(&wr, err)
}

func (r *withdrawalRepo) MarkPaid(ctx context.Context, id string, at time.Time) (*model.WithdrawalRequest, error) {
	var wr model.WithdrawalRequest
	err := r.db.GetContext(ctx, &wr, `
		UPDATE withdrawal_requests SET
			status = 'paid',
			paid_at = $2,
			updated_at = $2
		WHERE id = $1 AND status = 'approved'
		RETURNING *
	`, id, at)
	return HandleNotFound(&wr, err)
}

func (r *withdrawalRepo) ListPending(ctx context.Context, limit, offset int) ([]model.WithdrawalRequest, error) {
	var requests []model.WithdrawalRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM withdrawal_requests
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *withdrawalRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.WithdrawalRequest, error) {
	var requests []model.WithdrawalRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM withdrawal_requests
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return requests, nil
}
