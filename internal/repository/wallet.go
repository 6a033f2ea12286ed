package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/minutely/consult-server/internal/model"
)

// WalletRepository mutates balances with single conditional statements so
// concurrent callers can never drive available balance below zero.
// Reserve, Release, SettleReserved and Debit return (nil, nil) when their
// balance guard does not hold.
type WalletRepository interface {
	FindByOwner(ctx context.Context, ownerID string) (*model.Wallet, error)
	Reserve(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error)
	Release(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error)
	SettleReserved(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error)
	// Credit creates the wallet on first use.
	Credit(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error)
	Debit(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error)
	WithTx(tx *sqlx.Tx) WalletRepository
}

type walletRepo struct {
	db sqlxDB
}

func NewWalletRepository(db *sqlx.DB) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) WithTx(tx *sqlx.Tx) WalletRepository {
	return &walletRepo{db: tx}
}

func (r *walletRepo) FindByOwner(ctx context.Context, ownerID string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.GetContext(ctx, &wallet, `
		SELECT * FROM wallets WHERE owner_id = $1
	`, ownerID)
	return HandleNotFound(&wallet, err)
}

func (r *walletRepo) Reserve(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.GetContext(ctx, &wallet, `
		UPDATE wallets SET
			reserved_balance = reserved_balance + $2,
			updated_at = NOW()
		WHERE owner_id = $1 AND balance - reserved_balance >= $2
		RETURNING *
	`, ownerID, amount)
	return HandleNotFound(&wallet, err)
}

func (r *walletRepo) Release(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.GetContext(ctx, &wallet, `
		UPDATE wallets SET
			reserved_balance = reserved_balance - $2,
			updated_at = NOW()
		WHERE owner_id = $1 AND reserved_balance >= $2
		RETURNING *
	`, ownerID, amount)
	return HandleNotFound(&wallet, err)
}

func (r *walletRepo) SettleReserved(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.GetContext(ctx, &wallet, `
		UPDATE wallets SET
			balance = balance - $2,
			reserved_balance = reserved_balance - $2,
			updated_at = NOW()
		WHERE owner_id = $1 AND reserved_balance >= $2
		RETURNING *
	`, ownerID, amount)
	return HandleNotFound(&wallet, err)
}

func (r *walletRepo) Credit(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.GetContext(ctx, &wallet, `
		INSERT INTO wallets (owner_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE SET
			balance = wallets.balance + EXCLUDED.balance,
			updated_at = NOW()
		RETURNING *
	`, ownerID, amount)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepo) Debit(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.GetContext(ctx, &wallet, `
		UPDATE wallets SET
			balance = balance - $2,
			updated_at = NOW()
		WHERE owner_id = $1 AND balance - reserved_balance >= $2
		RETURNING *
	`, ownerID, amount)
	return HandleNotFound(&wallet, err)
}
