package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/minutely/consult-server/internal/config"
	apperrors "github.com/minutely/consult-server/internal/errors"
	"github.com/minutely/consult-server/internal/model"
	"github.com/minutely/consult-server/internal/repository"
)

// WalletService is the wallet ledger. Every balance mutation is a single
// conditional update and is recorded as a ledger entry through the same
// repositories, so callers that bind it to a transaction with InTx get both
// effects or neither.
type WalletService struct {
	walletRepo repository.WalletRepository
	ledgerRepo repository.LedgerRepository
}

func NewWalletService(
	walletRepo repository.WalletRepository,
	ledgerRepo repository.LedgerRepository,
) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
	}
}

// InTx returns a WalletService whose operations run inside tx.
func (s *WalletService) InTx(tx *sqlx.Tx) *WalletService {
	return &WalletService{
		walletRepo: s.walletRepo.WithTx(tx),
		ledgerRepo: s.ledgerRepo.WithTx(tx),
	}
}

// GetWallet returns the owner's wallet. Owners that never received funds get
// an empty wallet rather than an error.
func (s *WalletService) GetWallet(ctx context.Context, ownerID string) (*model.Wallet, error) {
	wallet, err := s.walletRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("find wallet: %w", err)
	}
	if wallet == nil {
		return &model.Wallet{OwnerID: ownerID, Balance: decimal.Zero, ReservedBalance: decimal.Zero}, nil
	}
	return wallet, nil
}

func (s *WalletService) ListEntries(ctx context.Context, ownerID string, limit, offset int) ([]model.LedgerEntry, error) {
	entries, err := s.ledgerRepo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	return entries, nil
}

// Reserve earmarks amount for the given withdrawal request.
func (s *WalletService) Reserve(ctx context.Context, ownerID string, amount decimal.Decimal, withdrawalID string) (*model.Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperrors.InvalidInput("amount", "must be positive")
	}

	wallet, err := s.walletRepo.Reserve(ctx, ownerID, amount)
	if err != nil {
		return nil, fmt.Errorf("reserve funds: %w", err)
	}
	if wallet == nil {
		return nil, s.explainRefusal(ctx, ownerID, amount)
	}

	_, err = s.ledgerRepo.Create(ctx, model.CreateLedgerEntryParams{
		OwnerID:      ownerID,
		Type:         model.LedgerEntryWithdrawal,
		Amount:       amount,
		Status:       model.LedgerStatusPending,
		WithdrawalID: &withdrawalID,
		Description:  "Withdrawal reserved",
	})
	if err != nil {
		return nil, fmt.Errorf("record reservation: %w", err)
	}

	log.Info().
		Str("ownerId", ownerID).
		Str("amount", amount.StringFixed(2)).
		Str("withdrawalId", withdrawalID).
		Msg("funds reserved")

	return wallet, nil
}

// Settle resolves a reservation. Approved withdrawals leave the wallet;
// rejected ones return to the available balance.
func (s *WalletService) Settle(
	ctx context.Context,
	ownerID string,
	amount decimal.Decimal,
	disposition model.Disposition,
	withdrawalID string,
) (*model.Wallet, error) {
	var (
		wallet      *model.Wallet
		err         error
		entryStatus model.LedgerEntryStatus
	)

	switch disposition {
	case model.DispositionApproved:
		wallet, err = s.walletRepo.SettleReserved(ctx, ownerID, amount)
		entryStatus = model.LedgerStatusCompleted
	case model.DispositionRejected:
		wallet, err = s.walletRepo.Release(ctx, ownerID, amount)
		entryStatus = model.LedgerStatusReversed
	default:
		return nil, apperrors.InvalidInput("disposition", "must be approved or rejected")
	}
	if err != nil {
		return nil, fmt.Errorf("settle reservation: %w", err)
	}
	if wallet == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidState, "No reserved funds to settle")
	}

	if _, err := s.ledgerRepo.UpdateStatusByWithdrawal(ctx, withdrawalID, model.LedgerStatusPending, entryStatus); err != nil {
		return nil, fmt.Errorf("update withdrawal entry: %w", err)
	}

	log.Info().
		Str("ownerId", ownerID).
		Str("amount", amount.StringFixed(2)).
		Str("disposition", string(disposition)).
		Str("withdrawalId", withdrawalID).
		Msg("reservation settled")

	return wallet, nil
}

// Credit adds amount to the owner's balance, creating the wallet if needed.
func (s *WalletService) Credit(ctx context.Context, ownerID string, amount decimal.Decimal, sessionID *string, description string) (*model.Wallet, error) {
	if amount.IsNegative() {
		return nil, apperrors.InvalidInput("amount", "must not be negative")
	}

	wallet, err := s.walletRepo.Credit(ctx, ownerID, amount)
	if err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}

	if err := s.record(ctx, ownerID, model.LedgerEntryCredit, amount, sessionID, description); err != nil {
		return nil, err
	}
	return wallet, nil
}

// Debit removes amount from the owner's available balance. Reserved funds
// are never touched.
func (s *WalletService) Debit(ctx context.Context, ownerID string, amount decimal.Decimal, sessionID *string, description string) (*model.Wallet, error) {
	if amount.IsNegative() {
		return nil, apperrors.InvalidInput("amount", "must not be negative")
	}

	wallet, err := s.walletRepo.Debit(ctx, ownerID, amount)
	if err != nil {
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	if wallet == nil {
		return nil, s.explainRefusal(ctx, ownerID, amount)
	}

	if err := s.record(ctx, ownerID, model.LedgerEntryDebit, amount, sessionID, description); err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *WalletService) record(
	ctx context.Context,
	ownerID string,
	entryType model.LedgerEntryType,
	amount decimal.Decimal,
	sessionID *string,
	description string,
) error {
	_, err := s.ledgerRepo.Create(ctx, model.CreateLedgerEntryParams{
		OwnerID:     ownerID,
		Type:        entryType,
		Amount:      amount,
		Status:      model.LedgerStatusCompleted,
		SessionID:   sessionID,
		Description: description,
	})
	if err != nil {
		return fmt.Errorf("record %s entry: %w", entryType, err)
	}
	return nil
}

// explainRefusal reports why a guarded update matched no row. An owner
// without a wallet row has nothing available, like GetWallet reports.
func (s *WalletService) explainRefusal(ctx context.Context, ownerID string, amount decimal.Decimal) error {
	wallet, err := s.GetWallet(ctx, ownerID)
	if err != nil {
		return err
	}
	return apperrors.InsufficientBalance().WithDetails(map[string]string{
		"requested": amount.StringFixed(config.CurrencyDecimals),
		"available": wallet.Available().StringFixed(config.CurrencyDecimals),
	})
}
