package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/minutely/consult-server/internal/database"
	"github.com/minutely/consult-server/internal/model"
	"github.com/minutely/consult-server/internal/repository"
)

// fakeTx runs the function without a real transaction; mock repositories
// return themselves from WithTx.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	f.calls++
	return fn(nil)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindOpenByPair(ctx context.Context, customerID, providerID string) (*model.Session, error) {
	args := m.Called(ctx, customerID, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) MarkRinging(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) MarkActive(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Complete(ctx context.Context, id string, params model.CompleteSessionParams) (*model.Session, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Cancel(ctx context.Context, id string, reason string, endedBy *string, at time.Time) (*model.Session, error) {
	args := m.Called(ctx, id, reason, endedBy, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Reject(ctx context.Context, id string, by string, at time.Time) (*model.Session, error) {
	args := m.Called(ctx, id, by, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) AppendNote(ctx context.Context, id string, note string) (*model.Session, error) {
	args := m.Called(ctx, id, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) List(ctx context.Context, filter model.SessionListFilter) ([]model.Session, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) ExpireStale(ctx context.Context, pendingBefore, ringingBefore time.Time) ([]model.Session, error) {
	args := m.Called(ctx, pendingBefore, ringingBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) walletResult(args mock.Arguments) (*model.Wallet, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *mockWalletRepo) FindByOwner(ctx context.Context, ownerID string) (*model.Wallet, error) {
	return m.walletResult(m.Called(ctx, ownerID))
}

func (m *mockWalletRepo) Reserve(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	return m.walletResult(m.Called(ctx, ownerID, amount))
}

func (m *mockWalletRepo) Release(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	return m.walletResult(m.Called(ctx, ownerID, amount))
}

func (m *mockWalletRepo) SettleReserved(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	return m.walletResult(m.Called(ctx, ownerID, amount))
}

func (m *mockWalletRepo) Credit(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	return m.walletResult(m.Called(ctx, ownerID, amount))
}

func (m *mockWalletRepo) Debit(ctx context.Context, ownerID string, amount decimal.Decimal) (*model.Wallet, error) {
	return m.walletResult(m.Called(ctx, ownerID, amount))
}

func (m *mockWalletRepo) WithTx(tx *sqlx.Tx) repository.WalletRepository {
	return m
}

type mockLedgerRepo struct {
	mock.Mock
}

func (m *mockLedgerRepo) Create(ctx context.Context, params model.CreateLedgerEntryParams) (*model.LedgerEntry, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *mockLedgerRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.LedgerEntry, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LedgerEntry), args.Error(1)
}

func (m *mockLedgerRepo) UpdateStatusByWithdrawal(ctx context.Context, withdrawalID string, from, to model.LedgerEntryStatus) (int64, error) {
	args := m.Called(ctx, withdrawalID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedgerRepo) WithTx(tx *sqlx.Tx) repository.LedgerRepository {
	return m
}

type mockWithdrawalRepo struct {
	mock.Mock
}

func (m *mockWithdrawalRepo) requestResult(args mock.Arguments) (*model.WithdrawalRequest, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WithdrawalRequest), args.Error(1)
}

func (m *mockWithdrawalRepo) Create(ctx context.Context, params model.CreateWithdrawalParams) (*model.WithdrawalRequest, error) {
	return m.requestResult(m.Called(ctx, params))
}

func (m *mockWithdrawalRepo) FindByID(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	return m.requestResult(m.Called(ctx, id))
}

func (m *mockWithdrawalRepo) FindPendingByOwner(ctx context.Context, ownerID string) (*model.WithdrawalRequest, error) {
	return m.requestResult(m.Called(ctx, ownerID))
}

func (m *mockWithdrawalRepo) Decide(ctx context.Context, id string, params model.DecideWithdrawalParams, at time.Time) (*model.WithdrawalRequest, error) {
	return m.requestResult(m.Called(ctx, id, params, at))
}

func (m *mockWithdrawalRepo) MarkPaid(ctx context.Context, id string, at time.Time) (*model.WithdrawalRequest, error) {
	return m.requestResult(m.Called(ctx, id, at))
}

func (m *mockWithdrawalRepo) ListPending(ctx context.Context, limit, offset int) ([]model.WithdrawalRequest, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WithdrawalRequest), args.Error(1)
}

func (m *mockWithdrawalRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.WithdrawalRequest, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WithdrawalRequest), args.Error(1)
}

func (m *mockWithdrawalRepo) WithTx(tx *sqlx.Tx) repository.WithdrawalRepository {
	return m
}

type mockProviderRepo struct {
	mock.Mock
}

func (m *mockProviderRepo) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Provider), args.Error(1)
}

func (m *mockProviderRepo) WithTx(tx *sqlx.Tx) repository.ProviderRepository {
	return m
}

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) WithTx(tx *sqlx.Tx) repository.AccountRepository {
	return m
}

type mockPayoutMethodRepo struct {
	mock.Mock
}

func (m *mockPayoutMethodRepo) FindActive(ctx context.Context, ownerID string, method model.PayoutMethodKind) (*model.PayoutMethod, error) {
	args := m.Called(ctx, ownerID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PayoutMethod), args.Error(1)
}

func (m *mockPayoutMethodRepo) WithTx(tx *sqlx.Tx) repository.PayoutMethodRepository {
	return m
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decEq matches a decimal argument by value rather than representation.
func decEq(s string) interface{} {
	want := decimal.RequireFromString(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}
