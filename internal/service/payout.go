package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/minutely/consult-server/internal/audit"
	"github.com/minutely/consult-server/internal/config"
	"github.com/minutely/consult-server/internal/database"
	apperrors "github.com/minutely/consult-server/internal/errors"
	"github.com/minutely/consult-server/internal/model"
	"github.com/minutely/consult-server/internal/repository"
	"github.com/minutely/consult-server/internal/sse"
	"github.com/minutely/consult-server/internal/util"
)

const maxAccountDetailsLength = 500

type PayoutConfig struct {
	Min          decimal.Decimal
	Max          decimal.Decimal
	RequestLimit LimitPolicy
}

// PayoutQuota is the payout request policy. It never fails open.
func PayoutQuota(limit int, window time.Duration) LimitPolicy {
	return LimitPolicy{Limit: limit, Window: window, Progressive: true}
}

type PayoutRequestInput struct {
	Amount         decimal.Decimal
	Method         model.PayoutMethodKind
	AccountDetails string
}

type PayoutRequestResult struct {
	Request          *model.WithdrawalRequest
	RemainingBalance decimal.Decimal
}

// PayoutView is a withdrawal request as shown to a caller. Owners see their
// account details masked; admins see them in full so they can pay out.
type PayoutView struct {
	*model.WithdrawalRequest
	AccountDetails string `json:"account_details"`
}

type PayoutService struct {
	db               database.TxRunner
	withdrawalRepo   repository.WithdrawalRepository
	payoutMethodRepo repository.PayoutMethodRepository
	wallet           *WalletService
	limiter          RateLimitChecker
	events           EventPublisher
	sealer           *util.Sealer
	cfg              PayoutConfig
	now              func() time.Time
}

func NewPayoutService(
	db database.TxRunner,
	withdrawalRepo repository.WithdrawalRepository,
	payoutMethodRepo repository.PayoutMethodRepository,
	wallet *WalletService,
	limiter RateLimitChecker,
	events EventPublisher,
	sealer *util.Sealer,
	cfg PayoutConfig,
) *PayoutService {
	return &PayoutService{
		db:               db,
		withdrawalRepo:   withdrawalRepo,
		payoutMethodRepo: payoutMethodRepo,
		wallet:           wallet,
		limiter:          limiter,
		events:           events,
		sealer:           sealer,
		cfg:              cfg,
		now:              time.Now,
	}
}

// Request files a withdrawal for the calling provider and reserves the
// amount. The request row, the reservation and its ledger entry are written
// in one transaction.
func (s *PayoutService) Request(ctx context.Context, actor model.Actor, in PayoutRequestInput) (*PayoutRequestResult, error) {
	if actor.Role != model.RoleProvider {
		return nil, apperrors.AccessDenied("Only providers can request payouts")
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	method, err := s.payoutMethodRepo.FindActive(ctx, actor.ID, in.Method)
	if err != nil {
		return nil, fmt.Errorf("find payout method: %w", err)
	}
	if method == nil {
		return nil, apperrors.InvalidInput("method", "no active payout method of this kind on file")
	}

	pending, err := s.withdrawalRepo.FindPendingByOwner(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("find pending withdrawal: %w", err)
	}
	if pending != nil {
		return nil, apperrors.PendingRequestExists()
	}

	if err := s.limiter.Allow(ctx, actor.ID, config.PayoutRequestAction, s.cfg.RequestLimit); err != nil {
		if apperrors.Is(err, apperrors.ErrCodeRateLimitExceeded) {
			audit.Log(ctx, audit.Event{Type: audit.EventRateLimitExceed, ActorID: actor.ID,
				Details: map[string]interface{}{"action": config.PayoutRequestAction}})
		}
		return nil, err
	}

	sealed, err := s.sealer.Seal(strings.TrimSpace(in.AccountDetails))
	if err != nil {
		return nil, fmt.Errorf("seal account details: %w", err)
	}

	var (
		request *model.WithdrawalRequest
		wallet  *model.Wallet
	)
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		request, err = s.withdrawalRepo.WithTx(tx).Create(ctx, model.CreateWithdrawalParams{
			OwnerID:        actor.ID,
			Amount:         in.Amount,
			Method:         in.Method,
			AccountDetails: sealed,
		})
		if errors.Is(err, repository.ErrConflict) {
			return apperrors.PendingRequestExists()
		}
		if err != nil {
			return fmt.Errorf("create withdrawal request: %w", err)
		}

		wallet, err = s.wallet.InTx(tx).Reserve(ctx, actor.ID, in.Amount, request.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("withdrawalId", request.ID).
		Str("ownerId", actor.ID).
		Str("amount", in.Amount.StringFixed(config.CurrencyDecimals)).
		Str("method", string(in.Method)).
		Msg("withdrawal requested")

	audit.Log(ctx, audit.Event{
		Type:    audit.EventWithdrawalRequest,
		ActorID: actor.ID,
		Role:    string(actor.Role),
		Details: map[string]interface{}{
			"withdrawal_id":   request.ID,
			"amount":          in.Amount,
			"method":          string(in.Method),
			"account_details": util.MaskSecret(in.AccountDetails),
		},
	})

	return &PayoutRequestResult{Request: request, RemainingBalance: wallet.Available()}, nil
}

func (s *PayoutService) validate(in PayoutRequestInput) error {
	if !in.Amount.IsPositive() {
		return apperrors.InvalidInput("amount", "must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Round(config.CurrencyDecimals)) {
		return apperrors.InvalidInput("amount", "must have at most two decimal places")
	}
	if in.Amount.LessThan(s.cfg.Min) || in.Amount.GreaterThan(s.cfg.Max) {
		return apperrors.InvalidInput("amount", fmt.Sprintf("must be between %s and %s",
			s.cfg.Min.StringFixed(config.CurrencyDecimals), s.cfg.Max.StringFixed(config.CurrencyDecimals)))
	}
	if !in.Method.Valid() {
		return apperrors.InvalidInput("method", "must be bank_transfer, upi or paypal")
	}
	details := strings.TrimSpace(in.AccountDetails)
	if details == "" {
		return apperrors.MissingRequired("account_details")
	}
	if len(details) > maxAccountDetailsLength {
		return apperrors.InvalidInput("account_details", fmt.Sprintf("must be at most %d characters", maxAccountDetailsLength))
	}
	return nil
}

// GetPending returns the caller's pending request, or nil when there is none.
func (s *PayoutService) GetPending(ctx context.Context, actor model.Actor) (*PayoutView, error) {
	pending, err := s.withdrawalRepo.FindPendingByOwner(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("find pending withdrawal: %w", err)
	}
	if pending == nil {
		return nil, nil
	}
	return s.view(pending, false), nil
}

func (s *PayoutService) History(ctx context.Context, actor model.Actor, limit, offset int) ([]PayoutView, error) {
	requests, err := s.withdrawalRepo.ListByOwner(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return s.views(requests, false), nil
}

// ListPending returns pending requests oldest first for administrators.
func (s *PayoutService) ListPending(ctx context.Context, actor model.Actor, limit, offset int) ([]PayoutView, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.AccessDenied("Admin access required")
	}
	requests, err := s.withdrawalRepo.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pending withdrawals: %w", err)
	}
	return s.views(requests, true), nil
}

// Decide approves or rejects a pending request and settles its reservation
// in the same transaction.
func (s *PayoutService) Decide(ctx context.Context, actor model.Actor, requestID string, disposition model.Disposition, note *string) (*PayoutView, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.AccessDenied("Admin access required")
	}
	if !util.IsValidUUID(requestID) {
		return nil, apperrors.InvalidInput("request_id", "must be a UUID")
	}

	var status model.WithdrawalStatus
	switch disposition {
	case model.DispositionApproved:
		status = model.WithdrawalStatusApproved
	case model.DispositionRejected:
		status = model.WithdrawalStatusRejected
	default:
		return nil, apperrors.InvalidInput("disposition", "must be approved or rejected")
	}

	var decided *model.WithdrawalRequest
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		decided, err = s.withdrawalRepo.WithTx(tx).Decide(ctx, requestID, model.DecideWithdrawalParams{
			Status:    status,
			DecidedBy: actor.ID,
			Note:      note,
		}, s.now())
		if err != nil {
			return fmt.Errorf("decide withdrawal: %w", err)
		}
		if decided == nil {
			return nil
		}

		_, err = s.wallet.InTx(tx).Settle(ctx, decided.OwnerID, decided.Amount, disposition, decided.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if decided == nil {
		return nil, s.explainWithdrawal(ctx, requestID, "decide")
	}

	log.Info().
		Str("withdrawalId", decided.ID).
		Str("adminId", actor.ID).
		Str("status", string(decided.Status)).
		Msg("withdrawal decided")

	audit.Log(ctx, audit.Event{
		Type:    audit.EventWithdrawalDecision,
		ActorID: actor.ID,
		Role:    string(actor.Role),
		Details: map[string]interface{}{
			"withdrawal_id": decided.ID,
			"owner_id":      decided.OwnerID,
			"amount":        decided.Amount,
			"status":        string(decided.Status),
		},
	})
	s.publish(ctx, decided)

	return s.view(decided, true), nil
}

// MarkPaid records that an approved request was paid out. Funds already left
// the wallet on approval.
func (s *PayoutService) MarkPaid(ctx context.Context, actor model.Actor, requestID string) (*PayoutView, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.AccessDenied("Admin access required")
	}
	if !util.IsValidUUID(requestID) {
		return nil, apperrors.InvalidInput("request_id", "must be a UUID")
	}

	paid, err := s.withdrawalRepo.MarkPaid(ctx, requestID, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark withdrawal paid: %w", err)
	}
	if paid == nil {
		return nil, s.explainWithdrawal(ctx, requestID, "pay")
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventWithdrawalPaid,
		ActorID: actor.ID,
		Role:    string(actor.Role),
		Details: map[string]interface{}{
			"withdrawal_id": paid.ID,
			"owner_id":      paid.OwnerID,
			"amount":        paid.Amount,
		},
	})
	s.publish(ctx, paid)

	return s.view(paid, true), nil
}

func (s *PayoutService) explainWithdrawal(ctx context.Context, requestID, action string) error {
	current, err := s.withdrawalRepo.FindByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("find withdrawal: %w", err)
	}
	if current == nil {
		return apperrors.NotFound("Withdrawal request")
	}
	return apperrors.InvalidWithdrawalState(action, string(current.Status))
}

func (s *PayoutService) view(wr *model.WithdrawalRequest, reveal bool) *PayoutView {
	details, err := s.sealer.Open(wr.AccountDetails)
	if err != nil {
		log.Error().Err(err).Str("withdrawalId", wr.ID).Msg("failed to open account details")
		details = ""
	}
	if !reveal {
		details = util.MaskSecret(details)
	}
	return &PayoutView{WithdrawalRequest: wr, AccountDetails: details}
}

func (s *PayoutService) views(requests []model.WithdrawalRequest, reveal bool) []PayoutView {
	out := make([]PayoutView, 0, len(requests))
	for i := range requests {
		out = append(out, *s.view(&requests[i], reveal))
	}
	return out
}

func (s *PayoutService) publish(ctx context.Context, wr *model.WithdrawalRequest) {
	if s.events == nil {
		return
	}
	event, err := sse.NewEvent(sse.EventPayoutDecided, s.view(wr, false))
	if err != nil {
		log.Error().Err(err).Str("withdrawalId", wr.ID).Msg("failed to encode payout event")
		return
	}
	if err := s.events.Publish(ctx, event, wr.OwnerID); err != nil {
		log.Warn().Err(err).Str("withdrawalId", wr.ID).Msg("failed to publish payout event")
	}
}
