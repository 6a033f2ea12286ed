package service

import (
	"context"
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

const maxNoteLength = 2000

// RateLimitChecker is satisfied by *RateLimiter.
type RateLimitChecker interface {
	Allow(ctx context.Context, identifier, action string, policy LimitPolicy) error
}

// EventPublisher is satisfied by *sse.Broker.
type EventPublisher interface {
	Publish(ctx context.Context, event sse.Event, actorIDs ...string) error
}

type SessionConfig struct {
	MinBillableMinutes int
	DefaultCommission  decimal.Decimal
	CreateLimit        LimitPolicy
	PendingTTL         time.Duration
	RingingTTL         time.Duration
}

// CreateQuota is the session creation policy. Repeated denials escalate to
// a smaller limit over a longer window.
func CreateQuota(limit int, window time.Duration) LimitPolicy {
	return LimitPolicy{Limit: limit, Window: window, Progressive: true}
}

// allowedFrom lists the statuses each action may be applied in.
var allowedFrom = map[model.SessionAction][]model.SessionStatus{
	model.SessionActionRing:     {model.SessionStatusPending},
	model.SessionActionJoin:     {model.SessionStatusPending, model.SessionStatusRinging},
	model.SessionActionEnd:      {model.SessionStatusActive},
	model.SessionActionCancel:   {model.SessionStatusPending, model.SessionStatusRinging, model.SessionStatusActive},
	model.SessionActionReject:   {model.SessionStatusPending, model.SessionStatusRinging},
	model.SessionActionAddNotes: {model.SessionStatusPending, model.SessionStatusRinging, model.SessionStatusActive},
}

type CreateSessionInput struct {
	ProviderID string
	Kind       model.SessionKind
}

type TransitionInput struct {
	Action model.SessionAction
	Notes  *string
}

type TransitionResult struct {
	Session    *model.Session
	Action     model.SessionAction
	MaxMinutes *int
	Settlement *Settlement
}

type SessionService struct {
	db           database.TxRunner
	sessionRepo  repository.SessionRepository
	providerRepo repository.ProviderRepository
	accountRepo  repository.AccountRepository
	wallet       *WalletService
	limiter      RateLimitChecker
	events       EventPublisher
	cfg          SessionConfig
	now          func() time.Time
}

func NewSessionService(
	db database.TxRunner,
	sessionRepo repository.SessionRepository,
	providerRepo repository.ProviderRepository,
	accountRepo repository.AccountRepository,
	wallet *WalletService,
	limiter RateLimitChecker,
	events EventPublisher,
	cfg SessionConfig,
) *SessionService {
	return &SessionService{
		db:           db,
		sessionRepo:  sessionRepo,
		providerRepo: providerRepo,
		accountRepo:  accountRepo,
		wallet:       wallet,
		limiter:      limiter,
		events:       events,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Create opens a pending session between the calling customer and a
// provider. An already open session for the pair is returned as-is with
// created=false.
func (s *SessionService) Create(ctx context.Context, actor model.Actor, in CreateSessionInput) (*model.Session, bool, error) {
	if actor.Role != model.RoleCustomer {
		return nil, false, apperrors.AccessDenied("Only customers can start sessions")
	}
	if !util.IsValidUUID(actor.ID) {
		return nil, false, apperrors.InvalidInput("customer_id", "must be a UUID")
	}
	if !util.IsValidUUID(in.ProviderID) {
		return nil, false, apperrors.InvalidInput("provider_id", "must be a UUID")
	}
	if !in.Kind.Valid() {
		return nil, false, apperrors.InvalidInput("kind", "must be chat, voice_call or video_call")
	}
	if in.ProviderID == actor.ID {
		return nil, false, apperrors.ValidationError("Cannot start a session with yourself")
	}

	existing, err := s.sessionRepo.FindOpenByPair(ctx, actor.ID, in.ProviderID)
	if err != nil {
		return nil, false, fmt.Errorf("find open session: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	provider, err := s.providerRepo.FindByID(ctx, in.ProviderID)
	if err != nil {
		return nil, false, fmt.Errorf("find provider: %w", err)
	}
	if provider == nil {
		return nil, false, apperrors.NotFound("Provider")
	}
	if !provider.Approved || !provider.Online {
		return nil, false, apperrors.Unavailable("Provider is not available")
	}

	account, err := s.accountRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, false, fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		return nil, false, apperrors.NotFound("Account")
	}
	if !account.IsActive() {
		return nil, false, apperrors.AccessDenied("Account is not active")
	}

	wallet, err := s.wallet.GetWallet(ctx, actor.ID)
	if err != nil {
		return nil, false, err
	}
	required := MinimumBalance(provider.RatePerMinute, s.cfg.MinBillableMinutes)
	if wallet.Available().LessThan(required) {
		return nil, false, apperrors.InsufficientBalance().WithDetails(map[string]string{
			"required":  required.StringFixed(2),
			"available": wallet.Available().StringFixed(2),
		})
	}

	// Only attempts that would otherwise succeed count against the quota.
	if err := s.limiter.Allow(ctx, actor.ID, config.SessionCreateAction, s.cfg.CreateLimit); err != nil {
		if apperrors.Is(err, apperrors.ErrCodeRateLimitExceeded) {
			audit.Log(ctx, audit.Event{Type: audit.EventRateLimitExceed, ActorID: actor.ID,
				Details: map[string]interface{}{"action": config.SessionCreateAction}})
		}
		return nil, false, err
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		Kind:               in.Kind,
		CustomerID:         actor.ID,
		ProviderID:         in.ProviderID,
		RatePerMinute:      provider.RatePerMinute,
		CommissionFraction: provider.Commission(s.cfg.DefaultCommission),
	})
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	if session == nil {
		// A concurrent request for the same pair won the insert.
		winner, err := s.sessionRepo.FindOpenByPair(ctx, actor.ID, in.ProviderID)
		if err != nil {
			return nil, false, fmt.Errorf("find open session: %w", err)
		}
		if winner == nil {
			return nil, false, apperrors.New(apperrors.ErrCodeInvalidState, "A session with this provider was just opened and closed, retry")
		}
		return winner, false, nil
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("customerId", session.CustomerID).
		Str("providerId", session.ProviderID).
		Str("kind", string(session.Kind)).
		Msg("session created")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionCreate,
		ActorID:   actor.ID,
		Role:      string(actor.Role),
		SessionID: session.ID,
		Details: map[string]interface{}{
			"provider_id":     session.ProviderID,
			"rate_per_minute": session.RatePerMinute,
		},
	})
	s.publish(ctx, sse.EventSessionCreated, session)

	return session, true, nil
}

// Get returns a session visible to actor.
func (s *SessionService) Get(ctx context.Context, actor model.Actor, sessionID string) (*model.Session, error) {
	if !util.IsValidUUID(sessionID) {
		return nil, apperrors.InvalidInput("session_id", "must be a UUID")
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if !session.HasParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, apperrors.AccessDenied("Not a participant of this session")
	}
	return session, nil
}

func (s *SessionService) List(ctx context.Context, actor model.Actor, status *model.SessionStatus, limit, offset int) ([]model.Session, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.InvalidInput("status", "unknown session status")
	}
	sessions, err := s.sessionRepo.List(ctx, model.SessionListFilter{
		ActorID: actor.ID,
		Status:  status,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// Transition applies a lifecycle action. An action that is not allowed from
// the session's current status fails with INVALID_STATE and leaves the
// stored record untouched.
func (s *SessionService) Transition(ctx context.Context, actor model.Actor, sessionID string, in TransitionInput) (*TransitionResult, error) {
	from, ok := allowedFrom[in.Action]
	if !ok {
		return nil, apperrors.InvalidInput("action", "must be one of ring, join, end, cancel, reject, add_notes")
	}

	var note string
	if in.Action == model.SessionActionAddNotes {
		if in.Notes == nil || strings.TrimSpace(*in.Notes) == "" {
			return nil, apperrors.MissingRequired("notes")
		}
		note = strings.TrimSpace(*in.Notes)
		if len(note) > maxNoteLength {
			return nil, apperrors.InvalidInput("notes", fmt.Sprintf("must be at most %d characters", maxNoteLength))
		}
	}

	session, err := s.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeAction(actor, session, in.Action); err != nil {
		return nil, err
	}
	if !statusIn(session.Status, from) {
		return nil, apperrors.InvalidState(string(in.Action), string(session.Status))
	}
	if in.Action == model.SessionActionRing && !session.Kind.IsCall() {
		return nil, apperrors.InvalidState(string(in.Action), string(session.Status)).
			WithDetails(map[string]string{"action": string(in.Action), "kind": string(session.Kind)})
	}

	now := s.now()
	result := &TransitionResult{Action: in.Action}

	var updated *model.Session
	switch in.Action {
	case model.SessionActionRing:
		updated, err = s.sessionRepo.MarkRinging(ctx, session.ID, now)
	case model.SessionActionJoin:
		updated, err = s.sessionRepo.MarkActive(ctx, session.ID, now)
	case model.SessionActionCancel:
		by := actor.ID
		updated, err = s.sessionRepo.Cancel(ctx, session.ID, "cancelled", &by, now)
	case model.SessionActionReject:
		updated, err = s.sessionRepo.Reject(ctx, session.ID, actor.ID, now)
	case model.SessionActionAddNotes:
		updated, err = s.sessionRepo.AppendNote(ctx, session.ID, note)
	case model.SessionActionEnd:
		updated, result.Settlement, err = s.end(ctx, actor, session, now)
	}
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, s.lostRace(ctx, session.ID, in.Action)
	}
	result.Session = updated

	if in.Action == model.SessionActionJoin {
		wallet, err := s.wallet.GetWallet(ctx, updated.CustomerID)
		if err != nil {
			return nil, err
		}
		maxMinutes := AffordableMinutes(wallet.Available(), updated.RatePerMinute)
		result.MaxMinutes = &maxMinutes
	}

	log.Info().
		Str("sessionId", updated.ID).
		Str("actorId", actor.ID).
		Str("action", string(in.Action)).
		Str("from", string(session.Status)).
		Str("to", string(updated.Status)).
		Msg("session transitioned")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionTransition,
		ActorID:   actor.ID,
		Role:      string(actor.Role),
		SessionID: updated.ID,
		Details: map[string]interface{}{
			"action": string(in.Action),
			"from":   string(session.Status),
			"to":     string(updated.Status),
		},
	})
	if in.Action != model.SessionActionAddNotes {
		s.publish(ctx, sse.EventSessionTransitioned, updated)
	}

	return result, nil
}

// end completes the session and posts its settlement in one transaction:
// the completed row, the customer debit, the provider credit and both ledger
// entries commit together or not at all.
func (s *SessionService) end(ctx context.Context, actor model.Actor, session *model.Session, now time.Time) (*model.Session, *Settlement, error) {
	start := now
	if session.StartTime != nil {
		start = *session.StartTime
	}
	settlement := CalculateSettlement(DurationMinutes(start, now), session.RatePerMinute, session.CommissionFraction)

	var completed *model.Session
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		completed, err = s.sessionRepo.WithTx(tx).Complete(ctx, session.ID, model.CompleteSessionParams{
			EndTime:            now,
			DurationMinutes:    settlement.DurationMinutes,
			TotalAmount:        settlement.TotalAmount,
			ProviderEarnings:   settlement.ProviderEarnings,
			PlatformCommission: settlement.PlatformCommission,
			EndedBy:            actor.ID,
		})
		if err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		if completed == nil || settlement.TotalAmount.IsZero() {
			return nil
		}

		wallet := s.wallet.InTx(tx)
		sessionID := session.ID
		if _, err := wallet.Debit(ctx, session.CustomerID, settlement.TotalAmount, &sessionID, "Session charge"); err != nil {
			return err
		}
		if _, err := wallet.Credit(ctx, session.ProviderID, settlement.ProviderEarnings, &sessionID, "Session earnings"); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if completed == nil {
		return nil, nil, nil
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSettlementPosted,
		ActorID:   actor.ID,
		SessionID: session.ID,
		Details: map[string]interface{}{
			"customer_id":         session.CustomerID,
			"provider_id":         session.ProviderID,
			"duration_minutes":    settlement.DurationMinutes,
			"total_amount":        settlement.TotalAmount,
			"provider_earnings":   settlement.ProviderEarnings,
			"platform_commission": settlement.PlatformCommission,
		},
	})

	return completed, &settlement, nil
}

// ExpireStale cancels sessions that waited too long to be joined or answered.
func (s *SessionService) ExpireStale(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.sessionRepo.ExpireStale(ctx, now.Add(-s.cfg.PendingTTL), now.Add(-s.cfg.RingingTTL))
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}

	for i := range expired {
		session := &expired[i]
		audit.Log(ctx, audit.Event{
			Type:      audit.EventSessionExpire,
			SessionID: session.ID,
			Details: map[string]interface{}{
				"customer_id": session.CustomerID,
				"provider_id": session.ProviderID,
			},
		})
		s.publish(ctx, sse.EventSessionExpired, session)
	}
	return len(expired), nil
}

// lostRace explains a conditional update that matched no row: a concurrent
// request changed the session after it was read.
func (s *SessionService) lostRace(ctx context.Context, sessionID string, action model.SessionAction) error {
	current, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if current == nil {
		return apperrors.NotFound("Session")
	}
	return apperrors.InvalidState(string(action), string(current.Status))
}

func (s *SessionService) publish(ctx context.Context, eventType string, session *model.Session) {
	if s.events == nil {
		return
	}
	event, err := sse.NewEvent(eventType, session)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to encode session event")
		return
	}
	if err := s.events.Publish(ctx, event, session.CustomerID, session.ProviderID); err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Str("eventType", eventType).Msg("failed to publish session event")
	}
}

func authorizeAction(actor model.Actor, session *model.Session, action model.SessionAction) error {
	switch {
	case action == model.SessionActionReject:
		if actor.ID != session.ProviderID {
			return apperrors.AccessDenied("Only the provider can reject a session")
		}
	case action == model.SessionActionCancel && actor.IsAdmin():
		return nil
	case !session.HasParticipant(actor.ID):
		return apperrors.AccessDenied("Not a participant of this session")
	}
	return nil
}

func statusIn(status model.SessionStatus, set []model.SessionStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
