package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/minutely/consult-server/internal/model"
)

// SessionRepository persists consultation sessions.
//
// Every Mark*/Complete/Cancel/Reject method is a conditional update: it only
// touches the row while the session is still in a status the transition is
// allowed from, and returns (nil, nil) when that guard no longer holds.
type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindOpenByPair(ctx context.Context, customerID, providerID string) (*model.Session, error)
	// Create inserts a pending session. It returns (nil, nil) when another open
	// session for the same pair already exists.
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	MarkRinging(ctx context.Context, id string, at time.Time) (*model.Session, error)
	MarkActive(ctx context.Context, id string, at time.Time) (*model.Session, error)
	Complete(ctx context.Context, id string, params model.CompleteSessionParams) (*model.Session, error)
	Cancel(ctx context.Context, id string, reason string, endedBy *string, at time.Time) (*model.Session, error)
	Reject(ctx context.Context, id string, by string, at time.Time) (*model.Session, error)
	AppendNote(ctx context.Context, id string, note string) (*model.Session, error)
	List(ctx context.Context, filter model.SessionListFilter) ([]model.Session, error)
	// ExpireStale cancels pending sessions created before pendingBefore and
	// ringing sessions that started ringing before ringingBefore.
	ExpireStale(ctx context.Context, pendingBefore, ringingBefore time.Time) ([]model.Session, error)
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db sqlxDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindOpenByPair(ctx context.Context, customerID, providerID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions
		WHERE customer_id = $1 AND provider_id = $2
		AND status = ANY($3)
	`, customerID, providerID, pq.Array(statusStrings(model.OpenSessionStatuses)))
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (kind, customer_id, provider_id, rate_per_minute, commission_fraction)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (customer_id, provider_id) WHERE status IN ('pending', 'ringing', 'active')
		DO NOTHING
		RETURNING *
	`, params.Kind, params.CustomerID, params.ProviderID, params.RatePerMinute, params.CommissionFraction)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) MarkRinging(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			status = 'ringing',
			ringing_at = $2,
			updated_at = $2
		WHERE id = $1 AND status = 'pending'
		AND kind IN ('voice_call', 'video_call')
		RETURNING *
	`, id, at)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) MarkActive(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			status = 'active',
			start_time = COALESCE(start_time, $2),
			updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'ringing')
		RETURNING *
	`, id, at)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Complete(ctx context.Context, id string, params model.CompleteSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			status = 'completed',
			end_time = $2,
			duration_minutes = $3,
			total_amount = $4,
			provider_earnings = $5,
			platform_commission = $6,
			ended_by = $7,
			updated_at = $2
		WHERE id = $1 AND status = 'active' AND total_amount IS NULL
		RETURNING *
	`, id, params.EndTime, params.DurationMinutes, params.TotalAmount,
		params.ProviderEarnings, params.PlatformCommission, params.EndedBy)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Cancel(ctx context.Context, id string, reason string, endedBy *string, at time.Time) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			status = 'cancelled',
			cancel_reason = $2,
			ended_by = $3,
			end_time = $4,
			updated_at = $4
		WHERE id = $1 AND status IN ('pending', 'ringing', 'active')
		RETURNING *
	`, id, reason, endedBy, at)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Reject(ctx context.Context, id string, by string, at time.Time) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			status = 'rejected',
			ended_by = $2,
			end_time = $3,
			updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'ringing')
		RETURNING *
	`, id, by, at)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) AppendNote(ctx context.Context, id string, note string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			notes = array_append(notes, $2),
			updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'ringing', 'active')
		RETURNING *
	`, id, note)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) List(ctx context.Context, filter model.SessionListFilter) ([]model.Session, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE (customer_id = $1 OR provider_id = $1)
		AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, filter.ActorID, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) ExpireStale(ctx context.Context, pendingBefore, ringingBefore time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		UPDATE sessions SET
			status = 'cancelled',
			cancel_reason = 'expired',
			end_time = NOW(),
			updated_at = NOW()
		WHERE (status = 'pending' AND created_at < $1)
		OR (status = 'ringing' AND ringing_at < $2)
		RETURNING *
	`, pendingBefore, ringingBefore)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func statusStrings(statuses []model.SessionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
