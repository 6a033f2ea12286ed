package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventSessionCreate      EventType = "session_create"
	EventSessionTransition  EventType = "session_transition"
	EventSessionExpire      EventType = "session_expire"
	EventSettlementPosted   EventType = "settlement_posted"
	EventWithdrawalRequest  EventType = "withdrawal_request"
	EventWithdrawalDecision EventType = "withdrawal_decision"
	EventWithdrawalPaid     EventType = "withdrawal_paid"
	EventRateLimitExceed    EventType = "rate_limit_exceeded"
	EventAuthFailure        EventType = "auth_failure"
	EventAccessDenied       EventType = "access_denied"
)

type Event struct {
	Type      EventType
	ActorID   string
	Role      string
	SessionID string
	RequestID string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

// Log writes a structured audit record. Money-moving events are expected to
// carry amounts as strings so no precision is lost.
func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "ledger").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.ActorID != "" {
		logger = logger.With().Str("actor_id", event.ActorID).Logger()
	}
	if event.Role != "" {
		logger = logger.With().Str("role", event.Role).Logger()
	}
	if event.SessionID != "" {
		logger = logger.With().Str("session_id", event.SessionID).Logger()
	}
	if event.RequestID != "" {
		logger = logger.With().Str("request_id", event.RequestID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case interface{ String() string }:
		return e.Str(key, v.String())
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func getClientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
