package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/minutely/consult-server/internal/audit"
	"github.com/minutely/consult-server/internal/config"
	apperrors "github.com/minutely/consult-server/internal/errors"
	"github.com/minutely/consult-server/internal/httputil"
	"github.com/minutely/consult-server/internal/service"
)

// APIRateLimitMiddleware is the general per-caller throttle. Authenticated
// requests are keyed by actor, anonymous ones by client address.
type APIRateLimitMiddleware struct {
	limiter *service.RateLimiter
	policy  service.LimitPolicy
}

func NewAPIRateLimitMiddleware(limiter *service.RateLimiter, perMinute int, failOpen bool) *APIRateLimitMiddleware {
	return &APIRateLimitMiddleware{
		limiter: limiter,
		policy: service.LimitPolicy{
			Limit:    perMinute,
			Window:   config.APIRateLimitWindow,
			FailOpen: failOpen,
		},
	}
}

func (m *APIRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := "ip:" + r.RemoteAddr
		actor, ok := GetActor(r.Context())
		if ok {
			identifier = actor.ID
		}

		res, err := m.limiter.CheckLimit(r.Context(), identifier+":"+config.APIRequestAction, m.policy)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.policy.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(math.Ceil(res.RetryAfter(time.Now()).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			log.Warn().Str("identifier", identifier).Msg("api rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventRateLimitExceed,
				ActorID:   actor.ID,
				RequestID: middleware.GetReqID(r.Context()),
				Details:   map[string]interface{}{"action": config.APIRequestAction},
			})
			httputil.WriteError(w, apperrors.RateLimitExceeded().WithDetails(map[string]int{
				"retry_after_seconds": retryAfter,
			}))
			return
		}

		next.ServeHTTP(w, r)
	})
}
