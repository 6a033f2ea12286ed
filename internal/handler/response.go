package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/minutely/consult-server/internal/config"
	apperrors "github.com/minutely/consult-server/internal/errors"
	"github.com/minutely/consult-server/internal/httputil"
	appmiddleware "github.com/minutely/consult-server/internal/middleware"
	"github.com/minutely/consult-server/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError logs unexpected failures before mapping err to a response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if !apperrors.IsAppError(err) {
		log.Error().
			Err(err).
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	httputil.WriteError(w, err)
}

// requireActor returns the authenticated caller or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := appmiddleware.GetActor(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.AuthenticationRequired("Authentication required"))
	}
	return actor, ok
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(config.CurrencyDecimals)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
