package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/minutely/consult-server/internal/audit"
	apperrors "github.com/minutely/consult-server/internal/errors"
	"github.com/minutely/consult-server/internal/httputil"
	"github.com/minutely/consult-server/internal/model"
	"github.com/minutely/consult-server/internal/util"
)

type contextKey string

const ActorContextKey contextKey = "actor"

var ErrInvalidToken = errors.New("invalid token")

// Claims are issued by the identity service. Subject carries the actor id.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

func GetActor(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(model.Actor)
	return actor, ok
}

// WithActor returns a context carrying actor, as the auth middleware does.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

// IssueToken signs an HS256 token for actor.
func IssueToken(secret string, actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token and returns the actor it names.
func ParseToken(secret, tokenString string) (model.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Actor{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return model.Actor{}, ErrInvalidToken
	}
	if !util.IsValidUUID(claims.Subject) || !claims.Role.Valid() {
		return model.Actor{}, ErrInvalidToken
	}
	return model.Actor{ID: claims.Subject, Role: claims.Role}, nil
}

type AuthMiddleware struct {
	secret string
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: secret}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.AuthenticationRequired("Missing authentication token"))
			return
		}

		actor, err := ParseToken(m.secret, token)
		if err != nil {
			log.Warn().Err(err).Msg("auth middleware: invalid token attempt")
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventAuthFailure,
				RequestID: middleware.GetReqID(r.Context()),
			})
			httputil.WriteError(w, apperrors.AuthenticationRequired("Invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole rejects actors whose role is not listed.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				httputil.WriteError(w, apperrors.AuthenticationRequired("Authentication required"))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventAccessDenied,
				ActorID:   actor.ID,
				Role:      string(actor.Role),
				RequestID: middleware.GetReqID(r.Context()),
				Details:   map[string]interface{}{"path": r.URL.Path},
			})
			httputil.WriteError(w, apperrors.AccessDenied("Insufficient role"))
		})
	}
}

// extractToken reads the bearer token. The query form exists for EventSource
// clients, which cannot set headers.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return ""
}
