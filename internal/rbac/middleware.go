package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/steward-admin/steward/internal/platform/httpx"
	"github.com/steward-admin/steward/internal/shared"
)

type actorContextKey struct{}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, nil when anonymous.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}

// DenialCounter records gate denials, satisfied by observability.Metrics.
type DenialCounter interface {
	AuthzDenied(kind string)
}

// Middleware resolves the request actor once and enforces requirements
// before any handler runs.
type Middleware struct {
	Service *Service
	Gate    Gate
	Logger  *slog.Logger
	Metrics DenialCounter
}

// Require rejects the request unless the session's actor satisfies the
// requirement. Denied requests never reach the wrapped handler.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := m.resolveActor(w, r)
			if !ok {
				return
			}
			if err := m.Gate.Authorize(actor, req); err != nil {
				if m.Metrics != nil {
					m.Metrics.AuthzDenied(req.Kind())
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "You are not allowed to perform this action.")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

func (m Middleware) resolveActor(w http.ResponseWriter, r *http.Request) (*Actor, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in to continue.")
		return nil, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in to continue.")
		return nil, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse session user id", slog.String("value", raw))
		}
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in to continue.")
		return nil, false
	}
	actor, err := m.Service.ActorFor(r.Context(), userID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac resolve actor", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "Something went wrong. Please try again.")
		return nil, false
	}
	return actor, true
}
