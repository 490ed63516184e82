/*
actor.go - Actor resolution middleware and authorization helpers

PURPOSE:
  Turns the X-Username request header into a ledger.ActorContext and
  attaches it to the request context. Session management lives outside
  this service; by the time a request arrives, the gateway has already
  authenticated it and forwards the account name in the header.

AUTHORIZATION:
  Handlers call h.authorize(w, r, perm) before any gated action. The
  permission table itself lives in ledger/scope.go; this file only maps
  denial to HTTP 403. A denied request never partially applies.

FAILURE SEMANTICS:
  - Missing header:        401, no actor
  - Unknown profile:       401, account not registered
  - Permission denied:     403
*/
package api

import (
	"context"
	"net/http"

	"github.com/mealdesk/canteen-ledger/ledger"
)

type contextKey string

const actorKey contextKey = "actor"

// actorHeader carries the authenticated account name, set by the gateway.
const actorHeader = "X-Username"

// WithActor resolves the X-Username header to a profile and stores the
// resulting ActorContext in the request context. Requests without a
// resolvable actor are rejected before reaching any handler.
func (h *Handler) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get(actorHeader)
		if username == "" {
			writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header", nil)
			return
		}

		profile, err := h.Store.FetchProfile(r.Context(), username)
		if err != nil {
			if ledger.IsNotFound(err) {
				writeError(w, http.StatusUnauthorized, "account not registered", nil)
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to resolve account", err)
			return
		}

		actor := ledger.ActorContext{
			UserID:   profile.ID,
			Username: profile.Username,
			Role:     profile.Role,
		}
		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the ActorContext the middleware attached.
func actorFrom(r *http.Request) ledger.ActorContext {
	actor, _ := r.Context().Value(actorKey).(ledger.ActorContext)
	return actor
}

// authorize checks the actor's permission and writes a 403 on denial.
// Returns the actor and whether the handler may proceed.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, p ledger.Permission) (ledger.ActorContext, bool) {
	actor := actorFrom(r)
	if !actor.Can(p) {
		writeError(w, http.StatusForbidden, "access denied", ledger.ErrAccessDenied)
		return actor, false
	}
	return actor, true
}
