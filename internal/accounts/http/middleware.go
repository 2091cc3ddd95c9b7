package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/service"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/pkg/httpx"
)

type ctxKey string

const (
	ctxKeyAccount ctxKey = "session_account"
	ctxKeyMarker  ctxKey = "session_marker"
)

// AccountFromContext returns the authenticated account, if any.
func AccountFromContext(ctx context.Context) (domain.Account, bool) {
	acct, ok := ctx.Value(ctxKeyAccount).(domain.Account)
	return acct, ok
}

// MarkerFromContext returns the session marker presented on the request,
// whether or not it resolved to an account. The status endpoints need the raw
// marker: a poller whose session was already superseded presents a marker
// that no longer matches any account.
func MarkerFromContext(ctx context.Context) string {
	if m, ok := ctx.Value(ctxKeyMarker).(string); ok {
		return m
	}
	return ""
}

// SessionMiddleware resolves the bearer session marker to an account without
// rejecting anything. The marker is always stored in the context; the account
// only when the marker still owns a session. Endpoints that need an
// authenticated caller stack RequireSession on top.
func SessionMiddleware(st store.Store, guard service.SessionGuard) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			marker := bearerMarker(r)
			if marker == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyMarker, marker)

			acct, err := st.Accounts().GetAccountBySession(ctx, marker)
			if err == nil && guard.SameSession(acct, marker) {
				ctx = context.WithValue(ctx, ctxKeyAccount, acct)
				ctx = context.WithValue(ctx, httpx.CtxKeyAccountID,
					strconv.FormatInt(acct.ID, 10))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that did not resolve to a live session.
func RequireSession() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := AccountFromContext(r.Context()); !ok {
				httpx.WriteError(w, http.StatusUnauthorized,
					"invalid_session", "A valid session is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects authenticated requests whose account lacks the role.
// Stack after RequireSession.
func RequireRole(role string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, ok := AccountFromContext(r.Context())
			if !ok || !acct.HasRole(role) {
				httpx.WriteError(w, http.StatusForbidden,
					"insufficient_role", "This operation requires the "+role+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerMarker(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
