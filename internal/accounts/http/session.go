package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/service"
	"github.com/sandcastle-auth/sandcastle/pkg/httpx"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

// SessionHandler serves login and logout. A successful login returns the
// session marker the client must present as a bearer credential; it also
// supersedes any session that previously held the account.
type SessionHandler struct {
	AccountService *service.AccountService
}

type loginResponse struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Roles   []string `json:"roles"`
	Session string   `json:"session"`
}

// HandleLogin handles POST /v1/login. The body is form-encoded so the rate
// limiter can key attempts by IP and account name before the handler runs.
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Content-Type must be application/x-www-form-urlencoded")
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Invalid form body")
		return
	}

	acct, marker, err := h.AccountService.Login(ctx, r.Form.Get("name"), r.Form.Get("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_credentials", "Invalid name or password")
			return
		}
		log.Error("login failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Failed to log in")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		ID:      acct.ID,
		Name:    acct.Name,
		Roles:   acct.Roles,
		Session: marker,
	})
}

// HandleLogout handles POST /v1/logout for the authenticated account.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	acct, _ := AccountFromContext(ctx)
	if err := h.AccountService.Logout(ctx, acct.ID); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "error", err, "account_id", acct.ID)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Failed to log out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
