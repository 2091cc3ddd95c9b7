package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/service"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/pkg/httpx"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

// AccountsHandler handles account management: public registration plus the
// admin-facing list, update and delete operations.
type AccountsHandler struct {
	AccountService *service.AccountService
}

type createAccountRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type accountInfo struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	LoggedIn    bool     `json:"logged_in"`
	LastLoginAt string   `json:"last_login_at,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

func toAccountInfo(acct domain.Account) accountInfo {
	info := accountInfo{
		ID:        acct.ID,
		Name:      acct.Name,
		Roles:     acct.Roles,
		LoggedIn:  acct.SessionMarker != nil,
		CreatedAt: acct.CreatedAt.Format(time.RFC3339),
	}
	if acct.LastLoginAt != nil {
		info.LastLoginAt = acct.LastLoginAt.Format(time.RFC3339)
	}
	return info
}

// HandleCreate handles POST /v1/accounts (public registration).
func (h *AccountsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Invalid JSON in request body")
		return
	}

	acct, err := h.AccountService.Register(ctx, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNameTaken):
			httpx.WriteError(w, http.StatusConflict,
				"name_taken", "An account with this name already exists")
		case errors.Is(err, service.ErrInvalidName),
			errors.Is(err, service.ErrInvalidPassword):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			log.Error("failed to create account", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Failed to create account")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toAccountInfo(acct))
}

// HandleList handles GET /v1/accounts (admin only). The admin account sorts
// first, matching the order the demo frontend shows.
func (h *AccountsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.AccountService.List(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list accounts", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Failed to list accounts")
		return
	}

	infos := make([]accountInfo, len(accounts))
	for i, acct := range accounts {
		infos[i] = toAccountInfo(acct)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string][]accountInfo{"accounts": infos})
}

type updateAccountRequest struct {
	Name     string   `json:"name,omitempty"`
	Password string   `json:"password,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// HandleUpdate handles PATCH /v1/accounts/{id}. Accounts may update their own
// name and password; only an admin may update other accounts or change roles.
// Updates that invalidate the holder's principal clear its session.
func (h *AccountsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Account id must be an integer")
		return
	}

	caller, _ := AccountFromContext(ctx)
	isAdmin := caller.HasRole(domain.RoleAdmin)
	if caller.ID != id && !isAdmin {
		httpx.WriteError(w, http.StatusForbidden,
			"insufficient_role", "Cannot update another account")
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Invalid JSON in request body")
		return
	}
	if len(req.Roles) > 0 && !isAdmin {
		httpx.WriteError(w, http.StatusForbidden,
			"insufficient_role", "Only an admin may change roles")
		return
	}

	acct, err := h.AccountService.UpdateProfile(ctx, id, req.Name, req.Password)
	if err == nil && len(req.Roles) > 0 {
		acct, err = h.AccountService.SetRoles(ctx, id, req.Roles)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteError(w, http.StatusNotFound,
				"account_not_found", "Account not found")
		case errors.Is(err, service.ErrNameTaken):
			httpx.WriteError(w, http.StatusConflict,
				"name_taken", "An account with this name already exists")
		case errors.Is(err, service.ErrInvalidName),
			errors.Is(err, service.ErrInvalidPassword):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			log.Error("failed to update account", "error", err, "account_id", id)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Failed to update account")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAccountInfo(acct))
}

// HandleDelete handles DELETE /v1/accounts/{id} (admin only).
func (h *AccountsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Account id must be an integer")
		return
	}

	// Deleting an account that is already gone is a success: deletion is
	// what this whole service does to accounts anyway.
	if err := h.AccountService.Delete(ctx, id); err != nil {
		slogx.FromContext(ctx).Error("failed to delete account", "error", err, "account_id", id)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Failed to delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
