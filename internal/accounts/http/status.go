package http

import (
	"net/http"
	"strconv"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/service"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/pkg/httpx"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

// StatusHandler serves the polled lifecycle status endpoints. Polling is how
// expiry and deletion actually fire for accounts nobody else touches, so
// these endpoints stay reachable without a live session: a poller whose
// session was just superseded still needs its REMOTE_LOGOUT_PENDING answer.
type StatusHandler struct {
	Lifecycle *service.LifecycleService
	Store     store.Store
}

// HandleAccountStatus handles GET /api/accounts/{id}/status.
func (h *StatusHandler) HandleAccountStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Account id must be an integer")
		return
	}

	status, err := h.Lifecycle.Evaluate(ctx, id, MarkerFromContext(ctx))
	if err != nil {
		slogx.FromContext(ctx).Error("status evaluation failed", "error", err, "account_id", id)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Failed to evaluate account status")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, status)
}

type adminStatusResponse struct {
	State            service.State `json:"state"`
	SecondsRemaining int64         `json:"seconds_remaining"`
}

// HandleAdminStatus handles GET /public/admin/status. The admin account's id
// is not exposed; anonymous visitors only get the lifecycle state and timer.
func (h *StatusHandler) HandleAdminStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	admins, err := h.Store.Accounts().ListAccountsByRole(ctx, domain.RoleAdmin)
	if err != nil {
		log.Error("admin lookup failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Failed to look up admin account")
		return
	}
	if len(admins) == 0 {
		// Between deletion and recreation there is no admin row to evaluate.
		httpx.WriteJSON(w, http.StatusOK, adminStatusResponse{State: service.StateDeleted})
		return
	}

	status, err := h.Lifecycle.Evaluate(ctx, admins[0].ID, MarkerFromContext(ctx))
	if err != nil {
		log.Error("status evaluation failed", "error", err, "account_id", admins[0].ID)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Failed to evaluate account status")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, adminStatusResponse{
		State:            status.State,
		SecondsRemaining: status.SecondsRemaining,
	})
}
