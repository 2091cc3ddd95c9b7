package http

import (
	"net/http"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/pkg/httpx"
)

// ReadyzHandler is the readiness probe: checks database connectivity and
// schema usability on top of the liveness facts. A reachable database whose
// accounts table cannot be queried is not ready either.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{Database: "ok"}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else if n, err := st.Accounts().CountAccounts(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks.Accounts = n
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
