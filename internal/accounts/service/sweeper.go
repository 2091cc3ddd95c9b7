package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
)

// SweeperService periodically runs the lifecycle engine over every account so
// that expiry and deletion happen even when nobody is polling the status
// endpoints. It is just another engine caller; the engine itself stays free
// of scheduling decisions.
type SweeperService struct {
	Lifecycle *LifecycleService
	Logger    *slog.Logger
	Interval  time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSweeperService creates a new sweeper with the given interval.
// If interval is 0 or negative, defaults to 1 minute.
func NewSweeperService(lifecycle *LifecycleService, logger *slog.Logger, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = time.Minute
	}

	return &SweeperService{
		Lifecycle: lifecycle,
		Logger:    logger,
		Interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut the
// worker down gracefully.
func (s *SweeperService) Start() {
	go s.run()
	s.Logger.Info("sweeper started", "interval", s.Interval)
}

// Stop shuts down the background worker, blocking until any in-progress
// sweep has finished.
func (s *SweeperService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("sweeper stopped")
}

func (s *SweeperService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep evaluates every account once. The sweeper has no session of its own,
// so it passes an empty requester marker; the engine's side effects (marker
// clearing, deletion, admin recreation) do not depend on it. Failures on one
// account don't stop the others.
func (s *SweeperService) sweep() {
	ctx := context.Background()

	accounts, err := s.Lifecycle.Store.Accounts().ListAccountsAdminFirst(ctx, domain.RoleAdmin)
	if err != nil {
		s.Logger.Error("sweep: failed to list accounts", "error", err)
		return
	}

	var deleted, expired int
	for _, acct := range accounts {
		hadSession := acct.SessionMarker != nil

		status, err := s.Lifecycle.Evaluate(ctx, acct.ID, "")
		if err != nil {
			s.Logger.Error("sweep: evaluation failed", "account_id", acct.ID, "error", err)
			continue
		}

		switch {
		case status.State == StateDeleted:
			deleted++
		case hadSession && status.State != StateLocalLogoutPending && status.State != StateRemoteLogoutPending:
			expired++
		}
	}

	if deleted > 0 || expired > 0 {
		s.Logger.Info("sweep completed",
			"accounts", len(accounts),
			"sessions_expired", expired,
			"deleted", deleted,
		)
	}
}
