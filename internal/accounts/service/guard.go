package service

import (
	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
)

// SessionGuard implements the single-session policy checks. Both predicates
// are pure; callers decide what an access denial looks like.
type SessionGuard struct{}

// SameSession reports whether the request marker is the account's one
// authorised session. False whenever the stored marker is nil: a request
// presenting a marker that differs from the stored one has been superseded
// by a login elsewhere, it is never a second valid session.
func (SessionGuard) SameSession(a domain.Account, requestMarker string) bool {
	return a.SessionMarker != nil && *a.SessionMarker == requestMarker
}

// StillValid reports whether a previously authenticated principal can keep
// its session without re-authenticating: the stored and freshly loaded
// accounts must agree on name and role set, and the stored principal must
// still hold a session marker.
//
// Marker values are deliberately not compared here; that is SameSession's
// job. This predicate only cares that a marker exists at all, so a marker
// cleared by the lifecycle engine (or a logout) invalidates the principal.
func (SessionGuard) StillValid(stored, fresh domain.Account) bool {
	if stored.Name != fresh.Name {
		return false
	}
	if !domain.SameRoles(stored, fresh) {
		return false
	}
	return stored.SessionMarker != nil
}
