// Package access is the access control ledger: one time-bounded read grant
// per (patient, accessor) pair. Grants are never deleted; revocation and
// expiry are state transitions so the trail stays reconstructible.
package access

import (
	"time"

	id "medledger/pkg/domain"
)

// Grant is the current authorization state for one (patient, accessor) pair.
// A new grant fully overwrites the prior one; durations never stack.
type Grant struct {
	Patient  id.Principal
	Accessor id.Principal
	Active   bool
	Expiry   time.Time
}

// IsActive reports whether the grant authorizes access at now. Expiry is
// evaluated lazily here, never transitioned by a background task: a grant
// with Active=false or Expiry<=now denies identically.
func (g Grant) IsActive(now time.Time) bool {
	return g.Active && g.Expiry.After(now)
}
