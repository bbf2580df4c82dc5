package access

import (
	"context"

	id "medledger/pkg/domain"
)

// Store persists grants keyed by (patient, accessor). Save overwrites any
// existing grant for the pair; Find returns sentinel.ErrNotFound when the
// pair has never been granted.
type Store interface {
	Save(ctx context.Context, grant Grant) error
	Find(ctx context.Context, patient, accessor id.Principal) (Grant, error)
}
