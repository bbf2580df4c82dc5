package record

import (
	"context"
	"time"

	id "medledger/pkg/domain"
)

// Store persists records and the per-owner index. Entries are never deleted.
//
// Create fails with sentinel.ErrConflict when the key is already in use, and
// appends the key to the owner's index in the same mutation. UpdateReference
// fails with sentinel.ErrNotFound for unknown keys; ownership is the
// service's concern. ListByOwner returns keys in creation order.
type Store interface {
	Create(ctx context.Context, rec Record) error
	UpdateReference(ctx context.Context, recordID id.RecordID, dataReference string, modified time.Time) error
	Get(ctx context.Context, recordID id.RecordID) (Record, error)
	ListByOwner(ctx context.Context, owner id.Principal) ([]id.RecordID, error)
}
