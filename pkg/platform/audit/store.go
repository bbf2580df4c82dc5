package audit

import (
	"context"

	id "medledger/pkg/domain"
)

// Store is the append-only event log. Append assigns the event's sequence
// number and returns the accepted event carrying it; nothing ever mutates or
// removes an appended event.
type Store interface {
	Append(ctx context.Context, event Event) (Event, error)
	ListByPatient(ctx context.Context, patient id.Principal) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
