// Package record is the record store: one entry per record key, created
// once, updatable only by its owner. Entries hold opaque references to
// externally stored content; the registry never interprets them.
package record

import (
	"time"

	id "medledger/pkg/domain"
)

// Record maps a caller-supplied key to an off-chain data reference and the
// owning principal. ID and Owner are immutable after creation (there is no
// transfer operation); LastModified only increases.
type Record struct {
	ID            id.RecordID
	DataReference string
	Owner         id.Principal
	LastModified  time.Time
}
