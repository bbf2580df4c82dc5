// Package audit is the registry's event emitter. Every successful mutation
// produces exactly one Event; the append-only store is the ordering
// authority, and external sinks (Kafka, Redis Streams) fan the trail out to
// auditing and indexing tooling. Reads emit nothing; failed operations emit
// nothing.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	id "medledger/pkg/domain"
)

// Kind labels the state transition an event records.
type Kind string

const (
	KindRecordAdded   Kind = "record_added"
	KindRecordUpdated Kind = "record_updated"
	KindAccessGranted Kind = "access_granted"
	KindAccessRevoked Kind = "access_revoked"
)

// Event is an immutable record of one successful state-changing operation.
// Seq is assigned by the store on append and is strictly increasing in the
// order operations are accepted.
type Event struct {
	Seq       uint64
	Kind      Kind
	Patient   id.Principal // owner/patient the operation acted for
	Accessor  id.Principal // counterparty; null when not applicable
	RecordID  id.RecordID  // zero when the event is not record-scoped
	Expiry    time.Time    // grant events carry the window end
	Timestamp time.Time
}

// wirePayload is the JSON shape published to sinks. Identities and record
// keys travel in their canonical string forms.
type wirePayload struct {
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	Patient   string `json:"patient"`
	Accessor  string `json:"accessor,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
	Expiry    string `json:"expiry,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Encode renders the event as its canonical JSON wire form.
func (e Event) Encode() ([]byte, error) {
	p := wirePayload{
		Seq:       e.Seq,
		Kind:      string(e.Kind),
		Patient:   e.Patient.String(),
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
	}
	if !e.Accessor.IsNil() {
		p.Accessor = e.Accessor.String()
	}
	if !e.RecordID.IsZero() {
		p.RecordID = e.RecordID.String()
	}
	if !e.Expiry.IsZero() {
		p.Expiry = e.Expiry.Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	return b, nil
}
