package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "medledger/pkg/domain"
	audit "medledger/pkg/platform/audit"
	txcontext "medledger/pkg/platform/tx"
)

// Store persists the event trail in the audit_events table. The BIGSERIAL
// seq column assigns total order. Append participates in a caller
// transaction when one is present in context, so a record mutation and its
// event commit or roll back together.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) (audit.Event, error) {
	query := `
		INSERT INTO audit_events (kind, patient, accessor, record_id, expiry, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`

	var accessor *uuid.UUID
	if !event.Accessor.IsNil() {
		a := uuid.UUID(event.Accessor)
		accessor = &a
	}
	var recordID []byte
	if !event.RecordID.IsZero() {
		recordID = event.RecordID[:]
	}
	var expiry *time.Time
	if !event.Expiry.IsZero() {
		expiry = &event.Expiry
	}

	err := s.querier(ctx).QueryRowContext(ctx, query,
		string(event.Kind),
		uuid.UUID(event.Patient),
		accessor,
		recordID,
		expiry,
		event.Timestamp,
	).Scan(&event.Seq)
	if err != nil {
		return audit.Event{}, fmt.Errorf("insert audit event: %w", err)
	}
	return event, nil
}

func (s *Store) ListByPatient(ctx context.Context, patient id.Principal) ([]audit.Event, error) {
	query := `
		SELECT seq, kind, patient, accessor, record_id, expiry, ts
		FROM audit_events
		WHERE patient = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(patient))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT seq, kind, patient, accessor, record_id, expiry, ts
		FROM (
			SELECT seq, kind, patient, accessor, record_id, expiry, ts
			FROM audit_events ORDER BY seq DESC LIMIT $1
		) tail
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			kind     string
			patient  uuid.UUID
			accessor *uuid.UUID
			recordID []byte
			expiry   *time.Time
		)
		if err := rows.Scan(&event.Seq, &kind, &patient, &accessor, &recordID, &expiry, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Kind = audit.Kind(kind)
		event.Patient = id.Principal(patient)
		if accessor != nil {
			event.Accessor = id.Principal(*accessor)
		}
		copy(event.RecordID[:], recordID)
		if expiry != nil {
			event.Expiry = *expiry
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
