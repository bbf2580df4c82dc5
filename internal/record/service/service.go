// Package service implements the record operations. Writes are gated solely
// by ownership; reads are gated by the access ledger's authorization
// predicate. Every successful mutation emits exactly one audit event inside
// the same commit.
package service

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"medledger/internal/platform/metrics"
	"medledger/internal/record"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	audit "medledger/pkg/platform/audit"
	"medledger/pkg/platform/sentinel"
	"medledger/pkg/platform/tx"
	"medledger/pkg/requestcontext"
)

var tracer = otel.Tracer("medledger/internal/record")

// Authorizer is the access ledger's read-path predicate.
type Authorizer interface {
	Authorize(ctx context.Context, patient id.Principal) error
}

// Emitter is the slice of the audit publisher the record store needs. Emit
// joins the mutation's transaction; Fanout runs only after it committed.
type Emitter interface {
	Emit(ctx context.Context, event audit.Event) (audit.Event, error)
	Fanout(event audit.Event)
}

// Service owns record state transitions under the registry-wide commit lock.
type Service struct {
	store   record.Store
	authz   Authorizer
	audit   Emitter
	tx      tx.Runner
	metrics *metrics.Metrics
	mu      *sync.Mutex
}

func NewService(store record.Store, authz Authorizer, emitter Emitter, runner tx.Runner, m *metrics.Metrics, commitLock *sync.Mutex) *Service {
	return &Service{store: store, authz: authz, audit: emitter, tx: runner, metrics: m, mu: commitLock}
}

// Add creates a record with the caller as owner. The key is claimed
// first-come: a second creation under the same key fails with AlreadyExists
// regardless of who owns the first.
func (s *Service) Add(ctx context.Context, recordID id.RecordID, dataReference string) (record.Record, error) {
	ctx, span := tracer.Start(ctx, "record.Add",
		trace.WithAttributes(attribute.String("record_id", recordID.String())))
	defer span.End()

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return record.Record{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity missing")
	}
	if recordID.IsZero() {
		return record.Record{}, dErrors.New(dErrors.CodeBadRequest, "record id must not be all zero")
	}

	now := requestcontext.Now(ctx)
	rec := record.Record{
		ID:            recordID,
		DataReference: dataReference,
		Owner:         caller,
		LastModified:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var accepted audit.Event
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, rec); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyExists, "record id already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create record")
		}
		var err error
		accepted, err = s.audit.Emit(ctx, audit.Event{
			Kind:      audit.KindRecordAdded,
			Patient:   caller,
			RecordID:  recordID,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return record.Record{}, err
	}
	s.audit.Fanout(accepted)

	if s.metrics != nil {
		s.metrics.RecordsCreated.Inc()
	}
	return rec, nil
}

// Update replaces the record's data reference. Only the stored owner may
// update; grants never confer write capability.
func (s *Service) Update(ctx context.Context, recordID id.RecordID, dataReference string) (record.Record, error) {
	ctx, span := tracer.Start(ctx, "record.Update",
		trace.WithAttributes(attribute.String("record_id", recordID.String())))
	defer span.End()

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return record.Record{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity missing")
	}

	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return record.Record{}, dErrors.New(dErrors.CodeNotFound, "record does not exist")
		}
		return record.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "get record")
	}
	if rec.Owner != caller {
		return record.Record{}, dErrors.New(dErrors.CodeNotOwner, "caller does not own this record")
	}

	var accepted audit.Event
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateReference(ctx, recordID, dataReference, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update record")
		}
		accepted, err = s.audit.Emit(ctx, audit.Event{
			Kind:      audit.KindRecordUpdated,
			Patient:   caller,
			RecordID:  recordID,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return record.Record{}, err
	}
	s.audit.Fanout(accepted)

	rec.DataReference = dataReference
	rec.LastModified = now
	if s.metrics != nil {
		s.metrics.RecordsUpdated.Inc()
	}
	return rec, nil
}

// Get returns the record under recordID within patient's visible set. A key
// that exists but is owned by someone else resolves to NotFound: authorization
// against the named patient never leaks other owners' records.
func (s *Service) Get(ctx context.Context, recordID id.RecordID, patient id.Principal) (record.Record, error) {
	ctx, span := tracer.Start(ctx, "record.Get",
		trace.WithAttributes(attribute.String("record_id", recordID.String())))
	defer span.End()

	if err := s.authorizeRead(ctx, patient); err != nil {
		return record.Record{}, err
	}

	rec, err := s.store.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return record.Record{}, dErrors.New(dErrors.CodeNotFound, "record does not exist")
		}
		return record.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "get record")
	}
	if rec.Owner != patient {
		return record.Record{}, dErrors.New(dErrors.CodeNotFound, "record does not exist")
	}

	if s.metrics != nil {
		s.metrics.ReadsAllowed.Inc()
	}
	return rec, nil
}

// ListByPatient returns the patient's record keys in creation order.
func (s *Service) ListByPatient(ctx context.Context, patient id.Principal) ([]id.RecordID, error) {
	ctx, span := tracer.Start(ctx, "record.ListByPatient")
	defer span.End()

	if err := s.authorizeRead(ctx, patient); err != nil {
		return nil, err
	}

	ids, err := s.store.ListByOwner(ctx, patient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list patient records")
	}
	if s.metrics != nil {
		s.metrics.ReadsAllowed.Inc()
	}
	return ids, nil
}

// ListRecords returns the patient's full records in creation order, for
// callers that want references and timestamps in one round trip.
func (s *Service) ListRecords(ctx context.Context, patient id.Principal) ([]record.Record, error) {
	ctx, span := tracer.Start(ctx, "record.ListRecords")
	defer span.End()

	if err := s.authorizeRead(ctx, patient); err != nil {
		return nil, err
	}

	ids, err := s.store.ListByOwner(ctx, patient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list patient records")
	}
	records := make([]record.Record, 0, len(ids))
	for _, rid := range ids {
		rec, err := s.store.Get(ctx, rid)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get record")
		}
		records = append(records, rec)
	}
	if s.metrics != nil {
		s.metrics.ReadsAllowed.Inc()
	}
	return records, nil
}

func (s *Service) authorizeRead(ctx context.Context, patient id.Principal) error {
	if err := s.authz.Authorize(ctx, patient); err != nil {
		if s.metrics != nil && dErrors.Is(err, dErrors.CodeUnauthorized) {
			s.metrics.ReadsDenied.Inc()
		}
		return err
	}
	return nil
}
