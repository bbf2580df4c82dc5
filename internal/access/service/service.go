// Package service implements grant, revoke, and check over the access
// ledger, plus the authorization predicate every read path goes through.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"medledger/internal/access"
	"medledger/internal/platform/metrics"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	audit "medledger/pkg/platform/audit"
	"medledger/pkg/platform/sentinel"
	"medledger/pkg/platform/tx"
	"medledger/pkg/requestcontext"
)

var tracer = otel.Tracer("medledger/internal/access")

// Emitter is the slice of the audit publisher the ledger needs. Emit joins
// the mutation's transaction; Fanout runs only after it committed.
type Emitter interface {
	Emit(ctx context.Context, event audit.Event) (audit.Event, error)
	Fanout(event audit.Event)
}

// Service owns grant state transitions. Mutations run under the commit lock
// shared with the record service: one writer at a time across the whole
// registry, with reads served from last-committed state.
type Service struct {
	store   access.Store
	audit   Emitter
	tx      tx.Runner
	metrics *metrics.Metrics
	mu      *sync.Mutex
}

func NewService(store access.Store, emitter Emitter, runner tx.Runner, m *metrics.Metrics, commitLock *sync.Mutex) *Service {
	return &Service{store: store, audit: emitter, tx: runner, metrics: m, mu: commitLock}
}

// Grant gives accessor a read window over the caller's records ending at
// now+ttl. Any prior grant for the pair is fully overwritten.
func (s *Service) Grant(ctx context.Context, accessor id.Principal, ttl time.Duration) (access.Grant, error) {
	ctx, span := tracer.Start(ctx, "access.Grant",
		trace.WithAttributes(attribute.String("accessor", accessor.String())))
	defer span.End()

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return access.Grant{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity missing")
	}
	if accessor.IsNil() {
		return access.Grant{}, dErrors.New(dErrors.CodeInvalidAccessor, "accessor must not be the null identity")
	}
	if accessor == caller {
		return access.Grant{}, dErrors.New(dErrors.CodeSelfGrant, "cannot grant access to yourself")
	}
	if ttl <= 0 {
		return access.Grant{}, dErrors.New(dErrors.CodeBadRequest, "duration must be positive")
	}

	now := requestcontext.Now(ctx)
	grant := access.Grant{
		Patient:  caller,
		Accessor: accessor,
		Active:   true,
		Expiry:   now.Add(ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var accepted audit.Event
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, grant); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save grant")
		}
		var err error
		accepted, err = s.audit.Emit(ctx, audit.Event{
			Kind:      audit.KindAccessGranted,
			Patient:   caller,
			Accessor:  accessor,
			Expiry:    grant.Expiry,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return access.Grant{}, err
	}
	s.audit.Fanout(accepted)

	if s.metrics != nil {
		s.metrics.AccessGranted.Inc()
	}
	return grant, nil
}

// Revoke closes the window for (caller, accessor) immediately. The stored
// Active flag alone decides revocability: an expired-but-unrevoked grant can
// still be revoked, and the distinction survives in the event trail.
func (s *Service) Revoke(ctx context.Context, accessor id.Principal) error {
	ctx, span := tracer.Start(ctx, "access.Revoke",
		trace.WithAttributes(attribute.String("accessor", accessor.String())))
	defer span.End()

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity missing")
	}
	if accessor.IsNil() {
		return dErrors.New(dErrors.CodeInvalidAccessor, "accessor must not be the null identity")
	}

	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.store.Find(ctx, caller, accessor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNoActiveGrant, "no active grant for accessor")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "find grant")
	}
	if !grant.Active {
		return dErrors.New(dErrors.CodeNoActiveGrant, "no active grant for accessor")
	}

	grant.Active = false
	grant.Expiry = now

	var accepted audit.Event
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, grant); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save grant")
		}
		accepted, err = s.audit.Emit(ctx, audit.Event{
			Kind:      audit.KindAccessRevoked,
			Patient:   caller,
			Accessor:  accessor,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Fanout(accepted)

	if s.metrics != nil {
		s.metrics.AccessRevoked.Inc()
	}
	return nil
}

// Check returns the stored grant for the pair, or the zero-value grant when
// none exists. Pure query: no state change, never fails on absence.
func (s *Service) Check(ctx context.Context, patient, accessor id.Principal) (access.Grant, error) {
	grant, err := s.store.Find(ctx, patient, accessor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return access.Grant{Patient: patient, Accessor: accessor}, nil
		}
		return access.Grant{}, dErrors.Wrap(err, dErrors.CodeInternal, "find grant")
	}
	return grant, nil
}

// Authorize is the read-path predicate: the caller may read patient's records
// iff caller == patient or a live grant exists at now. Write paths never call
// this; grants confer read-only capability.
func (s *Service) Authorize(ctx context.Context, patient id.Principal) error {
	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity missing")
	}
	if caller == patient {
		return nil
	}

	grant, err := s.store.Find(ctx, patient, caller)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "find grant")
	}
	if err == nil && grant.IsActive(requestcontext.Now(ctx)) {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "no active grant for patient's records")
}
