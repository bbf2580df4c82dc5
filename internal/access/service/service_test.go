package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medledger/internal/access"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	audit "medledger/pkg/platform/audit"
	"medledger/pkg/platform/tx"
	"medledger/pkg/requestcontext"
)

// recordingEmitter mimics the publisher: Emit assigns the next sequence
// number and records the accepted event; Fanout records what would reach
// external sinks.
type recordingEmitter struct {
	events []audit.Event
	fanned []audit.Event
}

func (r *recordingEmitter) Emit(_ context.Context, event audit.Event) (audit.Event, error) {
	event.Seq = uint64(len(r.events) + 1)
	r.events = append(r.events, event)
	return event, nil
}

func (r *recordingEmitter) Fanout(event audit.Event) {
	r.fanned = append(r.fanned, event)
}

func newPrincipal(t *testing.T) id.Principal {
	t.Helper()
	p, err := id.ParsePrincipal(uuid.NewString())
	require.NoError(t, err)
	return p
}

func callerCtx(caller id.Principal, now time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), caller)
	return requestcontext.WithTime(ctx, now)
}

func newTestService() (*Service, *recordingEmitter) {
	emitter := &recordingEmitter{}
	svc := NewService(access.NewInMemoryStore(), emitter, tx.Passthrough{}, nil, &sync.Mutex{})
	return svc, emitter
}

func TestGrant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("creates an active grant expiring at now plus ttl", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		grant, err := svc.Grant(callerCtx(patient, now), accessor, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, patient, grant.Patient)
		assert.Equal(t, accessor, grant.Accessor)
		assert.True(t, grant.Active)
		assert.Equal(t, now.Add(time.Hour), grant.Expiry)

		require.Len(t, emitter.events, 1)
		assert.Equal(t, audit.KindAccessGranted, emitter.events[0].Kind)
		assert.Equal(t, patient, emitter.events[0].Patient)
		assert.Equal(t, accessor, emitter.events[0].Accessor)
		assert.Equal(t, grant.Expiry, emitter.events[0].Expiry)
	})

	t.Run("regrant overwrites the prior window", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Hour)
		require.NoError(t, err)

		later := now.Add(30 * time.Minute)
		_, err = svc.Grant(callerCtx(patient, later), accessor, time.Minute)
		require.NoError(t, err)

		got, err := svc.Check(context.Background(), patient, accessor)
		require.NoError(t, err)
		assert.Equal(t, later.Add(time.Minute), got.Expiry, "durations must not stack")
		assert.Len(t, emitter.events, 2)
	})

	t.Run("rejects missing caller", func(t *testing.T) {
		svc, emitter := newTestService()
		_, err := svc.Grant(context.Background(), newPrincipal(t), time.Hour)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
		assert.Empty(t, emitter.events)
	})

	t.Run("rejects null accessor", func(t *testing.T) {
		svc, emitter := newTestService()
		_, err := svc.Grant(callerCtx(newPrincipal(t), now), id.Principal{}, time.Hour)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidAccessor))
		assert.Empty(t, emitter.events)
	})

	t.Run("rejects self grant", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		_, err := svc.Grant(callerCtx(patient, now), patient, time.Hour)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeSelfGrant))
		assert.Empty(t, emitter.events)
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		for _, ttl := range []time.Duration{0, -time.Second} {
			_, err := svc.Grant(callerCtx(patient, now), newPrincipal(t), ttl)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		}
		assert.Empty(t, emitter.events)
	})
}

// commitFailRunner runs the mutation but fails the surrounding commit, the
// way a dropped connection would at transaction end.
type commitFailRunner struct{}

func (commitFailRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return dErrors.New(dErrors.CodeInternal, "commit failed")
}

func TestFanout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("committed mutations fan out the sequenced event", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Hour)
		require.NoError(t, err)
		require.NoError(t, svc.Revoke(callerCtx(patient, now.Add(time.Minute)), accessor))

		require.Len(t, emitter.fanned, 2)
		assert.Equal(t, emitter.events, emitter.fanned, "sinks see exactly the accepted events")
		assert.Equal(t, uint64(1), emitter.fanned[0].Seq)
		assert.Equal(t, uint64(2), emitter.fanned[1].Seq)
	})

	t.Run("a failed commit reaches no sink", func(t *testing.T) {
		emitter := &recordingEmitter{}
		svc := NewService(access.NewInMemoryStore(), emitter, commitFailRunner{}, nil, &sync.Mutex{})

		_, err := svc.Grant(callerCtx(newPrincipal(t), now), newPrincipal(t), time.Hour)
		require.Error(t, err)
		assert.Empty(t, emitter.fanned)
	})
}

func TestRevoke(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deactivates the grant and stamps expiry at revocation time", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Hour)
		require.NoError(t, err)

		revokedAt := now.Add(10 * time.Minute)
		require.NoError(t, svc.Revoke(callerCtx(patient, revokedAt), accessor))

		got, err := svc.Check(context.Background(), patient, accessor)
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.Equal(t, revokedAt, got.Expiry)

		require.Len(t, emitter.events, 2)
		assert.Equal(t, audit.KindAccessRevoked, emitter.events[1].Kind)
	})

	t.Run("fails when no grant exists", func(t *testing.T) {
		svc, _ := newTestService()
		err := svc.Revoke(callerCtx(newPrincipal(t), now), newPrincipal(t))
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeNoActiveGrant))
	})

	t.Run("fails on an already revoked grant", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Hour)
		require.NoError(t, err)
		require.NoError(t, svc.Revoke(callerCtx(patient, now.Add(time.Minute)), accessor))

		err = svc.Revoke(callerCtx(patient, now.Add(2*time.Minute)), accessor)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeNoActiveGrant))
		assert.Len(t, emitter.events, 2, "failed revoke must not emit")
	})

	t.Run("expired but unrevoked grant is still revocable", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Second)
		require.NoError(t, err)

		afterExpiry := now.Add(time.Hour)
		require.NoError(t, svc.Revoke(callerCtx(patient, afterExpiry), accessor))

		require.Len(t, emitter.events, 2)
		assert.Equal(t, audit.KindAccessRevoked, emitter.events[1].Kind)
	})
}

func TestCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns zero grant for an unknown pair", func(t *testing.T) {
		svc, _ := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		got, err := svc.Check(context.Background(), patient, accessor)
		require.NoError(t, err)
		assert.Equal(t, access.Grant{Patient: patient, Accessor: accessor}, got)
	})

	t.Run("is idempotent and changes no state", func(t *testing.T) {
		svc, emitter := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Hour)
		require.NoError(t, err)

		first, err := svc.Check(context.Background(), patient, accessor)
		require.NoError(t, err)
		second, err := svc.Check(context.Background(), patient, accessor)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Len(t, emitter.events, 1, "queries must not emit")
	})
}

func TestAuthorize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("owner always reads own records", func(t *testing.T) {
		svc, _ := newTestService()
		patient := newPrincipal(t)
		require.NoError(t, svc.Authorize(callerCtx(patient, now), patient))
	})

	t.Run("grantee reads while the grant is live", func(t *testing.T) {
		svc, _ := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Hour)
		require.NoError(t, err)

		require.NoError(t, svc.Authorize(callerCtx(accessor, now.Add(time.Minute)), patient))
	})

	t.Run("denies after expiry without any revoke", func(t *testing.T) {
		svc, _ := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Minute)
		require.NoError(t, err)

		err = svc.Authorize(callerCtx(accessor, now.Add(2*time.Minute)), patient)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	t.Run("denies after revoke", func(t *testing.T) {
		svc, _ := newTestService()
		patient := newPrincipal(t)
		accessor := newPrincipal(t)

		_, err := svc.Grant(callerCtx(patient, now), accessor, time.Hour)
		require.NoError(t, err)
		require.NoError(t, svc.Revoke(callerCtx(patient, now.Add(time.Minute)), accessor))

		err = svc.Authorize(callerCtx(accessor, now.Add(2*time.Minute)), patient)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	t.Run("denies a stranger", func(t *testing.T) {
		svc, _ := newTestService()
		err := svc.Authorize(callerCtx(newPrincipal(t), now), newPrincipal(t))
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	t.Run("denies a missing caller", func(t *testing.T) {
		svc, _ := newTestService()
		err := svc.Authorize(context.Background(), newPrincipal(t))
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	})
}
