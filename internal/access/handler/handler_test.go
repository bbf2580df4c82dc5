package handler

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medledger/internal/access"
	accessservice "medledger/internal/access/service"
	id "medledger/pkg/domain"
	"medledger/pkg/platform/audit/publisher"
	auditmemory "medledger/pkg/platform/audit/store/memory"
	"medledger/pkg/platform/tx"
	"medledger/pkg/testutil"
)

type fixture struct {
	router   chi.Router
	now      time.Time
	patient  id.Principal
	accessor id.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	t.Cleanup(pub.Close)

	var commitLock sync.Mutex
	ledger := accessservice.NewService(access.NewInMemoryStore(), pub, tx.Passthrough{}, nil, &commitLock)

	r := chi.NewRouter()
	New(ledger, logger).Register(r)

	patient, err := id.ParsePrincipal(uuid.NewString())
	require.NoError(t, err)
	accessor, err := id.ParsePrincipal(uuid.NewString())
	require.NoError(t, err)

	return &fixture{
		router:   r,
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		patient:  patient,
		accessor: accessor,
	}
}

func (f *fixture) do(t *testing.T, caller id.Principal, method, path string, body any) (int, map[string]any) {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req = testutil.WithPrincipal(req, caller)
	req = testutil.WithClock(req, f.now)
	rr := testutil.DoRequest(f.router, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		testutil.DecodeJSON(t, rr, &decoded)
	}
	return rr.Code, decoded
}

func TestHandleGrant(t *testing.T) {
	t.Run("creates an active grant", func(t *testing.T) {
		f := newFixture(t)
		code, body := f.do(t, f.patient, http.MethodPost, "/access/grants", map[string]any{
			"accessor_id":      f.accessor.String(),
			"duration_seconds": 3600,
		})
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, f.patient.String(), body["patient"])
		assert.Equal(t, f.accessor.String(), body["accessor"])
		assert.Equal(t, true, body["active"])

		expiry, err := time.Parse(time.RFC3339, body["expiry"].(string))
		require.NoError(t, err)
		assert.True(t, expiry.Equal(f.now.Add(time.Hour)))
	})

	t.Run("self grant is rejected", func(t *testing.T) {
		f := newFixture(t)
		code, body := f.do(t, f.patient, http.MethodPost, "/access/grants", map[string]any{
			"accessor_id":      f.patient.String(),
			"duration_seconds": 60,
		})
		require.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "self_grant", body["error"])
	})

	t.Run("malformed accessor maps to invalid_accessor", func(t *testing.T) {
		f := newFixture(t)
		code, body := f.do(t, f.patient, http.MethodPost, "/access/grants", map[string]any{
			"accessor_id":      "not-an-identity",
			"duration_seconds": 60,
		})
		require.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "invalid_accessor", body["error"])
	})

	t.Run("zero duration is rejected", func(t *testing.T) {
		f := newFixture(t)
		code, _ := f.do(t, f.patient, http.MethodPost, "/access/grants", map[string]any{
			"accessor_id":      f.accessor.String(),
			"duration_seconds": 0,
		})
		require.Equal(t, http.StatusBadRequest, code)
	})
}

func TestHandleRevoke(t *testing.T) {
	t.Run("revokes an active grant", func(t *testing.T) {
		f := newFixture(t)
		code, _ := f.do(t, f.patient, http.MethodPost, "/access/grants", map[string]any{
			"accessor_id":      f.accessor.String(),
			"duration_seconds": 3600,
		})
		require.Equal(t, http.StatusCreated, code)

		code, _ = f.do(t, f.patient, http.MethodDelete, "/access/grants/"+f.accessor.String(), nil)
		require.Equal(t, http.StatusNoContent, code)

		code, body := f.do(t, f.patient, http.MethodGet, "/access/grants/"+f.patient.String()+"/"+f.accessor.String(), nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, false, body["active"])
	})

	t.Run("revoking without a grant conflicts", func(t *testing.T) {
		f := newFixture(t)
		code, body := f.do(t, f.patient, http.MethodDelete, "/access/grants/"+f.accessor.String(), nil)
		require.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "no_active_grant", body["error"])
	})
}

func TestHandleCheck(t *testing.T) {
	t.Run("unknown pair reports inactive", func(t *testing.T) {
		f := newFixture(t)
		code, body := f.do(t, f.patient, http.MethodGet, "/access/grants/"+f.patient.String()+"/"+f.accessor.String(), nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, false, body["active"])
		assert.Equal(t, f.patient.String(), body["patient"])
		assert.Equal(t, f.accessor.String(), body["accessor"])
	})

	t.Run("malformed path identity is rejected", func(t *testing.T) {
		f := newFixture(t)
		code, _ := f.do(t, f.patient, http.MethodGet, "/access/grants/bogus/"+f.accessor.String(), nil)
		require.Equal(t, http.StatusBadRequest, code)
	})
}
