// Package handler exposes the audit trail to external indexing tooling.
// Listing is owner-scoped: a caller sees the events of operations performed
// on their own behalf, in acceptance order.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medledger/internal/transport/http/shared"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	audit "medledger/pkg/platform/audit"
	"medledger/pkg/requestcontext"
)

// Trail is the slice of the audit publisher the handler reads from.
type Trail interface {
	List(ctx context.Context, patient id.Principal) ([]audit.Event, error)
}

type Handler struct {
	logger *slog.Logger
	trail  Trail
}

func New(trail Trail, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, trail: trail}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/events", h.handleList)
}

type eventResponse struct {
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Patient   string    `json:"patient"`
	Accessor  string    `json:"accessor,omitempty"`
	RecordID  string    `json:"record_id,omitempty"`
	Expiry    time.Time `json:"expiry,omitzero"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity missing"))
		return
	}

	events, err := h.trail.List(ctx, caller)
	if err != nil {
		h.logger.ErrorContext(ctx, "list audit events failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events"))
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		resp := eventResponse{
			Seq:       event.Seq,
			Kind:      string(event.Kind),
			Patient:   event.Patient.String(),
			Expiry:    event.Expiry,
			Timestamp: event.Timestamp,
		}
		if !event.Accessor.IsNil() {
			resp.Accessor = event.Accessor.String()
		}
		if !event.RecordID.IsZero() {
			resp.RecordID = event.RecordID.String()
		}
		out = append(out, resp)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}
