// Package handler exposes the access ledger operations over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medledger/internal/access"
	"medledger/internal/transport/http/shared"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	"medledger/pkg/requestcontext"
)

// Service defines the ledger operations the handler delegates to.
type Service interface {
	Grant(ctx context.Context, accessor id.Principal, ttl time.Duration) (access.Grant, error)
	Revoke(ctx context.Context, accessor id.Principal) error
	Check(ctx context.Context, patient, accessor id.Principal) (access.Grant, error)
}

type Handler struct {
	logger *slog.Logger
	ledger Service
}

func New(ledger Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, ledger: ledger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/access/grants", h.handleGrant)
	r.Delete("/access/grants/{accessorID}", h.handleRevoke)
	r.Get("/access/grants/{patientID}/{accessorID}", h.handleCheck)
}

type grantRequest struct {
	AccessorID string `json:"accessor_id"`
	// DurationSeconds is the grant window in clock units; converted to an
	// absolute expiry internally.
	DurationSeconds int64 `json:"duration_seconds"`
}

type grantResponse struct {
	Patient  string    `json:"patient"`
	Accessor string    `json:"accessor"`
	Active   bool      `json:"active"`
	Expiry   time.Time `json:"expiry,omitzero"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	accessor, err := parseAccessor(req.AccessorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	grant, err := h.ledger.Grant(ctx, accessor, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		h.logger.WarnContext(ctx, "grant rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, grantResponse{
		Patient:  grant.Patient.String(),
		Accessor: grant.Accessor.String(),
		Active:   grant.Active,
		Expiry:   grant.Expiry,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accessor, err := parseAccessor(chi.URLParam(r, "accessorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.ledger.Revoke(ctx, accessor); err != nil {
		h.logger.WarnContext(ctx, "revoke rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patient, err := id.ParsePrincipal(chi.URLParam(r, "patientID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	accessor, err := id.ParsePrincipal(chi.URLParam(r, "accessorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	grant, err := h.ledger.Check(ctx, patient, accessor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, grantResponse{
		Patient:  grant.Patient.String(),
		Accessor: grant.Accessor.String(),
		Active:   grant.Active,
		Expiry:   grant.Expiry,
	})
}

// parseAccessor maps syntactically invalid accessor identities to
// InvalidAccessor rather than the generic bad-request code, matching the
// ledger's own null-identity rejection.
func parseAccessor(s string) (id.Principal, error) {
	accessor, err := id.ParsePrincipal(s)
	if err != nil {
		return id.Principal{}, dErrors.New(dErrors.CodeInvalidAccessor, "accessor must be a concrete identity")
	}
	return accessor, nil
}
