// Package handler exposes the record operations over HTTP. The layer stays
// thin: parse identifiers at the trust boundary, delegate, translate errors.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medledger/internal/record"
	"medledger/internal/transport/http/shared"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	"medledger/pkg/requestcontext"
)

// Service defines the record operations the handler delegates to.
type Service interface {
	Add(ctx context.Context, recordID id.RecordID, dataReference string) (record.Record, error)
	Update(ctx context.Context, recordID id.RecordID, dataReference string) (record.Record, error)
	Get(ctx context.Context, recordID id.RecordID, patient id.Principal) (record.Record, error)
	ListByPatient(ctx context.Context, patient id.Principal) ([]id.RecordID, error)
	ListRecords(ctx context.Context, patient id.Principal) ([]record.Record, error)
}

type Handler struct {
	logger  *slog.Logger
	records Service
}

func New(records Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, records: records}
}

// Register mounts the record routes. Auth middleware is applied by the
// router; every request arrives with a principal in context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/records", h.handleAdd)
	r.Put("/records/{recordID}", h.handleUpdate)
	r.Get("/patients/{patientID}/records", h.handleList)
	r.Get("/patients/{patientID}/records/{recordID}", h.handleGet)
}

type addRecordRequest struct {
	RecordID      string `json:"record_id"`
	DataReference string `json:"data_reference"`
}

type updateRecordRequest struct {
	DataReference string `json:"data_reference"`
}

type recordResponse struct {
	RecordID      string    `json:"record_id"`
	DataReference string    `json:"data_reference"`
	Owner         string    `json:"owner"`
	LastModified  time.Time `json:"last_modified"`
}

func toResponse(rec record.Record) recordResponse {
	return recordResponse{
		RecordID:      rec.ID.String(),
		DataReference: rec.DataReference,
		Owner:         rec.Owner.String(),
		LastModified:  rec.LastModified,
	}
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	recordID, err := id.ParseRecordID(req.RecordID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rec, err := h.records.Add(ctx, recordID, req.DataReference)
	if err != nil {
		h.logger.WarnContext(ctx, "add record rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(rec))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	rec, err := h.records.Update(ctx, recordID, req.DataReference)
	if err != nil {
		h.logger.WarnContext(ctx, "update record rejected",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", recordID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(rec))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patient, err := id.ParsePrincipal(chi.URLParam(r, "patientID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rec, err := h.records.Get(ctx, recordID, patient)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, recordResponse{
		RecordID:      rec.ID.String(),
		DataReference: rec.DataReference,
		Owner:         rec.Owner.String(),
		LastModified:  rec.LastModified,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patient, err := id.ParsePrincipal(chi.URLParam(r, "patientID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if r.URL.Query().Get("detail") == "full" {
		from, to, err := parseHistoryWindow(r)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		records, err := h.records.ListRecords(ctx, patient)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		out := make([]recordResponse, 0, len(records))
		for _, rec := range records {
			if !inWindow(rec.LastModified, from, to) {
				continue
			}
			out = append(out, toResponse(rec))
		}
		shared.WriteJSON(w, http.StatusOK, map[string]any{"records": out})
		return
	}

	ids, err := h.records.ListByPatient(ctx, patient)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]string, 0, len(ids))
	for _, rid := range ids {
		out = append(out, rid.String())
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"record_ids": out})
}

// parseHistoryWindow reads the optional from/to bounds (RFC 3339) on the full
// listing. Zero values mean unbounded.
func parseHistoryWindow(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "from must be an RFC 3339 timestamp")
		}
	}
	if v := q.Get("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "to must be an RFC 3339 timestamp")
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "to must not precede from")
	}
	return from, to, nil
}

// inWindow reports whether ts falls inside the inclusive [from, to] bounds.
func inWindow(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}
