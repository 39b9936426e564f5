package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crucial707/irrigation/internal/metrics"
	"github.com/crucial707/irrigation/internal/models"
	"github.com/crucial707/irrigation/internal/repo"
	"github.com/crucial707/irrigation/internal/validation"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// ErrMessageNotFound is the 404 message for unknown record ids.
const ErrMessageNotFound = "irrigation record not found"

// IrrigationHandler serves the irrigation record endpoints.
type IrrigationHandler struct {
	Store repo.IrrigationStore
	// Now stamps createdAt. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// NewIrrigationHandler returns a handler backed by store.
func NewIrrigationHandler(store repo.IrrigationStore, logger *slog.Logger) *IrrigationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IrrigationHandler{Store: store, Now: time.Now, Logger: logger}
}

// CreateResponse is the body of a successful POST /irrigation.
type CreateResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// CreateIrrigation stores a new record.
// Body: {"time":"18:00","days":[],"specificDates":["2025-07-09"],"duration":30}.
func (h *IrrigationHandler) CreateIrrigation(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readInput(w, r)
	if !ok {
		return
	}

	rec := in.Record(h.now().UnixMilli())
	id, err := h.Store.Push(r.Context(), rec)
	if err != nil {
		h.internalError(w, r, "push irrigation", err)
		return
	}
	metrics.IncRecordsWritten("create")

	writeJSON(w, http.StatusCreated, CreateResponse{OK: true, ID: id})
}

// ListIrrigation returns every record keyed by id, or {} when there are none.
func (h *IrrigationHandler) ListIrrigation(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context())
	if err != nil {
		h.internalError(w, r, "list irrigation", err)
		return
	}
	if list == nil {
		list = map[string]models.Irrigation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetIrrigation returns one record by id.
func (h *IrrigationHandler) GetIrrigation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "get irrigation", err)
		return
	}
	if rec == nil {
		JSONError(w, ErrMessageNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateIrrigation replaces a record. id and createdAt never change.
func (h *IrrigationHandler) UpdateIrrigation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	in, ok := h.readInput(w, r)
	if !ok {
		return
	}

	existing, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "get irrigation", err)
		return
	}
	if existing == nil {
		JSONError(w, ErrMessageNotFound, http.StatusNotFound)
		return
	}

	rec := in.Record(existing.CreatedAt)
	if err := h.Store.Update(r.Context(), id, rec); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			JSONError(w, ErrMessageNotFound, http.StatusNotFound)
			return
		}
		h.internalError(w, r, "update irrigation", err)
		return
	}
	metrics.IncRecordsWritten("update")

	writeJSON(w, http.StatusOK, rec)
}

// DeleteIrrigation removes a record.
func (h *IrrigationHandler) DeleteIrrigation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			JSONError(w, ErrMessageNotFound, http.StatusNotFound)
			return
		}
		h.internalError(w, r, "delete irrigation", err)
		return
	}
	metrics.IncRecordsWritten("delete")

	w.WriteHeader(http.StatusNoContent)
}

// readInput decodes, normalizes and validates a write payload. On failure it has already
// written the 400 (or 413 for an oversized body) response.
func (h *IrrigationHandler) readInput(w http.ResponseWriter, r *http.Request) (models.IrrigationInput, bool) {
	var in models.IrrigationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return in, false
		}
		if fields := decodeFields(err); fields != nil {
			JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
			return in, false
		}
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return in, false
	}

	in = in.Normalize()
	if fields := validation.Irrigation(in); fields != nil {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return in, false
	}
	return in, true
}

// decodeFields maps type errors from the JSON decoder to field messages.
func decodeFields(err error) map[string]string {
	if errors.Is(err, models.ErrInvalidDuration) {
		return map[string]string{"duration": "duration must be a number of minutes"}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field := strings.SplitN(typeErr.Field, ".", 2)[0]
		return map[string]string{field: "invalid type"}
	}
	return nil
}

func (h *IrrigationHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.Logger.ErrorContext(r.Context(), op+" failed",
		"request_id", chimw.GetReqID(r.Context()),
		"error", err)
	JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
}

func (h *IrrigationHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
