package vitals

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/common/models"
	"github.com/carelink/platform/pkg/consent"
	"github.com/carelink/platform/pkg/identity"
	"github.com/gorilla/mux"
)

// Authorizer gates every read of patient data.
type Authorizer interface {
	Authorize(ctx context.Context, actor identity.Actor, patientID, purpose string) (models.Decision, error)
}

type HTTPHandler struct {
	service *Service
	gate    Authorizer
}

func NewHTTPHandler(service *Service, gate Authorizer) *HTTPHandler {
	return &HTTPHandler{service: service, gate: gate}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/vitals", h.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/vitals/batch", h.handleBatch).Methods(http.MethodPost)
	router.HandleFunc("/vitals/{patient_id}", h.handleHistory).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var sub models.VitalSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.service.Ingest(r.Context(), actor, sub)
	if err != nil {
		logger.Log.WithError(err).Error("failed to ingest vital")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch outcome.Reason {
	case models.ReasonAccepted:
		writeJSON(w, http.StatusCreated, outcome)
	case models.ReasonSkippedDuplicate:
		writeJSON(w, http.StatusOK, outcome)
	default:
		writeJSON(w, http.StatusBadRequest, outcome)
	}
}

func (h *HTTPHandler) handleBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var batch models.BatchSubmission
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.IngestBatch(r.Context(), actor, batch)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to ingest batch")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	patientID := mux.Vars(r)["patient_id"]

	decision, err := h.gate.Authorize(r.Context(), actor, patientID, consent.PurposeTreatment)
	if err != nil {
		logger.Log.WithError(err).Error("authorization failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusForbidden, decision)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	vitalType := r.URL.Query().Get("vital_type")

	rows, err := h.service.History(r.Context(), patientID, vitalType, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load vitals history")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"vitals":     rows,
		"access":     decision,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
