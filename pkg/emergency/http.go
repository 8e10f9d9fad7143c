package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/identity"
	"github.com/gorilla/mux"
)

type PatientRegistry interface {
	Exists(ctx context.Context, patientID string) (bool, error)
}

type HTTPHandler struct {
	service  *Service
	patients PatientRegistry
}

func NewHTTPHandler(service *Service, patients PatientRegistry) *HTTPHandler {
	return &HTTPHandler{service: service, patients: patients}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/emergency/trigger", h.handleTrigger).Methods(http.MethodPost)
	router.HandleFunc("/emergency/detect", h.handleDetect).Methods(http.MethodPost)
	router.HandleFunc("/emergency/active", h.handleListActive).Methods(http.MethodGet)
	router.HandleFunc("/emergency/{override_id}/terminate", h.handleTerminate).Methods(http.MethodPost)
	router.HandleFunc("/emergency/{patient_id}/current", h.handleCurrent).Methods(http.MethodGet)
}

type triggerRequest struct {
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
	InputText string `json:"input_text"`
	Location  string `json:"location"`
}

// handleTrigger opens an override. The patient may be named explicitly or
// embedded in the free-text input, the way a voice transcript arrives.
func (h *HTTPHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var keyword string
	if req.InputText != "" {
		detection := DetectTrigger(req.InputText)
		if len(detection.DetectedWords) > 0 {
			keyword = detection.DetectedWords[0]
		}
		if req.PatientID == "" {
			req.PatientID = ExtractPatientID(req.InputText)
		}
		if req.Reason == "" {
			req.Reason = req.InputText
		}
	}

	if req.PatientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}

	known, err := h.patients.Exists(r.Context(), req.PatientID)
	if err != nil {
		logger.Log.WithError(err).Error("patient lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !known {
		http.Error(w, "unknown patient", http.StatusNotFound)
		return
	}

	override, err := h.service.Trigger(r.Context(), actor, req.PatientID, req.Reason, keyword, req.Location)
	if err != nil {
		logger.Log.WithError(err).Error("failed to trigger emergency override")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, override)
}

// handleDetect runs trigger detection without opening an override, so
// callers can preview what a transcript would do.
func (h *HTTPHandler) handleDetect(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.FromContext(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		InputText string `json:"input_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	detection := DetectTrigger(req.InputText)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"detection":  detection,
		"patient_id": ExtractPatientID(req.InputText),
	})
}

func (h *HTTPHandler) handleListActive(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.FromContext(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	overrides, err := h.service.ListActive(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to list active overrides")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(overrides),
		"overrides": overrides,
	})
}

func (h *HTTPHandler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	overrideID := mux.Vars(r)["override_id"]

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	override, err := h.service.Terminate(r.Context(), actor, overrideID, body.Reason)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "override not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to terminate override")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, override)
}

func (h *HTTPHandler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.FromContext(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	patientID := mux.Vars(r)["patient_id"]

	override, err := h.service.Active(r.Context(), patientID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to resolve active override")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"active":     override != nil,
		"override":   override,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
