package consent

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/identity"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/consent/grant", h.handleGrant).Methods(http.MethodPost)
	router.HandleFunc("/consent/revoke", h.handleRevoke).Methods(http.MethodPost)
	router.HandleFunc("/consent/check", h.handleCheck).Methods(http.MethodGet)
	router.HandleFunc("/consent/{patient_id}/history", h.handleHistory).Methods(http.MethodGet)
}

type grantRequest struct {
	PatientID   string     `json:"patient_id"`
	Purpose     string     `json:"purpose"`
	GrantedTo   string     `json:"granted_to"`
	ConsentText string     `json:"consent_text"`
	ExpiryDate  *time.Time `json:"expiry_date"`
}

func (h *HTTPHandler) handleGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" || req.Purpose == "" {
		http.Error(w, "patient_id and purpose are required", http.StatusBadRequest)
		return
	}

	grant, err := h.service.Grant(r.Context(), actor, req.PatientID, req.Purpose, req.GrantedTo, req.ConsentText, req.ExpiryDate)
	if err != nil {
		if errors.Is(err, ErrUnknownPurpose) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to record consent grant")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, grant)
}

type revokeRequest struct {
	PatientID string `json:"patient_id"`
	Purpose   string `json:"purpose"`
	GrantedTo string `json:"granted_to"`
}

func (h *HTTPHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" || req.Purpose == "" {
		http.Error(w, "patient_id and purpose are required", http.StatusBadRequest)
		return
	}

	revoked, err := h.service.Revoke(r.Context(), actor, req.PatientID, req.Purpose, req.GrantedTo)
	if err != nil {
		if errors.Is(err, ErrUnknownPurpose) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to revoke consent")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": req.PatientID,
		"purpose":    req.Purpose,
		"revoked":    revoked,
	})
}

func (h *HTTPHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.FromContext(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	patientID := r.URL.Query().Get("patient_id")
	purpose := r.URL.Query().Get("purpose")
	grantee := r.URL.Query().Get("granted_to")
	if patientID == "" || purpose == "" {
		http.Error(w, "patient_id and purpose are required", http.StatusBadRequest)
		return
	}

	granted, err := h.service.IsGranted(r.Context(), patientID, purpose, grantee)
	if err != nil {
		if errors.Is(err, ErrUnknownPurpose) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("consent check failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"purpose":    purpose,
		"granted":    granted,
	})
}

func (h *HTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.FromContext(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	patientID := mux.Vars(r)["patient_id"]

	grants, err := h.service.History(r.Context(), patientID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load consent history")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"grants":     grants,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
