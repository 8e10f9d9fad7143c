package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/common/models"
	"github.com/carelink/platform/pkg/consent"
	"github.com/carelink/platform/pkg/identity"
	"github.com/gorilla/mux"
)

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
	router.HandleFunc("/alerts/{patient_id}", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/alerts/{alert_id}/resolve", h.handleResolve).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
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

	includeResolved, _ := strconv.ParseBool(r.URL.Query().Get("include_resolved"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := h.service.List(r.Context(), patientID, includeResolved, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load alerts")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"alerts":     rows,
		"access":     decision,
	})
}

func (h *HTTPHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	alertID := mux.Vars(r)["alert_id"]

	var body struct {
		Note string `json:"note"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	alert, err := h.service.Resolve(r.Context(), actor, alertID, body.Note)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to resolve alert")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
