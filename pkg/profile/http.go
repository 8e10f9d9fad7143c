package profile

import (
	"context"
	"encoding/json"
	"net/http"

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
	router.HandleFunc("/profile/{patient_id}", h.handleSummary).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
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

	summary, err := h.service.Summary(r.Context(), patientID, decision)
	if err != nil {
		logger.Log.WithError(err).Error("failed to build patient summary")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
