package access

import (
	"encoding/json"
	"net/http"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/consent"
	"github.com/carelink/platform/pkg/identity"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	gate *Gate
}

func NewHTTPHandler(gate *Gate) *HTTPHandler {
	return &HTTPHandler{gate: gate}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/access/authorize", h.handleAuthorize).Methods(http.MethodPost)
}

type authorizeRequest struct {
	PatientID string `json:"patient_id"`
	Purpose   string `json:"purpose"`
}

// handleAuthorize evaluates a read request without performing the read.
// Other services call this before serving patient data they hold.
func (h *HTTPHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}
	if req.Purpose == "" {
		req.Purpose = consent.PurposeTreatment
	}

	decision, err := h.gate.Authorize(r.Context(), actor, req.PatientID, req.Purpose)
	if err != nil {
		logger.Log.WithError(err).Error("authorization failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(decision); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
