package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/identity"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	repo *Repository
}

func NewHTTPHandler(repo *Repository) *HTTPHandler {
	return &HTTPHandler{repo: repo}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/audit", h.handleList).Methods(http.MethodGet)
}

// handleList is a read-only query over the audit log. Only compliance roles
// see it; patients reach their own trail through resource_id filtering by
// the caller.
func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.Role != "admin" && actor.Role != "compliance" && actor.Role != "system" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	q := r.URL.Query()
	filter := ListFilter{
		Action:     q.Get("action"),
		ActorID:    q.Get("actor_id"),
		ResourceID: q.Get("resource_id"),
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	entries, err := h.repo.List(r.Context(), filter)
	if err != nil {
		logger.Log.WithError(err).Error("failed to query audit log")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	}); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
