package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/database"
)

// UsageHandler serves usage telemetry for a profile
type UsageHandler struct {
	usageRepo *database.UsageRepository
	logger    *zap.Logger
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usageRepo *database.UsageRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		usageRepo: usageRepo,
		logger:    logger,
	}
}

// RegisterRoutes registers usage routes on the given router
// The router should already have the /profiles/{profileID} prefix
func (h *UsageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/usage", h.ListUsage).Methods("GET")
}

// ListUsage returns the most recent usage records for a profile
func (h *UsageHandler) ListUsage(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileIDFromPath(w, r)
	if !ok {
		return
	}

	limit := DefaultMessageLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > MaxMessageLimit {
				limit = MaxMessageLimit
			}
		}
	}

	records, err := h.usageRepo.ListByProfile(r.Context(), profileID, limit)
	if err != nil {
		h.logger.Error("list_usage_failed",
			zap.Int64("profile_id", profileID),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve usage records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"usage": records,
		"count": len(records),
	})
}
