package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/models"
)

const (
	// DefaultMessageLimit is the default number of messages returned
	DefaultMessageLimit = 100
	// MaxMessageLimit caps the number of messages per request
	MaxMessageLimit = 500
)

// ListMessagesResponse represents the conversation listing response
type ListMessagesResponse struct {
	Messages []*models.ChatMessage `json:"messages"`
	Count    int                   `json:"count"`
}

// ListMessages returns the conversation for a profile in chronological
// order. Supports an optional from/to time range; soft-deleted messages
// are excluded.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileIDFromPath(w, r)
	if !ok {
		return
	}

	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	var messages []*models.ChatMessage
	var err error

	if fromStr != "" || toStr != "" {
		from, to, parseErr := parseTimeRange(fromStr, toStr)
		if parseErr != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", parseErr.Error())
			return
		}
		messages, err = h.chatRepo.ListByProfileAndRange(r.Context(), profileID, from, to)
	} else {
		limit := DefaultMessageLimit
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, parseErr := strconv.Atoi(l); parseErr == nil && parsed > 0 {
				limit = parsed
				if limit > MaxMessageLimit {
					limit = MaxMessageLimit
				}
			}
		}
		messages, err = h.chatRepo.ListByProfile(r.Context(), profileID, limit)
	}

	if err != nil {
		h.logger.Error("list_messages_failed",
			zap.Int64("profile_id", profileID),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve messages")
		return
	}

	respondJSON(w, http.StatusOK, ListMessagesResponse{
		Messages: messages,
		Count:    len(messages),
	})
}

// DeleteMessage soft-deletes one conversation turn
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileIDFromPath(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid message ID")
		return
	}

	// Verify the message belongs to this profile before deleting
	msg, err := h.chatRepo.GetByID(r.Context(), id)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Message not found")
		return
	}
	if msg.ProfileID != profileID {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Message not found")
		return
	}
	if msg.IsDeleted() {
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
		return
	}

	if err := h.chatRepo.SoftDelete(r.Context(), id); err != nil {
		h.logger.Error("delete_message_failed",
			zap.String("message_id", id.String()),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete message")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// parseTimeRange parses from/to query parameters. A missing bound is
// left open.
func parseTimeRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()

	if fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, &rangeError{"from must be RFC3339"}
		}
		from = parsed
	}
	if toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, &rangeError{"to must be RFC3339"}
		}
		to = parsed
	}
	if !from.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, &rangeError{"to must not be before from"}
	}
	return from, to, nil
}

type rangeError struct{ msg string }

func (e *rangeError) Error() string { return e.msg }
