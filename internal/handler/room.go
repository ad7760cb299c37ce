package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/salespulse/docchat/internal/middleware"
	"github.com/salespulse/docchat/internal/repository"
	"github.com/salespulse/docchat/internal/unseen"
)

// RoomHandler serves the REST side of the chat: history snapshots and unseen
// counts. The live flow goes over the WebSocket, these endpoints back the
// document list and page reloads.
type RoomHandler struct {
	msgRepo   *repository.MessageRepository
	grantRepo *repository.GrantRepository
	counter   *unseen.Counter
}

func NewRoomHandler(msgRepo *repository.MessageRepository, grantRepo *repository.GrantRepository, counter *unseen.Counter) *RoomHandler {
	return &RoomHandler{msgRepo: msgRepo, grantRepo: grantRepo, counter: counter}
}

// GetMessages returns the most recent messages of a room in chronological
// order. Access follows the same grant check as the WebSocket join.
func (h *RoomHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room")
	userID := middleware.GetUserID(r.Context())

	ok, err := h.grantRepo.CanJoin(r.Context(), roomID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check access")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "no access to room")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit > 100 {
		limit = 100
	}

	messages, err := h.msgRepo.History(r.Context(), roomID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// GetUnseen returns the current unseen counts of the user, keyed by room.
func (h *RoomHandler) GetUnseen(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	counts, err := h.counter.Snapshot(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get unseen counts")
		return
	}

	writeJSON(w, http.StatusOK, counts)
}
