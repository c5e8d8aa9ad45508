package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/consultly/collab/internal/auth"
	"github.com/consultly/collab/internal/db"
	"github.com/consultly/collab/internal/models"
)

// RestHandler serves the REST collaborators consumed by the session layer:
// the presence snapshot and the persisted room artifacts.
type RestHandler struct {
	store *db.Store
	auth  *auth.Authenticator
}

// NewRestHandler creates a new REST handler.
func NewRestHandler(store *db.Store, authenticator *auth.Authenticator) *RestHandler {
	return &RestHandler{
		store: store,
		auth:  authenticator,
	}
}

func (h *RestHandler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *RestHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// HandlePresence serves the presence snapshot for a room.
func (h *RestHandler) HandlePresence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	roomID := r.PathValue("roomId")
	entries, err := h.store.GetRoomPresence(roomID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []models.PresenceEntry{}
	}
	h.writeJSON(w, map[string]interface{}{"presence": entries})
}

// HandleWhiteboard serves the last saved whiteboard snapshot for a room.
func (h *RestHandler) HandleWhiteboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	roomID := r.PathValue("roomId")
	wb, err := h.store.GetWhiteboard(roomID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if wb == nil {
		h.writeError(w, http.StatusNotFound, "no saved whiteboard")
		return
	}
	h.writeJSON(w, wb)
}

// HandleMessages serves recent chat history for a room.
func (h *RestHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	roomID := r.PathValue("roomId")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := h.store.GetRecentMessages(roomID, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	h.writeJSON(w, map[string]interface{}{"messages": messages})
}

// HandleDocuments creates documents.
func (h *RestHandler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		RoomID string `json:"room_id"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		h.writeError(w, http.StatusBadRequest, "room_id required")
		return
	}

	doc, err := h.store.CreateDocument(req.RoomID, req.Title)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, doc)
}

// HandleDocument serves a document record, including its lock owner.
func (h *RestHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	doc, err := h.store.GetDocument(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		h.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	h.writeJSON(w, doc)
}
