package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/fabler/pkg/storage"
)

type SavesResponse struct {
	Saves []storage.SaveInfo `json:"saves"`
}

// SavesHandler lists and deletes stored sessions.
// Routes:
// GET    /v1/saves        - List saves
// DELETE /v1/saves/{name} - Delete a save
type SavesHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewSavesHandler(storage storage.Storage, logger *slog.Logger) *SavesHandler {
	return &SavesHandler{storage: storage, logger: logger}
}

func (h *SavesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/saves"), "/")

	switch {
	case name == "" && r.Method == http.MethodGet:
		saves, err := h.storage.ListSessions(r.Context())
		if err != nil {
			h.logger.Error("Failed to list saves", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to list saves")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, SavesResponse{Saves: saves})

	case name != "" && r.Method == http.MethodDelete:
		err := h.storage.DeleteSession(r.Context(), name)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, h.logger, http.StatusNotFound, "Save not found")
		case err != nil:
			h.logger.Error("Failed to delete save", "name", name, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete save")
		default:
			h.logger.Info("Save deleted", "name", name)
			w.WriteHeader(http.StatusNoContent)
		}

	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported: GET /v1/saves, DELETE /v1/saves/{name}")
	}
}
