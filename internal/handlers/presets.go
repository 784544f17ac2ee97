package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/fabler/internal/config"
)

type PresetsResponse struct {
	Universes []string `json:"universes"`
	Styles    []string `json:"styles"`
}

type PresetsHandler struct {
	presets *config.Presets
	logger  *slog.Logger
}

func NewPresetsHandler(presets *config.Presets, logger *slog.Logger) *PresetsHandler {
	return &PresetsHandler{presets: presets, logger: logger}
}

// ServeHTTP handles GET /v1/presets
func (h *PresetsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, PresetsResponse{
		Universes: h.presets.UniverseNames(),
		Styles:    h.presets.StyleNames(),
	})
}
