package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/fabler/internal/config"
	"github.com/jwebster45206/fabler/internal/engine"
	"github.com/jwebster45206/fabler/pkg/chat"
	"github.com/jwebster45206/fabler/pkg/storage"
)

// CreateSessionRequest starts a new game. Universe and Style name presets;
// BasePrompt and StyleInstruction are free text used when no preset is named.
type CreateSessionRequest struct {
	HeroName         string `json:"hero_name"`
	Universe         string `json:"universe,omitempty"`
	BasePrompt       string `json:"base_prompt,omitempty"`
	Style            string `json:"style,omitempty"`
	StyleInstruction string `json:"style_instruction,omitempty"`
}

type ChoiceRequest struct {
	Choice string `json:"choice"`
}

type SaveRequest struct {
	Name string `json:"name"`
}

type SaveResponse struct {
	Name string `json:"name"`
}

// TurnFailedResponse is returned with 502 when a turn could not complete.
// The session stays usable through /continue.
type TurnFailedResponse struct {
	Error   string       `json:"error"`
	Kind    engine.Kind  `json:"kind"`
	Reason  chat.Reason  `json:"reason,omitempty"`
	ID      string       `json:"id"`
	State   engine.State `json:"state"`
	Choices []string     `json:"choices"`
}

type SessionsHandler struct {
	registry *engine.Registry
	storage  storage.Storage
	presets  *config.Presets
	logger   *slog.Logger
}

func NewSessionsHandler(registry *engine.Registry, storage storage.Storage, presets *config.Presets, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		registry: registry,
		storage:  storage,
		presets:  presets,
		logger:   logger,
	}
}

// ServeHTTP handles HTTP requests for sessions
// Routes:
// POST   /v1/sessions               - Create a session and play the opening
// POST   /v1/sessions/load          - Create a session from a save
// GET    /v1/sessions/{id}          - Current turn view
// DELETE /v1/sessions/{id}          - Close a session
// POST   /v1/sessions/{id}/choice   - Submit a choice
// POST   /v1/sessions/{id}/continue - Resume after a pause or failure
// POST   /v1/sessions/{id}/save     - Persist the session
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	parts := strings.Split(path, "/")
	if path == "" {
		parts = nil
	}

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleCreate(w, r)
		return
	case len(parts) == 1 && parts[0] == "load":
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleLoad(w, r)
		return
	case len(parts) > 2:
		writeError(w, h.logger, http.StatusNotFound, "Unknown session route")
		return
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, id)
		case http.MethodDelete:
			h.handleDelete(w, id)
		default:
			h.methodNotAllowed(w, r, "GET, DELETE")
		}
		return
	}

	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r, "POST")
		return
	}
	switch parts[1] {
	case "choice":
		h.handleChoice(w, r, id)
	case "continue":
		h.handleContinue(w, r, id)
	case "save":
		h.handleSave(w, r, id)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown session route")
	}
}

func (h *SessionsHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed for sessions endpoint", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allowed)
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	req.HeroName = strings.TrimSpace(req.HeroName)
	if req.HeroName == "" {
		writeError(w, h.logger, http.StatusBadRequest, "hero_name field is required")
		return
	}

	basePrompt := strings.ReplaceAll(req.BasePrompt, "{hero_name}", req.HeroName)
	if req.Universe != "" {
		prompt, ok := h.presets.Prompt(req.Universe, req.HeroName)
		if !ok {
			writeError(w, h.logger, http.StatusBadRequest, "Unknown universe: "+req.Universe)
			return
		}
		basePrompt = prompt
	}
	style := req.StyleInstruction
	if req.Style != "" || style == "" {
		style = h.presets.Style(req.Style)
	}

	s := h.registry.Create()
	h.logger.Info("Session created", "session_id", s.ID(), "universe", req.Universe, "style", req.Style)

	if err := s.StartGame(r.Context(), req.HeroName, basePrompt, style); err != nil {
		h.writeTurnError(w, s, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, s.View())
}

func (h *SessionsHandler) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	data, err := h.storage.LoadSession(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Save not found")
			return
		}
		h.logger.Error("Failed to read save", "name", req.Name, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to read save")
		return
	}

	s := h.registry.Create()
	if err := s.Load(data); err != nil {
		if rmErr := h.registry.Remove(s.ID()); rmErr != nil {
			h.logger.Warn("Failed to remove unloaded session", "session_id", s.ID(), "error", rmErr)
		}
		h.logger.Warn("Failed to load save", "name", req.Name, "error", err)
		writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.logger.Info("Session loaded from save", "session_id", s.ID(), "name", req.Name)
	writeJSON(w, h.logger, http.StatusCreated, s.View())
}

func (h *SessionsHandler) handleRead(w http.ResponseWriter, id uuid.UUID) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.View())
}

func (h *SessionsHandler) handleDelete(w http.ResponseWriter, id uuid.UUID) {
	if err := h.registry.Remove(id); err != nil {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) handleChoice(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}
	var req ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if err := s.SubmitChoice(r.Context(), req.Choice); err != nil {
		h.writeTurnError(w, s, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.View())
}

func (h *SessionsHandler) handleContinue(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}
	if err := s.Continue(r.Context()); err != nil {
		h.writeTurnError(w, s, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.View())
}

func (h *SessionsHandler) handleSave(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, ok := h.session(w, id)
	if !ok {
		return
	}
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if err := storage.ValidateName(req.Name); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.Save()
	if err != nil {
		h.writeTurnError(w, s, err)
		return
	}
	if err := h.storage.SaveSession(r.Context(), req.Name, data); err != nil {
		h.logger.Error("Failed to persist session", "session_id", id, "name", req.Name, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save session")
		return
	}
	h.logger.Info("Session saved", "session_id", id, "name", req.Name, "bytes", len(data))
	writeJSON(w, h.logger, http.StatusOK, SaveResponse{Name: req.Name})
}

func (h *SessionsHandler) session(w http.ResponseWriter, id uuid.UUID) (*engine.Session, bool) {
	s, err := h.registry.Get(id)
	if err != nil {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

// writeTurnError maps engine errors onto HTTP statuses.
func (h *SessionsHandler) writeTurnError(w http.ResponseWriter, s *engine.Session, err error) {
	var turnErr *engine.TurnError
	switch {
	case errors.As(err, &turnErr):
		h.logger.Warn("Turn failed", "session_id", s.ID(), "kind", turnErr.Kind, "reason", turnErr.Reason)
		writeJSON(w, h.logger, http.StatusBadGateway, TurnFailedResponse{
			Error:   turnErr.Error(),
			Kind:    turnErr.Kind,
			Reason:  turnErr.Reason,
			ID:      s.ID().String(),
			State:   s.State(),
			Choices: []string{},
		})
	case errors.Is(err, engine.ErrTurnInFlight):
		writeError(w, h.logger, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInvalidState), errors.Is(err, engine.ErrSessionClosed):
		writeError(w, h.logger, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrEmptyChoice):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Session operation failed", "session_id", s.ID(), "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
	}
}
