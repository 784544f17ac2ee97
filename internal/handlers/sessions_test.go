package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/fabler/internal/config"
	"github.com/jwebster45206/fabler/internal/engine"
	"github.com/jwebster45206/fabler/internal/gateway"
	"github.com/jwebster45206/fabler/internal/services"
	"github.com/jwebster45206/fabler/pkg/storage"
)

const (
	openingReply = "Aria wakes on a cold beach.\n" +
		"1. Walk north\n2. Search the wreck\n3. Call out\n4. Sleep again"
	nextReply = "The wreck creaks.\n" +
		"1. Climb in\n2. Step back\n3. Listen\n4. Leave"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sessionsFixture struct {
	handler  *SessionsHandler
	llm      *services.MockLLMAPI
	storage  *storage.MemoryStorage
	registry *engine.Registry
}

func newSessionsFixture(t *testing.T) *sessionsFixture {
	t.Helper()
	llm := services.NewMockLLMAPI()
	llm.SetResponses(openingReply, nextReply)
	gw := gateway.New(llm, gateway.NewUsageTracker(), testLogger(), gateway.Options{
		RetryDelay:     time.Millisecond,
		SafetyDelay:    time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	})
	entities := services.NewMockLLMAPI()
	entities.SetResponses(`{"characters": {}, "locations": {}}`)

	registry := engine.NewRegistry(engine.Config{
		Story:    gw,
		Entities: gateway.New(entities, nil, testLogger(), gateway.Options{}),
		Logger:   testLogger(),
	})
	t.Cleanup(registry.CloseAll)

	presets, err := config.DefaultPresets()
	require.NoError(t, err)

	store := storage.NewMemoryStorage()
	return &sessionsFixture{
		handler:  NewSessionsHandler(registry, store, presets, testLogger()),
		llm:      llm,
		storage:  store,
		registry: registry,
	}
}

func (f *sessionsFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) engine.View {
	t.Helper()
	var v engine.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func (f *sessionsFixture) create(t *testing.T) engine.View {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/v1/sessions", `{"hero_name":"Aria","universe":"Fantasy Classique","style":"Classique"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeView(t, rr)
}

func TestSessionsHandler_Create(t *testing.T) {
	f := newSessionsFixture(t)
	view := f.create(t)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "Aria", view.HeroName)
	assert.Equal(t, "Aria wakes on a cold beach.", view.Narrative)
	assert.Equal(t, []string{"Walk north", "Search the wreck", "Call out", "Sleep again"}, view.Choices)
	assert.Equal(t, 1, f.registry.Len())

	// the preset prompt reached the system instruction with the hero substituted
	_, calls := f.llm.GetCalls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0].Messages[0].Content, "Aria")
}

func TestSessionsHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "missing hero", body: `{"universe":"Fantasy Classique"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown universe", body: `{"hero_name":"Aria","universe":"Western"}`, wantStatus: http.StatusBadRequest},
		{name: "free text prompt", body: `{"hero_name":"Aria","base_prompt":"{hero_name} dans une forêt","style_instruction":"Sobre."}`, wantStatus: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionsFixture(t)
			rr := f.do(t, http.MethodPost, "/v1/sessions", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestSessionsHandler_ReadChoiceContinue(t *testing.T) {
	f := newSessionsFixture(t)
	view := f.create(t)

	rr := f.do(t, http.MethodGet, "/v1/sessions/"+view.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, view.Narrative, decodeView(t, rr).Narrative)

	rr = f.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/choice", `{"choice":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/choice", `{"choice":"2. Search the wreck"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "The wreck creaks.", decodeView(t, rr).Narrative)

	rr = f.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/continue", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestSessionsHandler_TurnFailed(t *testing.T) {
	f := newSessionsFixture(t)
	view := f.create(t)

	f.llm.SetChatError(errors.New("connection reset"))
	rr := f.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/choice", `{"choice":"1. Walk north"}`)
	require.Equal(t, http.StatusBadGateway, rr.Code)

	var resp TurnFailedResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, engine.KindGeneration, resp.Kind)
	assert.NotEmpty(t, resp.Reason)
	assert.Equal(t, view.ID, resp.ID)
	assert.Equal(t, engine.StateFaulted, resp.State)
	assert.Empty(t, resp.Choices)
	assert.NotNil(t, resp.Choices)

	rr = f.do(t, http.MethodGet, "/v1/sessions/"+view.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var current engine.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&current))
	assert.Equal(t, engine.StateFaulted, current.State)
	assert.Equal(t, []string{}, current.Choices)
	assert.Equal(t, view.Narrative, current.Narrative)

	// a faulted session accepts continue but not a new choice
	rr = f.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/choice", `{"choice":"1. Walk north"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestSessionsHandler_SaveAndLoad(t *testing.T) {
	f := newSessionsFixture(t)
	view := f.create(t)

	rr := f.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/save", `{"name":"../bad"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/save", `{"name":"beach"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	saves, err := f.storage.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, saves, 1)
	assert.Equal(t, "beach", saves[0].Name)

	rr = f.do(t, http.MethodPost, "/v1/sessions/load", `{"name":"beach"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	loaded := decodeView(t, rr)
	assert.NotEqual(t, view.ID, loaded.ID)
	assert.Equal(t, view.Narrative, loaded.Narrative)
	assert.Equal(t, view.Choices, loaded.Choices)
	assert.Equal(t, 2, f.registry.Len())

	rr = f.do(t, http.MethodPost, "/v1/sessions/load", `{"name":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionsHandler_LoadLegacyAndCorrupt(t *testing.T) {
	f := newSessionsFixture(t)
	ctx := context.Background()

	legacy := `{"hero_name":"Aria","story_log":[{"role":"user","content":"begin"},{"role":"assistant","content":"Aria stands at the gate.\n1. Enter\n2. Wait\n3. Knock\n4. Leave"}],"world_state":{"lieu":"Port"}}`
	require.NoError(t, f.storage.SaveSession(ctx, "legacy", []byte(legacy)))
	require.NoError(t, f.storage.SaveSession(ctx, "corrupt", []byte(`{"chapter":`)))

	rr := f.do(t, http.MethodPost, "/v1/sessions/load", `{"name":"legacy"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "Aria", decodeView(t, rr).HeroName)

	rr = f.do(t, http.MethodPost, "/v1/sessions/load", `{"name":"corrupt"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, 1, f.registry.Len())
}

func TestSessionsHandler_DeleteAndRouting(t *testing.T) {
	f := newSessionsFixture(t)
	view := f.create(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "bad id", method: http.MethodGet, path: "/v1/sessions/not-a-uuid", wantStatus: http.StatusBadRequest},
		{name: "unknown id", method: http.MethodGet, path: "/v1/sessions/00000000-0000-0000-0000-000000000001", wantStatus: http.StatusNotFound},
		{name: "unknown action", method: http.MethodPost, path: "/v1/sessions/" + view.ID + "/dance", wantStatus: http.StatusNotFound},
		{name: "get on collection", method: http.MethodGet, path: "/v1/sessions", wantStatus: http.StatusMethodNotAllowed},
		{name: "put on session", method: http.MethodPut, path: "/v1/sessions/" + view.ID, wantStatus: http.StatusMethodNotAllowed},
		{name: "delete", method: http.MethodDelete, path: "/v1/sessions/" + view.ID, wantStatus: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: "/v1/sessions/" + view.ID, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, tt.method, tt.path, "")
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
	assert.Equal(t, 0, f.registry.Len())
}
