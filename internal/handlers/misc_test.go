package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/fabler/internal/config"
	"github.com/jwebster45206/fabler/pkg/storage"
)

func TestSavesHandler(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.SaveSession(ctx, "beta", []byte("{}")))
	require.NoError(t, store.SaveSession(ctx, "alpha", []byte("{}")))
	handler := NewSavesHandler(store, testLogger())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/saves", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SavesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Saves, 2)
	assert.Equal(t, "alpha", resp.Saves[0].Name)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "delete", method: http.MethodDelete, path: "/v1/saves/alpha", wantStatus: http.StatusNoContent},
		{name: "delete missing", method: http.MethodDelete, path: "/v1/saves/alpha", wantStatus: http.StatusNotFound},
		{name: "post", method: http.MethodPost, path: "/v1/saves", wantStatus: http.StatusMethodNotAllowed},
		{name: "delete collection", method: http.MethodDelete, path: "/v1/saves", wantStatus: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestPresetsHandler(t *testing.T) {
	presets, err := config.DefaultPresets()
	require.NoError(t, err)
	handler := NewPresetsHandler(presets, testLogger())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/presets", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp PresetsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp.Universes, "Fantasy Classique")
	assert.Contains(t, resp.Styles, "Dramatique")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/presets", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
