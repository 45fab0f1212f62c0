package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spountil/watermark-gdrive/internal/config"
	"github.com/Spountil/watermark-gdrive/internal/dedup"
	drivesync "github.com/Spountil/watermark-gdrive/internal/sync"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := config.Default()
	cfg.Drive.ChannelToken = "secret"

	store, err := dedup.NewFileWatermarkStore(filepath.Join(t.TempDir(), "watermarks.json"))
	require.NoError(t, err)

	svc := &Services{
		Gate: dedup.NewGate(store),
		Pool: drivesync.NewPool(nil, 1, 1),
	}
	return SetupRoutes(cfg, svc)
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoutes_Health(t *testing.T) {
	w := get(testRouter(t), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRoutes_IndexReportsVersion(t *testing.T) {
	w := get(testRouter(t), "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}

func TestRoutes_UnknownPath(t *testing.T) {
	w := get(testRouter(t), "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_WebhookRequiresToken(t *testing.T) {
	handler := testRouter(t)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
