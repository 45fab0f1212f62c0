package gdrive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(StaticTokenSource("test-token"), WithBaseURL(srv.URL, srv.URL))
}

func TestChanges_StartPageToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/changes/startPageToken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("supportsAllDrives"))
		json.NewEncoder(w).Encode(map[string]string{"startPageToken": "token-42"})
	})

	client := newTestClient(t, mux)
	token, err := client.Changes.StartPageToken(context.Background(), "resource-1")
	require.NoError(t, err)
	assert.Equal(t, "token-42", token)
}

func TestChanges_StartPageToken_SharedDrive(t *testing.T) {
	sharedID := "0ABCDEFGHIJKLMNOPQRSTUVWXYZabcdef" // 33 chars
	require.Len(t, sharedID, 33)

	mux := http.NewServeMux()
	mux.HandleFunc("/changes/startPageToken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sharedID, r.URL.Query().Get("driveId"))
		json.NewEncoder(w).Encode(map[string]string{"startPageToken": "shared-7"})
	})

	client := newTestClient(t, mux)
	token, err := client.Changes.StartPageToken(context.Background(), sharedID)
	require.NoError(t, err)
	assert.Equal(t, "shared-7", token)
}

func TestChanges_List_FollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/changes", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "cursor-1":
			json.NewEncoder(w).Encode(map[string]any{
				"changes":       []map[string]any{{"fileId": "f1"}},
				"nextPageToken": "cursor-2",
			})
		case "cursor-2":
			json.NewEncoder(w).Encode(map[string]any{
				"changes":           []map[string]any{{"fileId": "f2"}},
				"newStartPageToken": "cursor-3",
			})
		default:
			http.Error(w, "unexpected page token", http.StatusBadRequest)
		}
	})

	client := newTestClient(t, mux)
	changes, newCursor, err := client.Changes.List(context.Background(), "cursor-1", "resource-1")
	require.NoError(t, err)
	assert.Equal(t, "cursor-3", newCursor)
	require.Len(t, changes, 2)
	assert.Equal(t, "f1", changes[0].FileID)
	assert.Equal(t, "f2", changes[1].FileID)
}

func TestChanges_List_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/changes", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 403, "status": "PERMISSION_DENIED", "message": "nope"},
		})
	})

	client := newTestClient(t, mux)
	_, _, err := client.Changes.List(context.Background(), "cursor-1", "resource-1")
	assert.Error(t, err)
}

func TestIsSharedDriveID(t *testing.T) {
	assert.True(t, IsSharedDriveID("0ABCDEFGHIJKLMNOPQRSTUVWXYZabcdef"))
	assert.False(t, IsSharedDriveID("short-id"))
}
