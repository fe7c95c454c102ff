// ABOUTME: Tests for the HTTP backend client: status-code mapping and
// ABOUTME: request/response round trips against a stub backend.

package capability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubBackend(t *testing.T, handler http.HandlerFunc) *HTTPBackend {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHTTPBackend(ts.URL, logger)
}

func TestAuthorizeHandoffMapsForbidden(t *testing.T) {
	b := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "handoff not permitted", http.StatusForbidden)
	})

	err := b.AuthorizeHandoff(context.Background(), "user-1", "widget", "voice")
	assert.True(t, errors.Is(err, ErrHandoffDenied))
}

func TestAuthorizeHandoffKeepsOtherStatuses(t *testing.T) {
	b := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	})

	err := b.AuthorizeHandoff(context.Background(), "user-1", "widget", "voice")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrHandoffDenied))
	assert.Contains(t, err.Error(), "status 500")
}

func TestExecuteToolRoundTrip(t *testing.T) {
	b := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tools/execute", r.URL.Path)

		var req ToolRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "lookup_site", req.ToolName)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"parcelId": "PV-1001"},
		})
	})

	result, err := b.ExecuteTool(context.Background(), ToolRequest{
		ToolName:   "lookup_site",
		Parameters: map[string]any{"parcelId": "PV-1001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "PV-1001", result["parcelId"])
}

func TestFetchContextDefaultsEmptyValues(t *testing.T) {
	b := newStubBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"source": "", "values": nil})
	})

	sc, err := b.FetchContext(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sc.UserID)
	assert.NotNil(t, sc.Values)
}
