package venomqa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venomqa.dev/venomqa/httpapi"
	"venomqa.dev/venomqa/rollback"
)

// fakeServer implements just enough of spec.md §6.3 to exercise Adapter,
// independent of the fuller echo-based venomqa/fakeapi reference server.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	savepoints := 0
	mux := http.NewServeMux()

	mux.HandleFunc("/venomqa/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Protocol: "1.0", Database: "postgres"})
	})
	mux.HandleFunc("/venomqa/begin", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]string{"session_id": req.SessionID, "status": "began"})
	})
	mux.HandleFunc("/venomqa/checkpoint", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		savepoints++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"checkpoint_id": fmt.Sprintf("sp_%d", savepoints),
			"session_id":    req.SessionID,
		})
	})
	mux.HandleFunc("/venomqa/rollback", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID    string `json:"session_id"`
			CheckpointID string `json:"checkpoint_id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "rolled_back", "checkpoint_id": req.CheckpointID})
	})
	mux.HandleFunc("/venomqa/end", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]string{"status": "ended", "session_id": req.SessionID})
	})

	return httptest.NewServer(mux)
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	api := httpapi.New(httpapi.Config{BaseURL: srv.URL})
	a, err := Open(context.Background(), api, "session-1")
	require.NoError(t, err)
	return a
}

func TestOpenAndHeaders(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	a := newTestAdapter(t, srv)
	assert.Equal(t, map[string]string{
		HeaderSession: "session-1",
		HeaderMode:    ModeExploration,
	}, a.Headers())
}

func TestCheckpointRollback(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	a := newTestAdapter(t, srv)
	ctx := context.Background()

	tok, err := a.Checkpoint(ctx)
	require.NoError(t, err)

	opaque, ok := tok.(rollback.OpaqueToken)
	require.True(t, ok)
	assert.Equal(t, "sp_1", opaque.Value)

	require.NoError(t, a.Rollback(ctx, tok))
	require.NoError(t, a.Close(ctx))
}

func TestRollbackRejectsWrongTokenType(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	a := newTestAdapter(t, srv)
	err := a.Rollback(context.Background(), rollback.OpaqueToken{Value: 42})
	assert.Error(t, err) // Adapter's checkpoint tokens always box a string
}

func TestCapabilitiesStackOnly(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	a := newTestAdapter(t, srv)
	caps := a.Capabilities()
	assert.True(t, caps.StackOnlyRollback)
}

func TestHealth(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	api := httpapi.New(httpapi.Config{BaseURL: srv.URL})
	resp, err := Health(context.Background(), api)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0", resp.Protocol)
}
