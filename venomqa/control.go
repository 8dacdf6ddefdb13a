// Package venomqa implements the HTTP control-plane protocol (spec.md §6.3):
// a Rollbackable adapter that pins the API-under-test's database connection
// to an exploration session via /venomqa/begin, /venomqa/checkpoint,
// /venomqa/rollback, and /venomqa/end, and stamps every data-plane request
// with the X-VenomQA-Session/X-VenomQA-Mode headers that route it to the
// pinned connection.
//
// Grounded on httpapi.Client's request-building shape, reused here as the
// transport for the control-plane calls themselves rather than the system
// under test's business endpoints.
package venomqa

import (
	"context"
	"encoding/json"
	"fmt"

	"venomqa.dev/venomqa/httpapi"
	"venomqa.dev/venomqa/rollback"
)

const (
	// HeaderSession routes data-plane requests to the pinned connection.
	HeaderSession = "X-VenomQA-Session"
	// HeaderMode marks a request as part of an exploration session.
	HeaderMode = "X-VenomQA-Mode"
	// ModeExploration is the only mode value spec.md §6.3 defines.
	ModeExploration = "exploration"
)

// HealthResponse is /venomqa/health's body.
type HealthResponse struct {
	Status   string `json:"status"`
	Protocol string `json:"protocol"`
	Database string `json:"database"`
}

// errorEnvelope is the JSON shape every non-2xx control-plane response uses.
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Adapter is the control-plane Rollbackable: Checkpoint issues
// /venomqa/checkpoint (the API's own SAVEPOINT), Rollback issues
// /venomqa/rollback (ROLLBACK TO SAVEPOINT) — so, like dbsavepoint, this
// adapter is stack-only: the API-under-test's connection has exactly one
// SAVEPOINT stack, not one per checkpoint token.
type Adapter struct {
	api       *httpapi.Client
	sessionID string
}

// Open begins a session against api, pinning one connection and
// uncommitted transaction on the API side for the adapter's lifetime.
func Open(ctx context.Context, api *httpapi.Client, sessionID string) (*Adapter, error) {
	a := &Adapter{api: api, sessionID: sessionID}
	var resp struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
	}
	if err := a.call(ctx, "/venomqa/begin", map[string]interface{}{"session_id": sessionID}, &resp); err != nil {
		return nil, fmt.Errorf("venomqa: begin: %w", err)
	}
	return a, nil
}

// Close ends the session: the API rolls back its outer transaction and
// closes the pinned connection.
func (a *Adapter) Close(ctx context.Context) error {
	var resp struct {
		Status    string `json:"status"`
		SessionID string `json:"session_id"`
	}
	return a.call(ctx, "/venomqa/end", map[string]interface{}{"session_id": a.sessionID}, &resp)
}

// Headers returns the X-VenomQA-Session/X-VenomQA-Mode pair every
// data-plane request during this session must carry, for actions to merge
// into their own request headers.
func (a *Adapter) Headers() map[string]string {
	return map[string]string{HeaderSession: a.sessionID, HeaderMode: ModeExploration}
}

// Checkpoint issues /venomqa/checkpoint, returning the checkpoint id as the
// rollback token.
func (a *Adapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	var resp struct {
		CheckpointID string `json:"checkpoint_id"`
		SessionID    string `json:"session_id"`
	}
	if err := a.call(ctx, "/venomqa/checkpoint", map[string]interface{}{"session_id": a.sessionID}, &resp); err != nil {
		return nil, fmt.Errorf("venomqa: checkpoint: %w", err)
	}
	return rollback.OpaqueToken{Value: resp.CheckpointID}, nil
}

// Rollback issues /venomqa/rollback against the checkpoint id in token.
func (a *Adapter) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("venomqa: rollback token of wrong type %T", token)
	}
	checkpointID, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("venomqa: rollback token holds wrong value type %T", tok.Value)
	}

	var resp struct {
		Status       string `json:"status"`
		CheckpointID string `json:"checkpoint_id"`
	}
	return a.call(ctx, "/venomqa/rollback", map[string]interface{}{
		"session_id":    a.sessionID,
		"checkpoint_id": checkpointID,
	}, &resp)
}

// Observe reports the session id only — the API-under-test's actual data
// state is observed through the data-plane endpoints an action table
// defines, not through this control adapter.
func (a *Adapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"sessionID": a.sessionID}, nil
}

// Capabilities reports stack-only rollback: the API-under-test pins one
// SAVEPOINT stack per session, the same constraint dbsavepoint's direct
// database connection has.
func (a *Adapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: true, CheckpointCost: rollback.CostModerate}
}

func (a *Adapter) call(ctx context.Context, path string, reqBody interface{}, respBody interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	view, err := a.api.Do(ctx, "POST", path, map[string]string{"Content-Type": "application/json"}, body)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if view.Status() < 200 || view.Status() >= 300 {
		var envelope errorEnvelope
		if jsonErr := json.Unmarshal(view.Body(), &envelope); jsonErr == nil && envelope.Message != "" {
			return fmt.Errorf("%s: %d %s: %s", path, view.Status(), envelope.Error, envelope.Message)
		}
		return fmt.Errorf("%s: unexpected status %d", path, view.Status())
	}

	if respBody != nil {
		if err := json.Unmarshal(view.Body(), respBody); err != nil {
			return fmt.Errorf("%s: decode response: %w", path, err)
		}
	}
	return nil
}

// Health probes /venomqa/health without requiring an open session.
func Health(ctx context.Context, api *httpapi.Client) (*HealthResponse, error) {
	view, err := api.Do(ctx, "GET", "/venomqa/health", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("venomqa: health: %w", err)
	}
	if view.Status() != 200 {
		return nil, fmt.Errorf("venomqa: health: unexpected status %d", view.Status())
	}
	var resp HealthResponse
	if err := json.Unmarshal(view.Body(), &resp); err != nil {
		return nil, fmt.Errorf("venomqa: health: decode response: %w", err)
	}
	return &resp, nil
}
