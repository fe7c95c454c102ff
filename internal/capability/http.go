// ABOUTME: JSON-over-HTTP client for a remote capability backend.
// ABOUTME: Every call honors the caller's context; the hub supplies deadlines.

package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// statusError is a non-2xx response from the backend, carrying the code so
// callers can branch on it.
type statusError struct {
	path string
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend call %s: status %d: %s", e.path, e.code, e.body)
}

// HTTPBackend talks to a remote capability service. The zero timeout policy
// is deliberate: the hub wraps each call in its own deadline, so the client
// itself never needs one.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPBackend creates a client for the backend at baseURL.
func NewHTTPBackend(baseURL string, logger *slog.Logger) *HTTPBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger.With("component", "capability-http"),
	}
}

// RegisterAgent records a newly admitted agent with the backend.
func (b *HTTPBackend) RegisterAgent(ctx context.Context, reg Registration) error {
	return b.post(ctx, "/v1/agents/register", reg, nil)
}

// DeactivateAgent records an agent departure with the backend.
func (b *HTTPBackend) DeactivateAgent(ctx context.Context, agentID string) error {
	path := "/v1/agents/" + url.PathEscape(agentID) + "/deactivate"
	return b.post(ctx, path, nil, nil)
}

// ExecuteTool runs a tool to completion on the backend.
func (b *HTTPBackend) ExecuteTool(ctx context.Context, req ToolRequest) (map[string]any, error) {
	var out struct {
		Result map[string]any `json:"result"`
	}
	if err := b.post(ctx, "/v1/tools/execute", req, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// SwitchModel changes the active model for a user.
func (b *HTTPBackend) SwitchModel(ctx context.Context, userID, model string) error {
	body := map[string]string{"userId": userID, "model": model}
	return b.post(ctx, "/v1/models/switch", body, nil)
}

// StoreContext replaces the shared context for a user.
func (b *HTTPBackend) StoreContext(ctx context.Context, userID, sourceAgentID string, values map[string]any) error {
	body := map[string]any{"source": sourceAgentID, "values": values}
	return b.post(ctx, "/v1/context/"+url.PathEscape(userID), body, nil)
}

// FetchContext returns the current shared context for a user.
func (b *HTTPBackend) FetchContext(ctx context.Context, userID string) (*SharedContext, error) {
	var out SharedContext
	if err := b.get(ctx, "/v1/context/"+url.PathEscape(userID), &out); err != nil {
		return nil, err
	}
	if out.Values == nil {
		out.Values = map[string]any{}
	}
	out.UserID = userID
	return &out, nil
}

// AuthorizeHandoff asks the backend whether a handoff may proceed.
func (b *HTTPBackend) AuthorizeHandoff(ctx context.Context, userID, fromType, toType string) error {
	body := map[string]string{"userId": userID, "from": fromType, "to": toType}
	err := b.post(ctx, "/v1/handoffs/authorize", body, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusForbidden {
		return ErrHandoffDenied
	}
	return err
}

func (b *HTTPBackend) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, out)
}

func (b *HTTPBackend) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return b.do(req, out)
}

func (b *HTTPBackend) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{
			path: req.URL.Path,
			code: resp.StatusCode,
			body: strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding backend response: %w", err)
	}
	return nil
}

var _ Backend = (*HTTPBackend)(nil)
