// ABOUTME: Capability backend contract: tool execution, model switching, and
// ABOUTME: authoritative shared-context storage for the coordination hub.

package capability

import (
	"context"
	"errors"
)

// Backend errors surfaced to the hub. The hub maps these onto system_alert
// error envelopes for the requesting agent; they are never broadcast.
var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrHandoffDenied = errors.New("handoff denied")
	ErrUnknownModel  = errors.New("unknown model")
)

// Registration describes a connected agent and the capabilities it offers.
type Registration struct {
	AgentID      string   `json:"agentId"`
	AgentType    string   `json:"agentType"`
	UserID       string   `json:"userId"`
	SessionID    string   `json:"sessionId"`
	Capabilities []string `json:"capabilities"`
}

// ToolRequest is a single tool invocation on behalf of an agent.
type ToolRequest struct {
	UserID     string         `json:"userId"`
	AgentID    string         `json:"agentId"`
	ToolName   string         `json:"toolName"`
	Parameters map[string]any `json:"parameters"`
}

// SharedContext is the authoritative last-writer-wins context blob for a
// user, together with its declared source and write time.
type SharedContext struct {
	UserID    string         `json:"userId"`
	Values    map[string]any `json:"values"`
	Source    string         `json:"source"`
	UpdatedAt string         `json:"updatedAt"`
}

// Backend is the external collaborator that executes tools, switches language
// models, stores the authoritative shared context, and authorizes handoffs.
// Every call is bounded by the caller's context; the hub wraps each one in a
// deadline so a hung backend stalls only the single in-flight request.
type Backend interface {
	// RegisterAgent records a newly admitted agent and its capabilities.
	RegisterAgent(ctx context.Context, reg Registration) error

	// DeactivateAgent records that an agent has disconnected or been evicted.
	DeactivateAgent(ctx context.Context, agentID string) error

	// ExecuteTool runs a tool to completion and returns its result.
	ExecuteTool(ctx context.Context, req ToolRequest) (map[string]any, error)

	// SwitchModel changes the active language model for a user.
	SwitchModel(ctx context.Context, userID, model string) error

	// StoreContext replaces the shared context for a user. Last writer wins.
	StoreContext(ctx context.Context, userID, sourceAgentID string, values map[string]any) error

	// FetchContext returns the current shared context for a user. A user with
	// no stored context yields an empty (non-nil) value map.
	FetchContext(ctx context.Context, userID string) (*SharedContext, error)

	// AuthorizeHandoff decides whether conversational control may transfer
	// from one agent type to another for this user.
	AuthorizeHandoff(ctx context.Context, userID, fromType, toType string) error
}
