// ABOUTME: Bundled SQLite-backed capability backend for stand-alone operation.
// ABOUTME: Persists shared context, registrations, and model selection; runs builtin tools.

package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parcelview/agent-hub/internal/capability"
)

// Backend is the in-process capability backend: it makes the hub runnable
// without a remote capability service. Shared context is the authoritative
// copy here, persisted across hub restarts; the hub itself stays memory-only.
type Backend struct {
	db     *sql.DB
	tools  map[string]ToolFunc
	logger *slog.Logger
}

// ToolFunc executes one builtin tool.
type ToolFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

// New opens (or creates) the backend database at path. ":memory:" is
// supported for tests. Parent directories are created as needed.
func New(path string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	b := &Backend{
		db:     db,
		logger: logger.With("component", "capability-local"),
	}
	b.tools = builtinTools()

	if err := b.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shared_contexts (
		user_id     TEXT PRIMARY KEY,
		values_json TEXT NOT NULL,
		source      TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS agent_registrations (
		agent_id          TEXT PRIMARY KEY,
		agent_type        TEXT NOT NULL,
		user_id           TEXT NOT NULL,
		session_id        TEXT NOT NULL,
		capabilities_json TEXT NOT NULL,
		active            INTEGER NOT NULL DEFAULT 1,
		registered_at     TEXT NOT NULL,
		deactivated_at    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_registrations_user ON agent_registrations(user_id);
	CREATE TABLE IF NOT EXISTS user_models (
		user_id    TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

// RegisterAgent stores the agent's registration and capability set.
func (b *Backend) RegisterAgent(ctx context.Context, reg capability.Registration) error {
	caps, err := json.Marshal(reg.Capabilities)
	if err != nil {
		return fmt.Errorf("encoding capabilities: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO agent_registrations
			(agent_id, agent_type, user_id, session_id, capabilities_json, active, registered_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)`,
		reg.AgentID, reg.AgentType, reg.UserID, reg.SessionID, string(caps),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("registering agent: %w", err)
	}
	b.logger.Debug("agent registered", "agent_id", reg.AgentID, "agent_type", reg.AgentType)
	return nil
}

// DeactivateAgent marks a registration inactive. Unknown agents are a no-op:
// deactivation must stay idempotent for repeated evictions.
func (b *Backend) DeactivateAgent(ctx context.Context, agentID string) error {
	_, err := b.db.ExecContext(ctx, `
		UPDATE agent_registrations
		SET active = 0, deactivated_at = ?
		WHERE agent_id = ? AND active = 1`,
		time.Now().UTC().Format(time.RFC3339), agentID,
	)
	if err != nil {
		return fmt.Errorf("deactivating agent: %w", err)
	}
	return nil
}

// ActiveRegistrations lists active registrations for a user, newest first.
func (b *Backend) ActiveRegistrations(ctx context.Context, userID string) ([]capability.Registration, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT agent_id, agent_type, user_id, session_id, capabilities_json
		FROM agent_registrations
		WHERE user_id = ? AND active = 1
		ORDER BY registered_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	defer rows.Close()

	var out []capability.Registration
	for rows.Next() {
		var reg capability.Registration
		var caps string
		if err := rows.Scan(&reg.AgentID, &reg.AgentType, &reg.UserID, &reg.SessionID, &caps); err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		if err := json.Unmarshal([]byte(caps), &reg.Capabilities); err != nil {
			return nil, fmt.Errorf("decoding capabilities: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// ExecuteTool runs a builtin tool to completion.
func (b *Backend) ExecuteTool(ctx context.Context, req capability.ToolRequest) (map[string]any, error) {
	tool, ok := b.tools[req.ToolName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", capability.ErrToolNotFound, req.ToolName)
	}
	result, err := tool(ctx, req.Parameters)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", req.ToolName, err)
	}
	return result, nil
}

// SwitchModel records the active model for a user.
func (b *Backend) SwitchModel(ctx context.Context, userID, model string) error {
	if model == "" {
		return capability.ErrUnknownModel
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO user_models (user_id, model, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET model = excluded.model, updated_at = excluded.updated_at`,
		userID, model, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("switching model: %w", err)
	}
	return nil
}

// ActiveModel returns the recorded model for a user, empty if never switched.
func (b *Backend) ActiveModel(ctx context.Context, userID string) (string, error) {
	var model string
	err := b.db.QueryRowContext(ctx,
		`SELECT model FROM user_models WHERE user_id = ?`, userID).Scan(&model)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading model: %w", err)
	}
	return model, nil
}

// StoreContext replaces the shared context for a user. Last writer wins; the
// upsert is a single statement, so writes are atomic per user.
func (b *Backend) StoreContext(ctx context.Context, userID, sourceAgentID string, values map[string]any) error {
	if values == nil {
		values = map[string]any{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO shared_contexts (user_id, values_json, source, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			values_json = excluded.values_json,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		userID, string(data), sourceAgentID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing context: %w", err)
	}
	return nil
}

// FetchContext returns the current shared context for a user. A user with no
// stored context yields an empty value map, not an error.
func (b *Backend) FetchContext(ctx context.Context, userID string) (*capability.SharedContext, error) {
	var valuesJSON string
	shared := &capability.SharedContext{UserID: userID, Values: map[string]any{}}

	err := b.db.QueryRowContext(ctx, `
		SELECT values_json, source, updated_at
		FROM shared_contexts WHERE user_id = ?`, userID).
		Scan(&valuesJSON, &shared.Source, &shared.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return shared, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading context: %w", err)
	}
	if err := json.Unmarshal([]byte(valuesJSON), &shared.Values); err != nil {
		return nil, fmt.Errorf("decoding context: %w", err)
	}
	return shared, nil
}

// AuthorizeHandoff allows any transfer between distinct agent types.
func (b *Backend) AuthorizeHandoff(_ context.Context, _, fromType, toType string) error {
	if fromType == toType {
		return fmt.Errorf("%w: %s to %s", capability.ErrHandoffDenied, fromType, toType)
	}
	return nil
}

var _ capability.Backend = (*Backend)(nil)
