// ABOUTME: Connection registry tracking every connected agent for a user.
// ABOUTME: Owns ConnectedAgent entries; lookups by id are O(1), by user O(1)+fanout.

package hub

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAgentNotFound indicates the specified agent is not registered.
var ErrAgentNotFound = errors.New("agent not found")

// ErrNotConnected indicates an agent's connection is no longer active.
var ErrNotConnected = errors.New("agent not connected")

// Sender is the send-capable half of an agent connection. The registry owns
// the ConnectedAgent entry; the Sender is borrowed by the router and handlers
// but owned by the transport layer.
type Sender interface {
	SendEnvelope(env *Envelope) error
	Ping() error
	Close() error
}

// ConnectedAgent is one live agent connection. A reconnect always produces a
// new entry with a new id; entries never return to the active state once
// deactivated.
type ConnectedAgent struct {
	ID        string
	Type      AgentType
	UserID    string
	SessionID string

	conn Sender

	mu            sync.Mutex
	lastHeartbeat time.Time
	active        bool
}

// Send delivers an envelope to the agent. Returns ErrNotConnected once the
// agent has been deactivated.
func (a *ConnectedAgent) Send(env *Envelope) error {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()
	if !active {
		return ErrNotConnected
	}
	return a.conn.SendEnvelope(env)
}

// Ping sends a liveness probe over the connection.
func (a *ConnectedAgent) Ping() error {
	return a.conn.Ping()
}

// Touch records proof of life: called for every inbound message and pong.
func (a *ConnectedAgent) Touch() {
	a.mu.Lock()
	a.lastHeartbeat = time.Now()
	a.mu.Unlock()
}

// LastHeartbeat returns the most recent proof-of-life timestamp.
func (a *ConnectedAgent) LastHeartbeat() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastHeartbeat
}

// Active reports whether the agent is still live.
func (a *ConnectedAgent) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// deactivate flips the agent inactive. Returns false if it already was, which
// makes eviction idempotent.
func (a *ConnectedAgent) deactivate() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return false
	}
	a.active = false
	return true
}

// Registry tracks every connected agent, keyed by connection id and indexed
// by user. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*ConnectedAgent
	byUser map[string]map[string]*ConnectedAgent
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		agents: make(map[string]*ConnectedAgent),
		byUser: make(map[string]map[string]*ConnectedAgent),
		logger: logger.With("component", "registry"),
	}
}

// Admit creates a ConnectedAgent for a freshly opened connection and stores
// it. The generated id is unique per connection instance.
func (r *Registry) Admit(agentType AgentType, userID, sessionID string, conn Sender) *ConnectedAgent {
	agent := &ConnectedAgent{
		ID:            uuid.New().String(),
		Type:          agentType,
		UserID:        userID,
		SessionID:     sessionID,
		conn:          conn,
		lastHeartbeat: time.Now(),
		active:        true,
	}

	r.mu.Lock()
	r.agents[agent.ID] = agent
	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(map[string]*ConnectedAgent)
	}
	r.byUser[userID][agent.ID] = agent
	total := len(r.agents)
	r.mu.Unlock()

	r.logger.Info("agent connected",
		"agent_id", agent.ID,
		"agent_type", agentType,
		"user_id", userID,
		"session_id", sessionID,
		"total_agents", total,
	)
	return agent
}

// Remove marks the agent inactive and deletes it from the registry, returning
// the removed entry so the caller can deregister it and notify peers. Returns
// nil if the agent is unknown or was already removed, so double eviction is a
// no-op.
func (r *Registry) Remove(agentID string) *ConnectedAgent {
	r.mu.Lock()
	agent, ok := r.agents[agentID]
	if ok {
		delete(r.agents, agentID)
		if peers, ok := r.byUser[agent.UserID]; ok {
			delete(peers, agentID)
			if len(peers) == 0 {
				delete(r.byUser, agent.UserID)
			}
		}
	}
	total := len(r.agents)
	r.mu.Unlock()

	if !ok || !agent.deactivate() {
		return nil
	}

	r.logger.Info("agent removed",
		"agent_id", agentID,
		"agent_type", agent.Type,
		"user_id", agent.UserID,
		"total_agents", total,
	)
	return agent
}

// Get retrieves an agent by connection id.
func (r *Registry) Get(agentID string) (*ConnectedAgent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[agentID]
	return agent, ok
}

// ListActive returns every active agent for a user, used for welcome payloads
// and broadcast targeting.
func (r *Registry) ListActive(userID string) []*ConnectedAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := r.byUser[userID]
	out := make([]*ConnectedAgent, 0, len(peers))
	for _, agent := range peers {
		if agent.Active() {
			out = append(out, agent)
		}
	}
	return out
}

// FindByType returns an active agent of the given type for a user, or nil.
func (r *Registry) FindByType(userID string, t AgentType) *ConnectedAgent {
	for _, agent := range r.ListActive(userID) {
		if agent.Type == t {
			return agent
		}
	}
	return nil
}

// All returns every registered agent across users. The liveness monitor
// sweeps this snapshot.
func (r *Registry) All() []*ConnectedAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ConnectedAgent, 0, len(r.agents))
	for _, agent := range r.agents {
		out = append(out, agent)
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
