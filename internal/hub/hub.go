// ABOUTME: The coordination hub service: admission, departure, and delivery.
// ABOUTME: Explicit service object with Start/Stop, no package-level state.

package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parcelview/agent-hub/internal/capability"
	"github.com/parcelview/agent-hub/internal/dedupe"
)

// DefaultBackendTimeout bounds every capability-backend call when the config
// does not override it. Overrun is treated as a capability error.
const DefaultBackendTimeout = 30 * time.Second

// Options configures a Service.
type Options struct {
	Backend capability.Backend
	Logger  *slog.Logger

	// HeartbeatInterval is the liveness monitor tick (default 30s).
	HeartbeatInterval time.Duration
	// HeartbeatTimeout evicts agents silent for longer than this (default 60s).
	HeartbeatTimeout time.Duration
	// BackendTimeout bounds each capability-backend call (default 30s).
	BackendTimeout time.Duration
	// HistoryLimit caps the per-user envelope history (default 256).
	HistoryLimit int
	// Metrics is optional; nil disables instrumentation.
	Metrics *Metrics
}

// Service coordinates every connected agent of every user: it admits and
// removes connections, routes envelopes between peers, keeps shared context
// in sync through the capability backend, and evicts unresponsive agents.
// Construct one per process (or per test) and inject it into the transport.
type Service struct {
	registry *Registry
	history  *History
	backend  capability.Backend
	seen     *dedupe.Cache
	monitor  *monitor
	metrics  *Metrics
	logger   *slog.Logger

	backendTimeout time.Duration
	serverID       string

	cancel context.CancelFunc
}

// NewService creates a hub service. The capability backend is required.
func NewService(opts Options) (*Service, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("capability backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := opts.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := opts.HeartbeatTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	backendTimeout := opts.BackendTimeout
	if backendTimeout <= 0 {
		backendTimeout = DefaultBackendTimeout
	}

	s := &Service{
		registry:       NewRegistry(logger),
		history:        NewHistory(opts.HistoryLimit),
		backend:        opts.Backend,
		seen:           dedupe.New(5*time.Minute, 100_000),
		metrics:        opts.Metrics,
		logger:         logger.With("component", "hub"),
		backendTimeout: backendTimeout,
		serverID:       fmt.Sprintf("agent-hub-%d", time.Now().UnixNano()%1_000_000),
	}
	s.monitor = newMonitor(s, interval, timeout, logger)
	return s, nil
}

// Start launches the liveness monitor. The service keeps running until Stop.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.monitor.run(ctx)
	s.logger.Info("hub started", "server_id", s.serverID)
}

// Stop halts the monitor, closes every live connection, and releases
// resources. Safe to call once after Start.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	for _, agent := range s.registry.All() {
		s.Disconnect(agent.ID, "shutdown")
	}
	s.seen.Close()
	s.logger.Info("hub stopped")
}

// ServerID identifies this hub instance in welcome payloads.
func (s *Service) ServerID() string { return s.serverID }

// Registry exposes the connection registry for the diagnostics API.
func (s *Service) Registry() *Registry { return s.registry }

// History exposes the per-user envelope history for the diagnostics API.
func (s *Service) History() *History { return s.history }

// capabilitiesFor maps an agent type onto the capability set registered with
// the backend.
func capabilitiesFor(t AgentType) []string {
	switch t {
	case AgentMain:
		return []string{
			"quick_response", "context_aware", "tool_execution",
			"model_switching", "advanced_reasoning", "file_handling",
		}
	case AgentVoice:
		return []string{"voice_synthesis", "audio_processing", "conversation_handoff"}
	default:
		return []string{"quick_response", "context_aware", "tool_execution", "model_switching"}
	}
}

// backendCtx derives a deadline-bounded context for one backend call.
func (s *Service) backendCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.backendTimeout)
}

// Connect admits a new agent connection: it registers the agent and its
// capabilities with the backend, sends the welcome envelope carrying the
// current shared context and active peer list, and notifies peers. The
// returned agent is live until Disconnect.
func (s *Service) Connect(agentType AgentType, userID, sessionID string, conn Sender) *ConnectedAgent {
	agent := s.registry.Admit(agentType, userID, sessionID, conn)

	ctx, cancel := s.backendCtx()
	err := s.backend.RegisterAgent(ctx, capability.Registration{
		AgentID:      agent.ID,
		AgentType:    string(agent.Type),
		UserID:       userID,
		SessionID:    sessionID,
		Capabilities: capabilitiesFor(agentType),
	})
	cancel()
	if err != nil {
		// Admission proceeds: backend registration is advisory and per-agent
		// failures must not take down the connection.
		s.logger.Warn("backend registration failed", "agent_id", agent.ID, "error", err)
		s.metrics.backendError()
	}

	s.sendTo(agent, s.welcomeEnvelope(agent))

	s.broadcast(userID, agent.ID, NewEnvelope(TypeSystemAlert, s.serverID, map[string]any{
		"event":     "agent_connected",
		"agentId":   agent.ID,
		"agentType": string(agent.Type),
	}))

	s.metrics.agentConnected()
	return agent
}

// welcomeEnvelope builds the admission payload: the authoritative shared
// context (so late joiners start consistent with peers) and the active agent
// roster for the user, including the new agent itself.
func (s *Service) welcomeEnvelope(agent *ConnectedAgent) *Envelope {
	shared := s.fetchContext(agent.UserID)

	peers := s.registry.ListActive(agent.UserID)
	roster := make([]map[string]any, 0, len(peers))
	for _, p := range peers {
		roster = append(roster, map[string]any{
			"id":   p.ID,
			"type": string(p.Type),
		})
	}

	return NewEnvelope(TypeSystemAlert, s.serverID, map[string]any{
		"event":         "welcome",
		"agentId":       agent.ID,
		"serverId":      s.serverID,
		"sharedContext": shared,
		"activeAgents":  roster,
	})
}

// Disconnect removes an agent (clean close, read error, or heartbeat
// eviction all funnel here), deactivates it with the backend, and notifies
// surviving peers exactly once. Repeated calls for the same id are no-ops.
func (s *Service) Disconnect(agentID, reason string) {
	agent := s.registry.Remove(agentID)
	if agent == nil {
		return
	}
	_ = agent.conn.Close()

	ctx, cancel := s.backendCtx()
	if err := s.backend.DeactivateAgent(ctx, agentID); err != nil {
		s.logger.Warn("backend deactivation failed", "agent_id", agentID, "error", err)
		s.metrics.backendError()
	}
	cancel()

	s.logger.Info("agent disconnected", "agent_id", agentID, "reason", reason)

	s.broadcast(agent.UserID, agentID, NewEnvelope(TypeSystemAlert, s.serverID, map[string]any{
		"event":     "agent_disconnected",
		"agentId":   agentID,
		"agentType": string(agent.Type),
	}))

	s.metrics.agentDisconnected(reason)
}

// broadcast delivers an envelope to every other active agent of the user.
// The excluded agent (normally the sender) never receives its own broadcast.
func (s *Service) broadcast(userID, excludeID string, env *Envelope) {
	for _, peer := range s.registry.ListActive(userID) {
		if peer.ID == excludeID {
			continue
		}
		s.sendTo(peer, env)
	}
}

// deliver routes an outbound envelope: to the named target agent when set
// (same user only), otherwise broadcast to the sender's peers.
func (s *Service) deliver(source *ConnectedAgent, env *Envelope) {
	if env.TargetAgent == "" {
		s.broadcast(source.UserID, source.ID, env)
		return
	}
	target, ok := s.registry.Get(env.TargetAgent)
	if !ok || target.UserID != source.UserID || !target.Active() {
		s.logger.Warn("dropping envelope for unavailable target",
			"target_agent", env.TargetAgent,
			"source_agent", source.ID,
			"type", env.Type,
		)
		return
	}
	s.sendTo(target, env)
}

// sendTo writes one envelope to one agent, logging delivery failures. A full
// or dead connection is the liveness monitor's problem, not the sender's.
func (s *Service) sendTo(agent *ConnectedAgent, env *Envelope) {
	if err := agent.Send(env); err != nil {
		s.logger.Warn("envelope delivery failed",
			"agent_id", agent.ID,
			"type", env.Type,
			"error", err,
		)
		s.metrics.deliveryFailed()
	}
}
