// ABOUTME: HTTP server hosting the WebSocket handshake, health, diagnostics,
// ABOUTME: and metrics endpoints over a TCP or Tailscale tsnet listener.

package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/parcelview/agent-hub/internal/auth"
	"github.com/parcelview/agent-hub/internal/config"
	"github.com/parcelview/agent-hub/internal/hub"
)

// Options wires the server to its collaborators.
type Options struct {
	Config *config.Config
	Hub    *hub.Service
	// Verifier is nil when no jwt_secret is configured; the handshake then
	// skips token checks.
	Verifier auth.TokenVerifier
	// MetricsHandler serves the metrics endpoint when metrics are enabled.
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Server hosts the agent-facing WebSocket endpoint and the operator-facing
// HTTP surface.
type Server struct {
	config      *config.Config
	hub         *hub.Service
	verifier    auth.TokenVerifier
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// New creates a Server and registers all routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   opts.Config,
		hub:      opts.Hub,
		verifier: opts.Verifier,
		logger:   logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/ready", s.handleReady)
	mux.HandleFunc("/api/agents", s.requireAuth(s.handleListAgents))
	mux.HandleFunc("/api/history", s.requireAuth(s.handleHistory))

	if opts.Config.Metrics.Enabled && opts.MetricsHandler != nil {
		mux.Handle(opts.Config.Metrics.Path, opts.MetricsHandler)
		s.logger.Info("metrics endpoint enabled", "path", opts.Config.Metrics.Path)
	}

	s.httpServer = &http.Server{
		Addr:              opts.Config.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// requireAuth guards an API handler with the configured token verifier. When
// no verifier is configured the handler is served as-is. Tokens arrive as a
// bearer header or a token query parameter, matching the handshake.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier != nil {
			token := r.URL.Query().Get("token")
			if token == "" {
				token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if _, err := s.verifier.Verify(token); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// handleWS performs the agent handshake and hands the connection to the hub.
// Identity rides on query parameters: type, userId, sessionId, and token when
// auth is enabled.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	agentType, err := hub.ParseAgentType(q.Get("type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID := q.Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	sessionID := q.Get("sessionId")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if s.verifier != nil {
		sub, err := s.verifier.Verify(q.Get("token"))
		if err != nil {
			s.logger.Warn("handshake rejected", "user_id", userID, "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if sub != userID {
			s.logger.Warn("handshake token subject mismatch", "user_id", userID, "subject", sub)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("upgrade failed", "error", err)
		return
	}

	peer := newWSPeer(conn, s.logger.With("user_id", userID))
	go peer.writeLoop()

	agent := s.hub.Connect(agentType, userID, sessionID, peer)
	peer.readLoop(s.hub, agent, s.readDeadline())
}

// readDeadline derives the transport read deadline from the heartbeat
// timeout, leaving the monitor room to evict first.
func (s *Server) readDeadline() time.Duration {
	timeout := s.config.Agents.HeartbeatTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return timeout * 2
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness and the live agent count. An empty hub is
// still ready; agents come and go by design of the protocol.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d agents)", s.hub.Registry().Len())
}

// agentSummary is the diagnostics view of one connection.
type agentSummary struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	UserID        string    `json:"userId"`
	SessionID     string    `json:"sessionId"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// handleListAgents lists every connected agent.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agents := s.hub.Registry().All()
	out := make([]agentSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentSummary{
			ID:            a.ID,
			Type:          string(a.Type),
			UserID:        a.UserID,
			SessionID:     a.SessionID,
			LastHeartbeat: a.LastHeartbeat(),
		})
	}
	writeJSON(w, map[string]any{"agents": out})
}

// handleHistory returns the recorded envelope history for one user.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"messages": s.hub.History().ForUser(userID)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Run starts the server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and the tsnet node if present.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if s.tsnetServer != nil {
		if err := s.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// setupListener creates a listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "agent-hub", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener creates a tsnet server and returns its HTTP listener.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node",
		"hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	return s.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (s *Server) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return s.createTailscaleTLSListener()
	default:
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (s *Server) createTailscaleTLSListener() (net.Listener, error) {
	s.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// Handler exposes the route mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
