// ABOUTME: Entry point for the agent-hub coordination server
// ABOUTME: Keeps a user's widget, main, and voice agents synchronized

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parcelview/agent-hub/internal/auth"
	"github.com/parcelview/agent-hub/internal/capability"
	"github.com/parcelview/agent-hub/internal/capability/local"
	"github.com/parcelview/agent-hub/internal/config"
	"github.com/parcelview/agent-hub/internal/hub"
	"github.com/parcelview/agent-hub/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                          _         _           _
   __ _  __ _  ___ _ __ | |_      | |__  _   _| |__
  / _' |/ _' |/ _ \ '_ \| __|_____| '_ \| | | | '_ \
 | (_| | (_| |  __/ | | | ||_____|| | | | |_| | |_) |
  \__,_|\__, |\___|_| |_|\__|     |_| |_|\__,_|_.__/
        |___/
`

// getConfigPath returns the path to the hub config file.
// Priority: AGENT_HUB_CONFIG env var > XDG_CONFIG_HOME/agent-hub/hub.yaml > ~/.config/agent-hub/hub.yaml
func getConfigPath() string {
	if envPath := os.Getenv("AGENT_HUB_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "hub.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "agent-hub", "hub.yaml")
}

// getDataPath returns the path to the agent-hub data directory.
// Priority: XDG_DATA_HOME/agent-hub > ~/.local/share/agent-hub
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "agent-hub")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: agent-hub <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                Start the hub server")
		fmt.Println("  init                 Create a new config file interactively")
		fmt.Println("  token --user USER    Generate a connection token for a user")
		fmt.Println("  health               Check hub health")
		fmt.Println("  agents               List connected agents")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
	case "health":
		err = runHealth(ctx)
	case "agents":
		err = runAgents(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Backend.Mode)

	// Tailscale status
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting agent-hub",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Backend.Mode,
	)

	backend, closeBackend, err := buildBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	var metrics *hub.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = hub.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	svc, err := hub.NewService(hub.Options{
		Backend:           backend,
		Logger:            logger,
		HeartbeatInterval: cfg.Agents.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Agents.HeartbeatTimeout,
		BackendTimeout:    cfg.Backend.Timeout,
		HistoryLimit:      cfg.Agents.HistoryLimit,
		Metrics:           metrics,
	})
	if err != nil {
		return fmt.Errorf("creating hub: %w", err)
	}
	svc.Start(ctx)
	defer svc.Stop()

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		logger.Info("handshake auth enabled (JWT)")
	} else {
		logger.Warn("handshake auth disabled - no jwt_secret configured")
	}

	srv := server.New(server.Options{
		Config:         cfg,
		Hub:            svc,
		Verifier:       verifier,
		MetricsHandler: metricsHandler,
		Logger:         logger,
	})

	return srv.Run(ctx)
}

// buildBackend constructs the configured capability backend and a cleanup
// function.
func buildBackend(cfg *config.Config, logger *slog.Logger) (capability.Backend, func(), error) {
	switch cfg.Backend.Mode {
	case config.BackendModeHTTP:
		b := capability.NewHTTPBackend(cfg.Backend.URL, logger)
		return b, func() {}, nil
	default:
		b, err := local.New(cfg.Backend.DatabasePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening local backend: %w", err)
		}
		return b, func() { _ = b.Close() }, nil
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runAgents(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/agents", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if cfg.Auth.JWTSecret != "" {
		token, err := auth.NewConnectionToken([]byte(cfg.Auth.JWTSecret), "cli", time.Minute)
		if err != nil {
			return fmt.Errorf("generating API token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("agents check failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

// runToken generates a connection JWT for a user, valid for 30 days.
// Supports both "--user value" and "--user=value" formats.
func runToken() error {
	var userID string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--user" || arg == "-u":
			if i+1 >= len(args) {
				return fmt.Errorf("--user requires a value")
			}
			userID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--user="):
			userID = strings.TrimPrefix(arg, "--user=")
		case strings.HasPrefix(arg, "-u="):
			userID = strings.TrimPrefix(arg, "-u=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("--user flag is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt_secret not configured in %s (required for token)", getConfigPath())
	}

	tokenTTL := 30 * 24 * time.Hour
	token, err := auth.NewConnectionToken([]byte(cfg.Auth.JWTSecret), userID, tokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Token for %s (expires %s)\n",
		userID, time.Now().Add(tokenTTL).UTC().Format("Jan 02, 2006"))
	fmt.Println(token)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("agent-hub configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "hub.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// Backend
	fmt.Println("\n--- Backend Configuration ---")
	backendMode := prompt(reader, "Capability backend (local/http)", "local")
	var backendURL, dbPath string
	if backendMode == "http" {
		backendURL = prompt(reader, "Backend URL", "http://localhost:9090")
	} else {
		dbPath = prompt(reader, "SQLite database path", defaultDbPath)
	}

	// Auth
	fmt.Println("\n--- Auth Configuration ---")
	enableAuth := prompt(reader, "Require connection tokens?", "no")
	var jwtSecret string
	if strings.ToLower(enableAuth) == "yes" || strings.ToLower(enableAuth) == "y" {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
	}

	// Tailscale
	fmt.Println("\n--- Tailscale Configuration ---")
	enableTailscale := prompt(reader, "Enable Tailscale?", "no")
	tailscaleEnabled := strings.ToLower(enableTailscale) == "yes" || strings.ToLower(enableTailscale) == "y"

	var tsHostname, tsAuthKey string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "agent-hub")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for interactive)", "")
		ephemeralStr := prompt(reader, "Ephemeral node?", "no")
		tsEphemeral = strings.ToLower(ephemeralStr) == "yes" || strings.ToLower(ephemeralStr) == "y"
		funnelStr := prompt(reader, "Enable Funnel (public HTTPS)?", "no")
		tsFunnel = strings.ToLower(funnelStr) == "yes" || strings.ToLower(funnelStr) == "y"
	}

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# agent-hub configuration\n")
	cfg.WriteString("# Generated by agent-hub init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("backend:\n")
	cfg.WriteString(fmt.Sprintf("  mode: \"%s\"\n", backendMode))
	if backendURL != "" {
		cfg.WriteString(fmt.Sprintf("  url: \"%s\"\n", backendURL))
	}
	if dbPath != "" {
		cfg.WriteString(fmt.Sprintf("  database_path: \"%s\"\n", dbPath))
	}
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("\n")

	if jwtSecret != "" {
		cfg.WriteString("auth:\n")
		cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
		cfg.WriteString("\n")
	}

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: \"%s\"\n", tsHostname))
		if tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: \"%s\"\n", tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", tsFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("agents:\n")
	cfg.WriteString("  heartbeat_interval: \"30s\"\n")
	cfg.WriteString("  heartbeat_timeout: \"60s\"\n")
	cfg.WriteString("  history_limit: 256\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if dbPath != "" {
		dataDir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		fmt.Printf("Data directory: %s\n", dataDir)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  agent-hub serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
