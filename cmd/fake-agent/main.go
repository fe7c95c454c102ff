// ABOUTME: Minimal fake agent for E2E testing — connects via WebSocket, prints traffic.
// ABOUTME: Usage: fake-agent [-url ws://localhost:8080/ws] [-type widget] [-user demo]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func main() {
	wsURL := flag.String("url", "ws://localhost:8080/ws", "hub WebSocket endpoint")
	agentType := flag.String("type", "widget", "agent type (widget/main/voice)")
	user := flag.String("user", "demo", "user id")
	session := flag.String("session", "", "session id (random if empty)")
	token := flag.String("token", "", "connection token (required when hub auth is enabled)")
	probe := flag.Bool("probe", false, "send a tool_execution probe after the welcome")
	flag.Parse()

	if err := run(*wsURL, *agentType, *user, *session, *token, *probe); err != nil {
		log.Fatal(err)
	}
}

// envelope mirrors the hub wire format; kept local so this binary works
// against any hub build.
type envelope struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	SourceAgent string         `json:"sourceAgent,omitempty"`
	TargetAgent string         `json:"targetAgent,omitempty"`
	Payload     map[string]any `json:"payload"`
	Timestamp   time.Time      `json:"timestamp"`
	RequiresAck bool           `json:"requiresAck,omitempty"`
}

func run(wsURL, agentType, user, session, token string, probe bool) error {
	if session == "" {
		session = uuid.New().String()
	}

	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	q := u.Query()
	q.Set("type", agentType)
	q.Set("userId", user)
	q.Set("sessionId", session)
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	green := color.New(color.FgGreen)
	green.Fprintf(os.Stderr, "connected as %s (user %s, session %s)\n", agentType, user, session)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if probe {
		go func() {
			// Give the welcome a moment to arrive first.
			time.Sleep(500 * time.Millisecond)
			send(conn, envelope{
				ID:   uuid.New().String(),
				Type: "tool_execution",
				Payload: map[string]any{
					"toolName":   "echo",
					"parameters": map[string]any{"hello": "hub"},
				},
				Timestamp: time.Now().UTC(),
			})
		}()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil // graceful shutdown
			}
			return fmt.Errorf("read error: %w", err)
		}
		printEnvelope(data)
	}
}

func send(conn *websocket.Conn, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("send error: %v", err)
	}
}

// printEnvelope renders one inbound envelope with color-coded message types.
func printEnvelope(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		fmt.Printf("?? %s\n", data)
		return
	}

	var c *color.Color
	switch env.Type {
	case "system_alert":
		c = color.New(color.FgYellow)
	case "context_sync":
		c = color.New(color.FgCyan)
	case "tool_execution":
		c = color.New(color.FgGreen)
	case "handoff_request":
		c = color.New(color.FgMagenta)
	default:
		c = color.New(color.FgWhite)
	}

	payload, _ := json.Marshal(env.Payload)
	c.Printf("%-20s", env.Type)
	fmt.Printf(" from=%s %s\n", env.SourceAgent, payload)
}
