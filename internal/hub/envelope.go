// ABOUTME: Wire envelope types exchanged between the hub and connected agents.
// ABOUTME: Defines agent types, message types, and JSON parsing/validation.

package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentType identifies which front-end surface a connection represents.
type AgentType string

const (
	// AgentWidget is the lightweight always-on widget surface.
	AgentWidget AgentType = "widget"
	// AgentMain is the full conversational surface.
	AgentMain AgentType = "main"
	// AgentVoice is the voice-synthesis agent.
	AgentVoice AgentType = "voice"
)

// ParseAgentType maps the handshake `type` parameter onto an internal
// AgentType. The wire names predate the internal ones, so both spellings
// are accepted.
func ParseAgentType(s string) (AgentType, error) {
	switch s {
	case "floating", "widget":
		return AgentWidget, nil
	case "main":
		return AgentMain, nil
	case "elevenlabs", "voice":
		return AgentVoice, nil
	}
	return "", fmt.Errorf("unknown agent type %q", s)
}

// MessageType is the tagged variant of an Envelope.
type MessageType string

const (
	TypeContextSync        MessageType = "context_sync"
	TypeToolExecution      MessageType = "tool_execution"
	TypeModelSwitch        MessageType = "model_switch"
	TypeConversationUpdate MessageType = "conversation_update"
	TypeHandoffRequest     MessageType = "handoff_request"
	TypeSystemAlert        MessageType = "system_alert"
)

// knownTypes is the set of message types the router dispatches on.
var knownTypes = map[MessageType]bool{
	TypeContextSync:        true,
	TypeToolExecution:      true,
	TypeModelSwitch:        true,
	TypeConversationUpdate: true,
	TypeHandoffRequest:     true,
	TypeSystemAlert:        true,
}

// Known reports whether t is a message type the hub understands.
func (t MessageType) Known() bool {
	return knownTypes[t]
}

// Envelope is the message unit exchanged over an agent connection, one JSON
// object per WebSocket text message in each direction.
type Envelope struct {
	ID          string         `json:"id"`
	Type        MessageType    `json:"type"`
	SourceAgent string         `json:"sourceAgent"`
	TargetAgent string         `json:"targetAgent,omitempty"`
	Payload     map[string]any `json:"payload"`
	Timestamp   time.Time      `json:"timestamp"`
	RequiresAck bool           `json:"requiresAck"`
}

// NewEnvelope creates a hub-originated envelope with a fresh id and timestamp.
func NewEnvelope(t MessageType, sourceAgent string, payload map[string]any) *Envelope {
	return &Envelope{
		ID:          uuid.New().String(),
		Type:        t,
		SourceAgent: sourceAgent,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}

// ParseEnvelope decodes a raw inbound message. Missing ids and timestamps are
// filled in so downstream handlers always see a complete envelope; an unknown
// type is not an error here — the router logs and drops those.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	if env.ID == "" {
		env.ID = uuid.New().String()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if env.Payload == nil {
		env.Payload = map[string]any{}
	}
	return &env, nil
}

// Marshal encodes the envelope for the wire.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// payloadString extracts a string payload field, empty if absent or not a string.
func (e *Envelope) payloadString(key string) string {
	v, _ := e.Payload[key].(string)
	return v
}

// payloadBool extracts a bool payload field, false if absent or not a bool.
func (e *Envelope) payloadBool(key string) bool {
	v, _ := e.Payload[key].(bool)
	return v
}
