// ABOUTME: Tests for envelope parsing and agent type aliases.

package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAgentType(t *testing.T) {
	cases := map[string]AgentType{
		"widget":     AgentWidget,
		"floating":   AgentWidget,
		"main":       AgentMain,
		"voice":      AgentVoice,
		"elevenlabs": AgentVoice,
	}
	for in, want := range cases {
		got, err := ParseAgentType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseAgentType("desktop")
	assert.Error(t, err)
	_, err = ParseAgentType("")
	assert.Error(t, err)
}

func TestParseEnvelopeFillsDefaults(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"context_sync"}`))
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())
	assert.NotNil(t, env.Payload)
	assert.Equal(t, TypeContextSync, env.Type)
}

func TestParseEnvelopeRejectsMissingType(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"payload":{"a":1}}`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseEnvelopeKeepsUnknownTypes(t *testing.T) {
	// Unknown types parse fine; the router decides what to do with them.
	env, err := ParseEnvelope([]byte(`{"type":"teleport","id":"x-1"}`))
	require.NoError(t, err)
	assert.False(t, env.Type.Known())
	assert.Equal(t, "x-1", env.ID)
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append("user-1", NewEnvelope(TypeConversationUpdate, "a", map[string]any{"n": i}))
	}

	got := h.ForUser("user-1")
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].Payload["n"])
	assert.Equal(t, 4, got[2].Payload["n"])
	assert.Empty(t, h.ForUser("user-2"))
}
