// ABOUTME: Tests for handoff coordination: delivery to the target type,
// ABOUTME: authorization denials, and missing-target failures.

package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelview/agent-hub/internal/capability"
)

func TestHandoffDeliveredToTargetType(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	widgetConn := &fakeConn{}
	widget := svc.Connect(AgentWidget, "user-1", "sess-1", widgetConn)
	voiceConn := &fakeConn{}
	voice := svc.Connect(AgentVoice, "user-1", "sess-2", voiceConn)

	inbound(t, svc, widget, &Envelope{
		ID:   "handoff-1",
		Type: TypeHandoffRequest,
		Payload: map[string]any{
			"targetAgentType": "voice",
			"context":         map[string]any{"topic": "site visit"},
			"reason":          "user asked to talk",
		},
	})

	require.Eventually(t, func() bool {
		return len(voiceConn.byType(TypeHandoffRequest)) == 1
	}, eventually, 10*time.Millisecond)

	delivery := voiceConn.byType(TypeHandoffRequest)[0]
	assert.Equal(t, widget.ID, delivery.Payload["fromAgentId"])
	assert.Equal(t, "widget", delivery.Payload["fromAgentType"])
	assert.Equal(t, voice.ID, delivery.TargetAgent)
	assert.Equal(t, "handoff-1", delivery.Payload["originalMessageId"])
	assert.True(t, delivery.RequiresAck)

	ctx, ok := delivery.Payload["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "site visit", ctx["topic"])

	// No failure alert for the requester.
	assert.Empty(t, widgetConn.byEvent("handoff_failed"))
}

func TestHandoffAcceptsWireTypeAliases(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	widget := svc.Connect(AgentWidget, "user-1", "sess-1", &fakeConn{})
	voiceConn := &fakeConn{}
	svc.Connect(AgentVoice, "user-1", "sess-2", voiceConn)

	inbound(t, svc, widget, &Envelope{
		Type:    TypeHandoffRequest,
		Payload: map[string]any{"targetAgentType": "elevenlabs"},
	})

	require.Eventually(t, func() bool {
		return len(voiceConn.byType(TypeHandoffRequest)) == 1
	}, eventually, 10*time.Millisecond)
}

func TestHandoffFailsWhenTargetAbsent(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	conn := &fakeConn{}
	widget := svc.Connect(AgentWidget, "user-1", "sess-1", conn)

	inbound(t, svc, widget, &Envelope{
		ID:      "handoff-2",
		Type:    TypeHandoffRequest,
		Payload: map[string]any{"targetAgentType": "voice"},
	})

	require.Eventually(t, func() bool {
		return len(conn.byEvent("handoff_failed")) == 1
	}, eventually, 10*time.Millisecond)

	failure := conn.byEvent("handoff_failed")[0]
	assert.Equal(t, "handoff-2", failure.Payload["originalMessageId"])
	assert.Contains(t, failure.Payload["error"], "agent not found")
}

func TestHandoffDeniedByBackend(t *testing.T) {
	backend := newFakeBackend()
	backend.handoffErr = capability.ErrHandoffDenied
	svc := newTestService(t, backend)
	conn := &fakeConn{}
	widget := svc.Connect(AgentWidget, "user-1", "sess-1", conn)
	voiceConn := &fakeConn{}
	svc.Connect(AgentVoice, "user-1", "sess-2", voiceConn)

	inbound(t, svc, widget, &Envelope{
		ID:      "handoff-3",
		Type:    TypeHandoffRequest,
		Payload: map[string]any{"targetAgentType": "voice"},
	})

	require.Eventually(t, func() bool {
		return len(conn.byEvent("handoff_failed")) == 1
	}, eventually, 10*time.Millisecond)

	assert.Empty(t, voiceConn.byType(TypeHandoffRequest))
}

func TestHandoffInvalidTargetType(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	conn := &fakeConn{}
	widget := svc.Connect(AgentWidget, "user-1", "sess-1", conn)

	inbound(t, svc, widget, &Envelope{
		ID:      "handoff-4",
		Type:    TypeHandoffRequest,
		Payload: map[string]any{"targetAgentType": "toaster"},
	})

	// Invalid types fail synchronously, before the backend is consulted.
	failures := conn.byEvent("handoff_failed")
	require.Len(t, failures, 1)
	assert.Equal(t, "handoff-4", failures[0].Payload["originalMessageId"])
}
