// ABOUTME: Tests for the tool-execution relay: request/response correlation,
// ABOUTME: failure alerts, and local-result fanout.

package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelview/agent-hub/internal/capability"
)

func TestToolRequestAnswersRequesterOnly(t *testing.T) {
	backend := newFakeBackend()
	backend.toolResult = map[string]any{"site": "PV-1001"}
	svc := newTestService(t, backend)
	conn := &fakeConn{}
	requester := svc.Connect(AgentWidget, "user-1", "sess-1", conn)
	peer := &fakeConn{}
	svc.Connect(AgentMain, "user-1", "sess-2", peer)

	inbound(t, svc, requester, &Envelope{
		ID:   "tool-1",
		Type: TypeToolExecution,
		Payload: map[string]any{
			"toolName":   "lookup_site",
			"parameters": map[string]any{"parcelId": "PV-1001"},
		},
	})

	require.Eventually(t, func() bool {
		return len(conn.byType(TypeToolExecution)) == 1
	}, eventually, 10*time.Millisecond)

	resp := conn.byType(TypeToolExecution)[0]
	assert.Equal(t, "lookup_site", resp.Payload["toolName"])
	assert.Equal(t, "tool-1", resp.Payload["originalMessageId"])
	result, ok := resp.Payload["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PV-1001", result["site"])

	// Results are point-to-point, not broadcast.
	assert.Empty(t, peer.byType(TypeToolExecution))

	backend.mu.Lock()
	require.Len(t, backend.toolCalls, 1)
	assert.Equal(t, capability.ToolRequest{
		UserID:     "user-1",
		AgentID:    requester.ID,
		ToolName:   "lookup_site",
		Parameters: map[string]any{"parcelId": "PV-1001"},
	}, backend.toolCalls[0])
	backend.mu.Unlock()
}

func TestToolRequestFailureAlertsRequester(t *testing.T) {
	backend := newFakeBackend()
	backend.toolErr = errors.New("tool not found")
	svc := newTestService(t, backend)
	conn := &fakeConn{}
	requester := svc.Connect(AgentWidget, "user-1", "sess-1", conn)

	inbound(t, svc, requester, &Envelope{
		ID:      "tool-2",
		Type:    TypeToolExecution,
		Payload: map[string]any{"toolName": "nope"},
	})

	require.Eventually(t, func() bool {
		return len(conn.byEvent("tool_execution_failed")) == 1
	}, eventually, 10*time.Millisecond)

	failure := conn.byEvent("tool_execution_failed")[0]
	assert.Equal(t, "tool-2", failure.Payload["originalMessageId"])
	assert.Contains(t, failure.Payload["error"], "tool not found")
}

func TestToolResultBroadcastToPeers(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend)
	senderConn := &fakeConn{}
	sender := svc.Connect(AgentMain, "user-1", "sess-1", senderConn)
	peer := &fakeConn{}
	svc.Connect(AgentWidget, "user-1", "sess-2", peer)

	// An envelope carrying a result is an execution the agent already
	// performed locally; the hub shares it without calling the backend.
	inbound(t, svc, sender, &Envelope{
		Type: TypeToolExecution,
		Payload: map[string]any{
			"toolName": "summarize",
			"result":   map[string]any{"summary": "two-story, R-2"},
		},
	})

	shared := peer.byType(TypeToolExecution)
	require.Len(t, shared, 1)
	assert.Equal(t, sender.ID, shared[0].SourceAgent)
	assert.Empty(t, senderConn.byType(TypeToolExecution))

	backend.mu.Lock()
	assert.Empty(t, backend.toolCalls)
	backend.mu.Unlock()
}
