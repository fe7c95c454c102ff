// ABOUTME: Tests for inbound envelope dispatch: acks, dedupe, unknown types,
// ABOUTME: conversation updates, and model switching.

package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inbound marshals an envelope and feeds it through HandleInbound.
func inbound(t *testing.T, svc *Service, agent *ConnectedAgent, env *Envelope) {
	t.Helper()
	raw, err := env.Marshal()
	require.NoError(t, err)
	svc.HandleInbound(agent, raw)
}

func TestHandleInboundDropsMalformed(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	conn := &fakeConn{}
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", conn)
	before := len(conn.envelopes())

	svc.HandleInbound(agent, []byte("{not json"))
	svc.HandleInbound(agent, []byte(`{"payload":{}}`)) // missing type

	assert.Len(t, conn.envelopes(), before)
	assert.Equal(t, 0, svc.History().Len("user-1"))
}

func TestHandleInboundDropsUnknownType(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	conn := &fakeConn{}
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", conn)

	inbound(t, svc, agent, &Envelope{
		Type:        MessageType("teleport"),
		Payload:     map[string]any{},
		RequiresAck: true,
	})

	// No ack for a message the hub refused to route.
	assert.Empty(t, conn.byEvent("ack"))
}

func TestHandleInboundAcks(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	conn := &fakeConn{}
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", conn)

	env := &Envelope{
		ID:          "msg-1",
		Type:        TypeConversationUpdate,
		Payload:     map[string]any{"text": "hello"},
		RequiresAck: true,
	}
	inbound(t, svc, agent, env)

	acks := conn.byEvent("ack")
	require.Len(t, acks, 1)
	assert.Equal(t, "msg-1", acks[0].Payload["originalMessageId"])
}

func TestHandleInboundDropsDuplicates(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	conn := &fakeConn{}
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", conn)
	peer := &fakeConn{}
	svc.Connect(AgentMain, "user-1", "sess-2", peer)

	env := &Envelope{ID: "dup-1", Type: TypeConversationUpdate, Payload: map[string]any{"n": 1}}
	inbound(t, svc, agent, env)
	inbound(t, svc, agent, env)

	assert.Len(t, peer.byType(TypeConversationUpdate), 1)
	assert.Equal(t, 1, svc.History().Len("user-1"))
}

func TestHandleInboundDedupeScopedPerUser(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	sender1 := svc.Connect(AgentWidget, "user-1", "sess-1", &fakeConn{})
	peer1 := &fakeConn{}
	svc.Connect(AgentMain, "user-1", "sess-2", peer1)
	sender2 := svc.Connect(AgentWidget, "user-2", "sess-3", &fakeConn{})
	peer2 := &fakeConn{}
	svc.Connect(AgentMain, "user-2", "sess-4", peer2)

	// Clients generate ids independently; a collision across users must not
	// suppress the second user's message.
	env := &Envelope{ID: "msg-1", Type: TypeConversationUpdate, Payload: map[string]any{"text": "hi"}}
	inbound(t, svc, sender1, env)
	inbound(t, svc, sender2, env)

	assert.Len(t, peer1.byType(TypeConversationUpdate), 1)
	assert.Len(t, peer2.byType(TypeConversationUpdate), 1)
	assert.Equal(t, 1, svc.History().Len("user-2"))
}

func TestHandleInboundStampsSource(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", &fakeConn{})
	peer := &fakeConn{}
	svc.Connect(AgentMain, "user-1", "sess-2", peer)

	// The client claims to be someone else; the hub overwrites it.
	inbound(t, svc, agent, &Envelope{
		Type:        TypeConversationUpdate,
		SourceAgent: "spoofed-id",
		Payload:     map[string]any{},
	})

	updates := peer.byType(TypeConversationUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, agent.ID, updates[0].SourceAgent)
}

func TestConversationUpdateTargeted(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", &fakeConn{})
	mainConn := &fakeConn{}
	mainAgent := svc.Connect(AgentMain, "user-1", "sess-2", mainConn)
	voiceConn := &fakeConn{}
	svc.Connect(AgentVoice, "user-1", "sess-3", voiceConn)

	inbound(t, svc, agent, &Envelope{
		Type:        TypeConversationUpdate,
		TargetAgent: mainAgent.ID,
		Payload:     map[string]any{"text": "direct"},
	})

	assert.Len(t, mainConn.byType(TypeConversationUpdate), 1)
	assert.Empty(t, voiceConn.byType(TypeConversationUpdate))
}

func TestConversationUpdateCrossUserTargetDropped(t *testing.T) {
	svc := newTestService(t, newFakeBackend())
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", &fakeConn{})
	foreign := &fakeConn{}
	foreignAgent := svc.Connect(AgentMain, "user-2", "sess-2", foreign)

	inbound(t, svc, agent, &Envelope{
		Type:        TypeConversationUpdate,
		TargetAgent: foreignAgent.ID,
		Payload:     map[string]any{"text": "leak?"},
	})

	assert.Empty(t, foreign.byType(TypeConversationUpdate))
}

func TestModelSwitchBroadcasts(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend)
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", &fakeConn{})
	peer := &fakeConn{}
	svc.Connect(AgentMain, "user-1", "sess-2", peer)

	inbound(t, svc, agent, &Envelope{
		Type:    TypeModelSwitch,
		Payload: map[string]any{"model": "atlas-2"},
	})

	require.Eventually(t, func() bool {
		return len(peer.byType(TypeModelSwitch)) == 1
	}, eventually, 10*time.Millisecond)

	notice := peer.byType(TypeModelSwitch)[0]
	assert.Equal(t, "atlas-2", notice.Payload["model"])
	assert.Equal(t, agent.ID, notice.Payload["switchedBy"])

	backend.mu.Lock()
	assert.Equal(t, "atlas-2", backend.models["user-1"])
	backend.mu.Unlock()
}

func TestModelSwitchSuppressBroadcast(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend)
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", &fakeConn{})
	peer := &fakeConn{}
	svc.Connect(AgentMain, "user-1", "sess-2", peer)

	inbound(t, svc, agent, &Envelope{
		Type:    TypeModelSwitch,
		Payload: map[string]any{"model": "atlas-2", "suppressBroadcast": true},
	})

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.models["user-1"] == "atlas-2"
	}, eventually, 10*time.Millisecond)

	assert.Empty(t, peer.byType(TypeModelSwitch))
}

func TestModelSwitchFailureReportedToSender(t *testing.T) {
	backend := newFakeBackend()
	backend.switchErr = errors.New("unknown model")
	svc := newTestService(t, backend)
	conn := &fakeConn{}
	agent := svc.Connect(AgentWidget, "user-1", "sess-1", conn)
	peer := &fakeConn{}
	svc.Connect(AgentMain, "user-1", "sess-2", peer)

	inbound(t, svc, agent, &Envelope{
		ID:      "switch-1",
		Type:    TypeModelSwitch,
		Payload: map[string]any{"model": "bogus"},
	})

	require.Eventually(t, func() bool {
		return len(conn.byEvent("model_switch_failed")) == 1
	}, eventually, 10*time.Millisecond)

	failure := conn.byEvent("model_switch_failed")[0]
	assert.Equal(t, "switch-1", failure.Payload["originalMessageId"])
	assert.Empty(t, peer.byType(TypeModelSwitch))
}
