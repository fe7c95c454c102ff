// Package hub coordinates every front-end agent connected for a user.
//
// # Overview
//
// The hub package is the core of agent-hub: it admits connections, routes
// envelopes between a user's agents, keeps the shared conversational context
// synchronized, relays tool executions to the capability backend, coordinates
// handoffs between agent types, and evicts unresponsive connections.
//
// # Service
//
// Service is the explicit coordination object; construct one per process:
//
//	svc, err := hub.NewService(hub.Options{Backend: backend, Logger: logger})
//	svc.Start(ctx)
//	defer svc.Stop()
//
// Key operations:
//
//   - Connect(agentType, userID, sessionID, conn): Admit a connection
//   - Disconnect(agentID, reason): Remove a connection and notify peers
//   - HandleInbound(agent, raw): Dispatch one raw inbound message
//
// # Envelopes
//
// Every message in both directions is an Envelope: a JSON object with an id,
// a message type, the authoritative source agent, an optional target agent,
// and a free-form payload. The hub dispatches on Type:
//
//   - context_sync: replace the user's shared context, then fan out
//   - tool_execution: run a tool via the backend, answer the requester
//   - model_switch: record the model change, notify peers
//   - handoff_request: transfer control to another agent type
//   - conversation_update, system_alert: deliver (targeted or broadcast)
//
// # Ordering and Backend Waits
//
// The transport calls HandleInbound sequentially per connection, so messages
// from one agent dispatch in arrival order. Handlers that wait on the
// capability backend run the wait in a goroutine: a hung backend call stalls
// only that request, never the connection or its peers. Every backend call
// carries a deadline (Options.BackendTimeout).
//
// # Liveness
//
// A monitor goroutine pings every connection each HeartbeatInterval and
// evicts agents silent for longer than HeartbeatTimeout. Eviction reuses the
// normal disconnect path, so peers observe a heartbeat death exactly like a
// clean close, exactly once.
//
// # Thread Safety
//
// Registry, History, and ConnectedAgent are safe for concurrent use. The
// Service itself is stateless beyond those and may be called from any
// goroutine.
package hub
