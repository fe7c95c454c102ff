// ABOUTME: Central dispatcher for inbound envelopes from agent connections.
// ABOUTME: Parses, records liveness and history, and delegates by message type.

package hub

import "time"

// HandleInbound processes one raw message from an agent's connection. The
// transport calls this sequentially per connection, which gives per-sender
// FIFO; handlers that wait on the backend run the wait in the background so
// a slow call stalls only that request, never the connection.
//
// Protocol errors (malformed JSON, unknown type) are logged and dropped; the
// connection stays open.
func (s *Service) HandleInbound(agent *ConnectedAgent, raw []byte) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		s.logger.Warn("dropping malformed envelope",
			"agent_id", agent.ID,
			"error", err,
		)
		s.metrics.protocolError()
		return
	}

	// Any inbound traffic is proof of life.
	agent.Touch()

	// Reconnecting agents may replay recently shared envelopes. The key is
	// scoped to the user: clients generate ids independently, so the same id
	// from two users is two distinct messages, not a replay.
	if s.seen.Seen(agent.UserID + "\x00" + env.ID) {
		s.logger.Debug("dropping duplicate envelope", "envelope_id", env.ID, "agent_id", agent.ID)
		return
	}

	// The hub, not the client, is authoritative about who sent what.
	env.SourceAgent = agent.ID

	s.history.Append(agent.UserID, env)
	s.metrics.envelopeRouted(string(env.Type))

	switch env.Type {
	case TypeContextSync:
		s.syncContext(agent, env)
	case TypeToolExecution:
		s.relayTool(agent, env)
	case TypeModelSwitch:
		s.switchModel(agent, env)
	case TypeHandoffRequest:
		s.coordinateHandoff(agent, env)
	case TypeConversationUpdate, TypeSystemAlert:
		s.deliver(agent, env)
	default:
		s.logger.Warn("dropping envelope of unknown type",
			"agent_id", agent.ID,
			"type", env.Type,
		)
		s.metrics.protocolError()
		return
	}

	// Generic acknowledgment: the only ack primitive. Handlers that finish
	// their backend work in the background have completed their handling once
	// dispatch returns.
	if env.RequiresAck {
		s.sendTo(agent, NewEnvelope(TypeSystemAlert, s.serverID, map[string]any{
			"event":             "ack",
			"originalMessageId": env.ID,
		}))
	}
}

// switchModel forwards a model switch to the backend and, unless the sender
// suppressed it, notifies peers of the change. Backend failures come back to
// the requester only.
func (s *Service) switchModel(agent *ConnectedAgent, env *Envelope) {
	model := env.payloadString("model")
	suppress := env.payloadBool("suppressBroadcast")

	go func() {
		ctx, cancel := s.backendCtx()
		defer cancel()

		if err := s.backend.SwitchModel(ctx, agent.UserID, model); err != nil {
			s.logger.Warn("model switch failed",
				"agent_id", agent.ID,
				"model", model,
				"error", err,
			)
			s.metrics.backendError()
			s.sendTo(agent, s.errorEnvelope(env.ID, "model_switch_failed", err))
			return
		}

		if suppress {
			return
		}
		s.broadcast(agent.UserID, agent.ID, NewEnvelope(TypeModelSwitch, agent.ID, map[string]any{
			"model":      model,
			"switchedBy": agent.ID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		}))
	}()
}

// errorEnvelope builds the capability-error alert returned to a requester,
// carrying the original message id for correlation.
func (s *Service) errorEnvelope(originalID, event string, err error) *Envelope {
	return NewEnvelope(TypeSystemAlert, s.serverID, map[string]any{
		"event":             event,
		"error":             err.Error(),
		"originalMessageId": originalID,
	})
}
