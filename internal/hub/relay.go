// ABOUTME: Tool-execution relay: request/response correlation without a queue.
// ABOUTME: Fresh requests go to the backend; completed results go to peers.

package hub

import (
	"github.com/parcelview/agent-hub/internal/capability"
)

// relayTool handles a tool_execution envelope.
//
// Without a result field the envelope is a request: the backend executes the
// tool and the response — toolName, parameters, result, and the original id
// for correlation — goes back to the requesting agent only. With a result
// field the envelope is an already-completed execution the agent performed
// locally, and it is broadcast to the user's other agents instead.
func (s *Service) relayTool(agent *ConnectedAgent, env *Envelope) {
	if _, done := env.Payload["result"]; done {
		s.broadcast(agent.UserID, agent.ID, NewEnvelope(TypeToolExecution, agent.ID, env.Payload))
		return
	}

	toolName := env.payloadString("toolName")
	params, _ := env.Payload["parameters"].(map[string]any)

	go func() {
		ctx, cancel := s.backendCtx()
		defer cancel()

		result, err := s.backend.ExecuteTool(ctx, capability.ToolRequest{
			UserID:     agent.UserID,
			AgentID:    agent.ID,
			ToolName:   toolName,
			Parameters: params,
		})
		if err != nil {
			s.logger.Warn("tool execution failed",
				"agent_id", agent.ID,
				"tool", toolName,
				"error", err,
			)
			s.metrics.backendError()
			s.sendTo(agent, s.errorEnvelope(env.ID, "tool_execution_failed", err))
			return
		}

		s.sendTo(agent, NewEnvelope(TypeToolExecution, s.serverID, map[string]any{
			"toolName":          toolName,
			"parameters":        params,
			"result":            result,
			"originalMessageId": env.ID,
		}))
	}()
}
