// ABOUTME: Handoff coordinator: transfers conversational control between
// ABOUTME: agent types, carrying context, with backend authorization.

package hub

// coordinateHandoff handles a handoff_request envelope. The attempt is
// Requested, then either Delivered (the backend authorized it and an agent of
// the target type is connected for the same user) or Failed. Failures are
// reported back to the requester as a system_alert referencing the original
// request id.
func (s *Service) coordinateHandoff(agent *ConnectedAgent, env *Envelope) {
	targetRaw := env.payloadString("targetAgentType")
	targetType, err := ParseAgentType(targetRaw)
	if err != nil {
		s.logger.Warn("handoff with invalid target type",
			"agent_id", agent.ID,
			"target_type", targetRaw,
		)
		s.sendTo(agent, s.errorEnvelope(env.ID, "handoff_failed", err))
		return
	}

	go func() {
		ctx, cancel := s.backendCtx()
		defer cancel()

		if err := s.backend.AuthorizeHandoff(ctx, agent.UserID, string(agent.Type), string(targetType)); err != nil {
			s.logger.Warn("handoff not authorized",
				"agent_id", agent.ID,
				"target_type", targetType,
				"error", err,
			)
			s.metrics.backendError()
			s.sendTo(agent, s.errorEnvelope(env.ID, "handoff_failed", err))
			return
		}

		target := s.registry.FindByType(agent.UserID, targetType)
		if target == nil {
			s.logger.Warn("handoff target not connected",
				"agent_id", agent.ID,
				"user_id", agent.UserID,
				"target_type", targetType,
			)
			s.sendTo(agent, s.errorEnvelope(env.ID, "handoff_failed", ErrAgentNotFound))
			return
		}

		delivery := NewEnvelope(TypeHandoffRequest, agent.ID, map[string]any{
			"fromAgentId":       agent.ID,
			"fromAgentType":     string(agent.Type),
			"targetAgentType":   string(targetType),
			"context":           env.Payload["context"],
			"reason":            env.payloadString("reason"),
			"originalMessageId": env.ID,
		})
		delivery.TargetAgent = target.ID
		delivery.RequiresAck = true
		s.sendTo(target, delivery)

		s.logger.Info("handoff delivered",
			"from_agent", agent.ID,
			"to_agent", target.ID,
			"target_type", targetType,
		)
		s.metrics.handoffDelivered()
	}()
}
