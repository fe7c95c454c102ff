// ABOUTME: Context synchronizer: last-writer-wins shared context per user.
// ABOUTME: Stores through the backend, then fans the update out to peers.

package hub

// syncContext handles a context_sync envelope: the full payload replaces the
// authoritative shared context at the backend, then the same payload is
// broadcast to every other active agent of the user. Each accepted update
// fully replaces the prior value; there is no merge.
func (s *Service) syncContext(agent *ConnectedAgent, env *Envelope) {
	go func() {
		ctx, cancel := s.backendCtx()
		defer cancel()

		if err := s.backend.StoreContext(ctx, agent.UserID, agent.ID, env.Payload); err != nil {
			s.logger.Warn("shared context store failed",
				"agent_id", agent.ID,
				"user_id", agent.UserID,
				"error", err,
			)
			s.metrics.backendError()
			s.sendTo(agent, s.errorEnvelope(env.ID, "context_sync_failed", err))
			return
		}

		s.broadcast(agent.UserID, agent.ID, NewEnvelope(TypeContextSync, agent.ID, env.Payload))
	}()
}

// fetchContext loads the current shared context for a welcome payload. A
// backend failure degrades to an empty context rather than refusing the
// connection; late joiners will converge on the next context_sync broadcast.
func (s *Service) fetchContext(userID string) map[string]any {
	ctx, cancel := s.backendCtx()
	defer cancel()

	shared, err := s.backend.FetchContext(ctx, userID)
	if err != nil {
		s.logger.Warn("shared context fetch failed", "user_id", userID, "error", err)
		s.metrics.backendError()
		return map[string]any{}
	}
	if shared == nil || shared.Values == nil {
		return map[string]any{}
	}
	return shared.Values
}
