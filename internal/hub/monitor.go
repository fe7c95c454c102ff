// ABOUTME: Liveness monitor: periodic ping/pong sweep over every connection.
// ABOUTME: Agents silent past the timeout are evicted like a normal disconnect.

package hub

import (
	"context"
	"log/slog"
	"time"
)

// monitor drives the heartbeat sweep. On every tick each registered agent is
// either evicted (silent longer than the timeout) or pinged. Eviction reuses
// the normal disconnect path, so it is idempotent and peers are notified
// exactly once.
type monitor struct {
	svc      *Service
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func newMonitor(svc *Service, interval, timeout time.Duration, logger *slog.Logger) *monitor {
	return &monitor{
		svc:      svc,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("component", "monitor"),
	}
}

// run ticks until the context is cancelled.
func (m *monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// sweep performs one heartbeat pass. Exposed to tests via Service.Sweep so
// eviction behavior can be exercised without waiting on real ticks.
func (m *monitor) sweep(now time.Time) {
	for _, agent := range m.svc.registry.All() {
		silentFor := now.Sub(agent.LastHeartbeat())
		if silentFor > m.timeout {
			m.logger.Warn("evicting unresponsive agent",
				"agent_id", agent.ID,
				"agent_type", agent.Type,
				"silent_for", silentFor,
			)
			m.svc.Disconnect(agent.ID, "heartbeat timeout")
			m.svc.metrics.agentEvicted()
			continue
		}

		if err := agent.Ping(); err != nil {
			// A failed ping means the transport is already dying; the read
			// loop or the next sweep will finish the eviction.
			m.logger.Debug("ping failed", "agent_id", agent.ID, "error", err)
		}
	}
}

// Sweep runs a single monitor pass against the given clock reading.
func (s *Service) Sweep(now time.Time) {
	s.monitor.sweep(now)
}
