// ABOUTME: Bounded per-user envelope history kept for the life of the process.
// ABOUTME: Used by the diagnostics API; oldest entries are dropped at the cap.

package hub

import "sync"

// DefaultHistoryLimit caps the per-user envelope history when no limit is
// configured.
const DefaultHistoryLimit = 256

// History is an append-only record of routed envelopes per user, capped at a
// fixed number of most-recent entries. It exists for diagnostics only and is
// never a delivery queue.
type History struct {
	mu     sync.RWMutex
	limit  int
	byUser map[string][]*Envelope
}

// NewHistory creates a history with the given per-user cap. A non-positive
// limit falls back to DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit:  limit,
		byUser: make(map[string][]*Envelope),
	}
}

// Append records an envelope for a user, evicting the oldest entry when the
// cap is reached.
func (h *History) Append(userID string, env *Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := append(h.byUser[userID], env)
	if len(entries) > h.limit {
		entries = entries[len(entries)-h.limit:]
	}
	h.byUser[userID] = entries
}

// ForUser returns a copy of the recorded envelopes for a user, oldest first.
func (h *History) ForUser(userID string) []*Envelope {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.byUser[userID]
	out := make([]*Envelope, len(entries))
	copy(out, entries)
	return out
}

// Len returns the number of recorded envelopes for a user.
func (h *History) Len(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}
