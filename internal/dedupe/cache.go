// ABOUTME: TTL- and size-bounded cache of recently seen envelope ids.
// ABOUTME: Lets the router drop replays from agents that reconnect and resend.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

const cleanupInterval = time.Minute

// entry pairs a key's last-seen time with its position in the age list.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers keys for a TTL, holding at most maxSize of them. When full,
// the oldest key is evicted first. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	age     *list.List // keys, oldest at the front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts its background expiry goroutine.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		age:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.expireLoop()
	return c
}

// Seen atomically reports whether key was observed within the TTL, marking it
// observed either way. The single lock round-trip avoids the check-then-mark
// race a separate pair of calls would have.
func (c *Cache) Seen(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		fresh := now.Sub(e.seenAt) < c.ttl
		e.seenAt = now
		c.age.MoveToBack(e.element)
		return fresh
	}

	if len(c.entries) >= c.maxSize {
		if front := c.age.Front(); front != nil {
			oldest, _ := front.Value.(string)
			c.age.Remove(front)
			delete(c.entries, oldest)
		}
	}

	c.entries[key] = &entry{seenAt: now, element: c.age.PushBack(key)}
	return false
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// expireLoop periodically drops keys older than the TTL.
func (c *Cache) expireLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.expire(time.Now())
		}
	}
}

func (c *Cache) expire(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for front := c.age.Front(); front != nil; {
		key, _ := front.Value.(string)
		e := c.entries[key]
		if e == nil || now.Sub(e.seenAt) <= c.ttl {
			break
		}
		next := front.Next()
		c.age.Remove(front)
		delete(c.entries, key)
		front = next
	}
}

// Close stops the expiry goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
