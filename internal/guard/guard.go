// Package guard suppresses rapid duplicate callback actions per user. It is
// advisory single-process dedup, not a lock: missing a duplicate is
// acceptable, dropping a genuinely new action is not.
package guard

import (
	"sync"
	"time"
)

// DefaultWindow matches the observed double-click suppression span.
const DefaultWindow = 2 * time.Second

type entry struct {
	seenAt time.Time
}

// Guard rejects a repeated (user, action) pair inside the window.
type Guard struct {
	window time.Duration
	now    func() time.Time

	mu sync.Mutex
	m  map[key]entry
}

type key struct {
	userID int64
	action string
}

// New creates a Guard with the given window; window <= 0 selects DefaultWindow.
func New(window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{
		window: window,
		now:    time.Now,
		m:      make(map[key]entry),
	}
}

// ShouldProcess reports whether this (user, action) should be handled.
// A duplicate inside the window returns false without refreshing the stored
// timestamp, so a burst of clicks is suppressed as a whole. An accepted call
// records now and arms a cleanup that deletes the entry only if it is still
// the one this call wrote.
func (g *Guard) ShouldProcess(userID int64, action string) bool {
	k := key{userID: userID, action: action}
	now := g.now()

	g.mu.Lock()
	if prev, ok := g.m[k]; ok && now.Sub(prev.seenAt) < g.window {
		g.mu.Unlock()
		return false
	}
	g.m[k] = entry{seenAt: now}
	g.mu.Unlock()

	time.AfterFunc(2*g.window, func() {
		g.mu.Lock()
		// Delete only if unchanged: a newer accepted call owns the entry now.
		if cur, ok := g.m[k]; ok && cur.seenAt.Equal(now) {
			delete(g.m, k)
		}
		g.mu.Unlock()
	})

	return true
}

// Len reports the number of tracked entries.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
