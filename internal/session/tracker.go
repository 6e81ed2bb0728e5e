// Package session tracks which users are currently active. A session opens
// on a user's first update and closes on idle timeout or shutdown; it bounds
// the lifetime of the user's cached preference Record and defines the
// recipient set for channel broadcasts.
package session

import (
	"sort"
	"sync"
	"time"

	"talkgroups/internal/transport"
)

type Info struct {
	UserID   string
	Username string
	Target   transport.ChatTarget
	LastSeen time.Time
}

type Tracker struct {
	mu     sync.Mutex
	byUser map[string]*Info
}

func NewTracker() *Tracker {
	return &Tracker{byUser: map[string]*Info{}}
}

// Touch records activity for a user, opening a session if none exists.
// Returns true when this is the first activity of a new session.
func (t *Tracker) Touch(userID, username string, target transport.ChatTarget, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.byUser[userID]
	if !ok {
		t.byUser[userID] = &Info{UserID: userID, Username: username, Target: target, LastSeen: now}
		return true
	}
	info.Username = username
	info.Target = target
	info.LastSeen = now
	return false
}

// Active returns a snapshot of every open session, sorted by user id.
func (t *Tracker) Active() []Info {
	t.mu.Lock()
	out := make([]Info, 0, len(t.byUser))
	for _, info := range t.byUser {
		out = append(out, *info)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// IdleBefore returns the user ids whose last activity is before cutoff.
func (t *Tracker) IdleBefore(cutoff time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for id, info := range t.byUser {
		if info.LastSeen.Before(cutoff) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// RemoveIfIdleBefore closes the session only if its last activity is still
// before cutoff, so a user active again since the idle scan is kept open.
// Reports whether the session was removed.
func (t *Tracker) RemoveIfIdleBefore(userID string, cutoff time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.byUser[userID]
	if !ok || !info.LastSeen.Before(cutoff) {
		return false
	}
	delete(t.byUser, userID)
	return true
}

// Remove closes a session. No-op if absent.
func (t *Tracker) Remove(userID string) {
	t.mu.Lock()
	delete(t.byUser, userID)
	t.mu.Unlock()
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byUser)
}
