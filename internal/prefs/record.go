package prefs

import (
	"sort"
	"time"
)

// Record is the in-memory preference state for one user. All methods are
// synchronous and allocation-light so they can run on latency-sensitive
// paths. Callers must serialize access; the Manager does this per user.
type Record struct {
	userID string

	muted          map[string]struct{}
	cooldownExpiry map[string]time.Time
	missed         map[string]int
	lastNotified   map[string]time.Time
}

// NewRecord returns an empty Record for the given user.
func NewRecord(userID string) *Record {
	return &Record{
		userID:         userID,
		muted:          map[string]struct{}{},
		cooldownExpiry: map[string]time.Time{},
		missed:         map[string]int{},
		lastNotified:   map[string]time.Time{},
	}
}

func (r *Record) UserID() string { return r.userID }

// IsMuted reports whether the user has muted the channel.
func (r *Record) IsMuted(channelID string) bool {
	_, ok := r.muted[channelID]
	return ok
}

// Mute adds the channel to the mute set. Idempotent.
func (r *Record) Mute(channelID string) {
	r.muted[channelID] = struct{}{}
}

// Unmute removes the channel from the mute set and discards its missed
// counter and notification timestamp: notification state does not survive
// an unmute/mute cycle. Idempotent.
func (r *Record) Unmute(channelID string) {
	delete(r.muted, channelID)
	delete(r.missed, channelID)
	delete(r.lastNotified, channelID)
}

// ToggleMute flips the mute state and returns the new state (true = muted).
func (r *Record) ToggleMute(channelID string) bool {
	if r.IsMuted(channelID) {
		r.Unmute(channelID)
		return false
	}
	r.Mute(channelID)
	return true
}

// IsOnCooldown reports whether the channel's cooldown expiry is strictly
// after now. Expired entries are pruned lazily; the time comparison is the
// source of truth, not cleanup timing.
func (r *Record) IsOnCooldown(channelID string, now time.Time) bool {
	expiry, ok := r.cooldownExpiry[channelID]
	if !ok {
		return false
	}
	if !now.Before(expiry) {
		delete(r.cooldownExpiry, channelID)
		return false
	}
	return true
}

// RemainingCooldown returns the whole seconds left on the channel cooldown,
// floored, or 0 if absent or expired.
func (r *Record) RemainingCooldown(channelID string, now time.Time) int {
	expiry, ok := r.cooldownExpiry[channelID]
	if !ok {
		return 0
	}
	rem := expiry.Sub(now)
	if rem <= 0 {
		return 0
	}
	return int(rem / time.Second)
}

// SetCooldown arms the channel cooldown for the given number of seconds.
// seconds <= 0 is a no-op: no entry is created or cleared.
func (r *Record) SetCooldown(channelID string, seconds int, now time.Time) {
	if seconds <= 0 {
		return
	}
	r.cooldownExpiry[channelID] = now.Add(time.Duration(seconds) * time.Second)
}

// ClearCooldown drops the channel cooldown, if any.
func (r *Record) ClearCooldown(channelID string) {
	delete(r.cooldownExpiry, channelID)
}

// IncrementMissed bumps the suppressed-message counter for the channel.
func (r *Record) IncrementMissed(channelID string) {
	r.missed[channelID]++
}

// MissedMessages returns the suppressed-message count for the channel.
func (r *Record) MissedMessages(channelID string) int {
	return r.missed[channelID]
}

// ShouldNotify reports whether a missed-message notice is due: true if the
// user was never notified for the channel, or if at least delaySeconds have
// passed since the last notice.
func (r *Record) ShouldNotify(channelID string, delaySeconds int, now time.Time) bool {
	last, ok := r.lastNotified[channelID]
	if !ok {
		return true
	}
	return now.Sub(last) >= time.Duration(delaySeconds)*time.Second
}

// RecordNotified stamps the last notification time for the channel. The
// missed counter keeps accumulating; it resets only on unmute.
func (r *Record) RecordNotified(channelID string, now time.Time) {
	r.lastNotified[channelID] = now
}

// TimeSinceLastNotification returns whole seconds since the last notice for
// the channel and whether one was ever sent. The seconds alone cannot
// distinguish "never notified" from "notified under a second ago".
func (r *Record) TimeSinceLastNotification(channelID string, now time.Time) (int, bool) {
	last, ok := r.lastNotified[channelID]
	if !ok {
		return 0, false
	}
	since := now.Sub(last)
	if since < 0 {
		return 0, true
	}
	return int(since / time.Second), true
}

// MutedSnapshot returns a sorted copy of the mute set, never a live
// reference. Used for persistence and listings.
func (r *Record) MutedSnapshot() []string {
	out := make([]string, 0, len(r.muted))
	for ch := range r.muted {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}
