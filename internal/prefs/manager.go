package prefs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	logx "talkgroups/pkg/logx"
)

// Manager owns the user id -> Record map and is the only component allowed
// to touch a Record. Per-user operations are serialized by a per-entry
// mutex; operations for different users run concurrently.
//
// Session lifecycle per user: absent -> loading -> cached -> saving ->
// absent. Load is single-flight: concurrent loads for a not-yet-cached user
// trigger exactly one store read and all callers observe the same result.
type Manager struct {
	gw  *Gateway
	log logx.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	rec *Record

	// gen counts cache hits, guarded by Manager.mu. Unload snapshots it
	// before saving and skips eviction when it moved, so a session that
	// resumed mid-save keeps its hydrated Record.
	gen uint64

	// ready is closed once hydration has settled. Entries created by the
	// lazy-default path are born ready.
	ready chan struct{}
}

func NewManager(gw *Gateway, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		gw:      gw,
		log:     log,
		entries: map[string]*entry{},
	}
}

// Load hydrates the user's Record from the store and caches it. If already
// cached (or loading), it does not touch the Gateway again; it just waits
// for the existing entry to become ready.
func (m *Manager) Load(ctx context.Context, userID string) error {
	m.mu.Lock()
	e, ok := m.entries[userID]
	if !ok {
		e = &entry{rec: NewRecord(userID), ready: make(chan struct{})}
		m.entries[userID] = e
		m.mu.Unlock()

		res := m.gw.LoadMuted(userID)
		go func() {
			// The load settles even if the first caller gives up; late
			// arrivals still observe the hydrated result.
			set, _ := res.Wait(context.Background())
			e.mu.Lock()
			for ch := range set {
				e.rec.Mute(ch)
			}
			n := len(set)
			e.mu.Unlock()
			close(e.ready)
			if n > 0 {
				m.log.Debug("preferences hydrated",
					logx.String("user", userID), logx.Int("muted", n))
			}
		}()
	} else {
		e.gen++
		m.mu.Unlock()
	}

	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensure returns the cached entry, creating an empty ready one if absent.
// This is the lazy-default path: it never touches the Gateway, so a Record
// obtained this way is empty rather than hydrated.
func (m *Manager) ensure(userID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		e = &entry{rec: NewRecord(userID), ready: closedReady}
		m.entries[userID] = e
	} else {
		e.gen++
	}
	return e
}

var closedReady = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// with runs fn against the user's Record under the per-user lock, creating
// an empty Record if none is cached.
func (m *Manager) with(userID string, fn func(rec *Record)) {
	e := m.ensure(userID)
	e.mu.Lock()
	fn(e.rec)
	e.mu.Unlock()
}

// ---- Mutations (synchronous in memory, async to the store) ----

// Mute marks the channel muted in the cached Record and mirrors the change
// to the store in the background. The returned Pending settles when the
// write does; interactive callers drop it.
func (m *Manager) Mute(userID, channelID string) *Pending {
	m.with(userID, func(rec *Record) { rec.Mute(channelID) })
	return m.gw.AddMuted(userID, channelID)
}

// Unmute removes the mute and its notification state, mirroring the delete
// to the store in the background.
func (m *Manager) Unmute(userID, channelID string) *Pending {
	m.with(userID, func(rec *Record) { rec.Unmute(channelID) })
	return m.gw.RemoveMuted(userID, channelID)
}

// ToggleMute flips the mute state and issues the matching store write.
// Returns the new state (true = muted) together with the write's Pending.
func (m *Manager) ToggleMute(userID, channelID string) (bool, *Pending) {
	var muted bool
	m.with(userID, func(rec *Record) { muted = rec.ToggleMute(channelID) })
	if muted {
		return true, m.gw.AddMuted(userID, channelID)
	}
	return false, m.gw.RemoveMuted(userID, channelID)
}

// SetCooldown arms a send cooldown; seconds <= 0 is a no-op.
func (m *Manager) SetCooldown(userID, channelID string, seconds int, now time.Time) {
	m.with(userID, func(rec *Record) { rec.SetCooldown(channelID, seconds, now) })
}

// ClearCooldown drops a send cooldown.
func (m *Manager) ClearCooldown(userID, channelID string) {
	m.with(userID, func(rec *Record) { rec.ClearCooldown(channelID) })
}

// IncrementMissed bumps the suppressed-message counter.
func (m *Manager) IncrementMissed(userID, channelID string) {
	m.with(userID, func(rec *Record) { rec.IncrementMissed(channelID) })
}

// RecordNotified stamps the last missed-message notice time.
func (m *Manager) RecordNotified(userID, channelID string, now time.Time) {
	m.with(userID, func(rec *Record) { rec.RecordNotified(channelID, now) })
}

// ---- Queries ----

func (m *Manager) IsMuted(userID, channelID string) bool {
	var v bool
	m.with(userID, func(rec *Record) { v = rec.IsMuted(channelID) })
	return v
}

func (m *Manager) IsOnCooldown(userID, channelID string, now time.Time) bool {
	var v bool
	m.with(userID, func(rec *Record) { v = rec.IsOnCooldown(channelID, now) })
	return v
}

func (m *Manager) RemainingCooldown(userID, channelID string, now time.Time) int {
	var v int
	m.with(userID, func(rec *Record) { v = rec.RemainingCooldown(channelID, now) })
	return v
}

func (m *Manager) MissedMessages(userID, channelID string) int {
	var v int
	m.with(userID, func(rec *Record) { v = rec.MissedMessages(channelID) })
	return v
}

func (m *Manager) ShouldNotify(userID, channelID string, delaySeconds int, now time.Time) bool {
	var v bool
	m.with(userID, func(rec *Record) { v = rec.ShouldNotify(channelID, delaySeconds, now) })
	return v
}

func (m *Manager) TimeSinceLastNotification(userID, channelID string, now time.Time) (int, bool) {
	var (
		v  int
		ok bool
	)
	m.with(userID, func(rec *Record) { v, ok = rec.TimeSinceLastNotification(channelID, now) })
	return v, ok
}

// MutedChannels returns a sorted copy of the user's mute set. Creates an
// empty cached Record if the user is unknown (lazy default).
func (m *Manager) MutedChannels(userID string) []string {
	var v []string
	m.with(userID, func(rec *Record) { v = rec.MutedSnapshot() })
	return v
}

// CachedUsers lists every user id currently in the cache, sorted.
func (m *Manager) CachedUsers() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}

// Cached reports whether the user currently has a Record in the cache.
func (m *Manager) Cached(userID string) bool {
	m.mu.Lock()
	_, ok := m.entries[userID]
	m.mu.Unlock()
	return ok
}

// ---- Flush / lifecycle ----

// Save reconciles the user's durable mute set with the cached Record:
// clear every persisted row, then rewrite the current snapshot. The
// clear-then-rewrite order is deliberate; it collapses any drift left by
// out-of-order background writes into one consistent durable state.
// No-op success when the user is not cached.
func (m *Manager) Save(ctx context.Context, userID string) error {
	m.mu.Lock()
	e, ok := m.entries[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	snapshot := e.rec.MutedSnapshot()
	e.mu.Unlock()

	if err := m.gw.ClearMuted(userID).Wait(ctx); err != nil {
		return fmt.Errorf("clear muted for %s: %w", userID, err)
	}

	pendings := make([]*Pending, 0, len(snapshot))
	for _, ch := range snapshot {
		pendings = append(pendings, m.gw.AddMuted(userID, ch))
	}
	var errs []error
	for i, p := range pendings {
		if err := p.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("persist mute %s/%s: %w", userID, snapshot[i], err))
		}
	}
	return errors.Join(errs...)
}

// Unload saves the user's Record to completion, then evicts it from the
// cache. Eviction never happens before the save settles; a failed save is
// reported but the entry is still dropped, since the session is over.
// If the entry is accessed while the save is in flight (the user came back
// mid-unload), eviction is skipped entirely: the live session keeps its
// hydrated Record instead of falling back to an empty lazy default.
func (m *Manager) Unload(ctx context.Context, userID string) error {
	m.mu.Lock()
	e, ok := m.entries[userID]
	var gen uint64
	if ok {
		gen = e.gen
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	err := m.Save(ctx, userID)

	m.mu.Lock()
	if cur, live := m.entries[userID]; live && cur == e && cur.gen == gen {
		delete(m.entries, userID)
	} else {
		m.log.Debug("unload eviction skipped; session resumed",
			logx.String("user", userID))
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("preference save failed on unload",
			logx.String("user", userID), logx.Err(err))
		return err
	}
	return nil
}

// SaveAll flushes every cached user concurrently and waits for all saves to
// settle. Individual failures are joined into the returned error.
func (m *Manager) SaveAll(ctx context.Context) error {
	users := m.CachedUsers()
	if len(users) == 0 {
		return nil
	}

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, id := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.Save(ctx, id); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		m.log.Warn("bulk preference save finished with failures",
			logx.Int("users", len(users)), logx.Err(err))
	} else {
		m.log.Debug("bulk preference save complete", logx.Int("users", len(users)))
	}
	return err
}

// ClearCache drops every cached Record without persisting. Callers are
// expected to have awaited SaveAll first.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.entries = map[string]*entry{}
	m.mu.Unlock()
}
