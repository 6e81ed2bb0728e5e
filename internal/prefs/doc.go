// Package prefs holds the per-user channel preference cache and its
// synchronization with durable storage.
//
// Three pieces:
//
//   - Record: pure in-memory per-user state (mute set, cooldown expiries,
//     missed-message counters, notification timestamps). No I/O, not
//     thread-safe on its own; the Manager serializes access.
//
//   - Gateway: asynchronous facade over storage.Store. Every operation
//     returns a Pending the caller may await. Load failures degrade to an
//     empty mute set; write failures are logged and the in-memory state
//     stays authoritative until the next save.
//
//   - Manager: owns the user id -> Record map. Mute/unmute/toggle mutate
//     the cached Record synchronously and mirror the change to the Gateway
//     without blocking the caller. Save/Unload/SaveAll block until the
//     durable state is reconciled (clear-then-rewrite).
package prefs
