// Package storage provides the durable mute-set store.
//
// One row per (user, channel) pair means "muted". Two backends:
//   - sqlite: single-file database (modernc.org/sqlite, no cgo)
//   - file:   JSON snapshot + append-only journal, dependency-free
package storage
