// Package logx wraps zerolog behind a small structured-logging API.
//
// The zero value of Logger is a safe no-op; components accept a Logger by
// value and never need nil checks.
package logx
