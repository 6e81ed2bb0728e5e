// Package transport defines the chat-platform-agnostic message types and
// the adapter interface the rest of the system talks to.
package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	DisablePreview bool
}

// Adapter is a platform connector. Start delivers incoming updates on out
// until ctx is cancelled or Stop is called; sends must be safe to call
// concurrently.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}
