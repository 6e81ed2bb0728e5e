package broadcast

import (
	"time"

	"talkgroups/internal/channel"
	"talkgroups/internal/transport"
)

type Config struct {
	Workers    int
	QueueSize  int
	RatePerSec int
	RetryMax   int
}

// Recipient is one delivery target resolved by the caller. The caller has
// already checked the channel permission; this service only applies the
// per-user mute/notification decisions.
type Recipient struct {
	UserID string
	Target transport.ChatTarget
}

// Message is one channel post to fan out.
type Message struct {
	Channel    channel.Definition
	SenderID   string
	SenderName string
	Text       string
	Recipients []Recipient

	// At is the decision instant for mute/notify checks. Zero means the
	// time of delivery.
	At time.Time
}
