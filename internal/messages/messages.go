// Package messages renders user-facing text from templated strings with
// {placeholder} substitution. Templates ship with defaults and can be
// overridden per key from the config file.
package messages

import (
	"fmt"
	"strings"
	"sync"
)

var defaults = map[string]string{
	"command.no-permission":       "You don't have access to {channel}.",
	"command.unknown-channel":     "Unknown channel: {channel}.",
	"command.not-silencable":      "{channel} cannot be muted.",
	"command.cooldown":            "You must wait {seconds}s before sending to {channel} again.",
	"command.alias.usage":         "Usage: /{alias} <message>",
	"command.muted":               "Muted {channel}. You'll get a summary of what you miss.",
	"command.unmuted":             "Unmuted {channel}.",
	"command.channels.header":     "Channels:",
	"command.channels.entry":      "{prefix} /{alias} — {state}",
	"command.channels.state-on":   "receiving",
	"command.channels.state-off":  "muted",
	"command.unknown":             "Unknown command. Try /channels.",
	"channel.format":              "{prefix} {sender}: {message}{suffix}",
	"channel.notification":        "You missed {count} message(s) in {channel} (last notice {time} ago).",
	"channel.notification.first":  "You missed {count} message(s) in {channel}.",
}

// Catalog resolves message keys to rendered text. Overrides can be swapped
// at runtime on config reload.
type Catalog struct {
	mu        sync.RWMutex
	overrides map[string]string
}

func NewCatalog(overrides map[string]string) *Catalog {
	return &Catalog{overrides: overrides}
}

// Update replaces the override set (config reload).
func (c *Catalog) Update(overrides map[string]string) {
	c.mu.Lock()
	c.overrides = overrides
	c.mu.Unlock()
}

// Get returns the raw template for key; the key itself when unknown, so a
// missing template is visible instead of silently blank.
func (c *Catalog) Get(key string) string {
	c.mu.RLock()
	v, ok := c.overrides[key]
	c.mu.RUnlock()
	if ok {
		return v
	}
	if v, ok := defaults[key]; ok {
		return v
	}
	return key
}

// Render substitutes {name} placeholders from name/value pairs.
func (c *Catalog) Render(key string, pairs ...string) string {
	msg := c.Get(key)
	for i := 0; i+1 < len(pairs); i += 2 {
		msg = strings.ReplaceAll(msg, "{"+pairs[i]+"}", pairs[i+1])
	}
	return msg
}

// FormatSeconds renders a duration in whole seconds as short readable text.
func FormatSeconds(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d second%s", seconds, plural(seconds))
	}
	minutes := seconds / 60
	return fmt.Sprintf("%d minute%s", minutes, plural(minutes))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
