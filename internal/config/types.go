package config

import (
	"fmt"

	"talkgroups/internal/channel"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Storage controls the durable mute-set store. Omitted means
	// memory-only (mute sets do not survive restarts).
	Storage *StorageConfig `json:"storage,omitempty"`

	// Persistence tunes the async store facade. Workers defaults to 1,
	// which keeps writes in issue order.
	Persistence PersistenceConfig `json:"persistence,omitempty"`

	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Session   SessionConfig   `json:"session,omitempty"`

	// Channels defines the broadcast groups, keyed by channel id.
	Channels map[string]ChannelConfig `json:"channels"`

	// Grants maps user ids to capability tokens ("*" grants everything).
	Grants map[string][]string `json:"grants,omitempty"`

	// Messages overrides user-facing text templates per key.
	Messages map[string]string `json:"messages,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type PersistenceConfig struct {
	Workers   int    `json:"workers,omitempty"`
	QueueSize int    `json:"queue_size,omitempty"`
	OpTimeout string `json:"op_timeout,omitempty"` // Go duration string
}

type BroadcastConfig struct {
	Workers    int `json:"workers,omitempty"`
	QueueSize  int `json:"queue_size,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}

// SessionConfig bounds preference-cache lifetimes.
//
// Defaults (when fields are omitted):
//   - idle_timeout: "30m" (session closes, preferences flushed + evicted)
//   - sweep_every: "1m"
//   - autosave_every: "5m" (periodic SaveAll of every cached user)
type SessionConfig struct {
	IdleTimeout   string `json:"idle_timeout,omitempty"`
	SweepEvery    string `json:"sweep_every,omitempty"`
	AutosaveEvery string `json:"autosave_every,omitempty"`
}

// ChannelConfig is the raw channel definition. Defaults mirror what a
// missing key means:
//   - name: the channel id
//   - permission: "channel.<id>"
//   - alias: the channel id
//   - silencable: true
//   - notify_delay: 60
type ChannelConfig struct {
	Name        string `json:"name,omitempty"`
	Permission  string `json:"permission,omitempty"`
	Cooldown    int    `json:"cooldown,omitempty"`
	Silencable  *bool  `json:"silencable,omitempty"`
	Notify      bool   `json:"notify,omitempty"`
	NotifyDelay *int   `json:"notify_delay,omitempty"`
	Alias       string `json:"alias,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
	Suffix      string `json:"suffix,omitempty"`
}

// ChannelSpecs applies defaults and returns validatable channel specs.
func (c *Config) ChannelSpecs() map[string]channel.Spec {
	out := make(map[string]channel.Spec, len(c.Channels))
	for id, cc := range c.Channels {
		spec := channel.Spec{
			Name:        cc.Name,
			Permission:  cc.Permission,
			Cooldown:    cc.Cooldown,
			Silencable:  true,
			Notify:      cc.Notify,
			NotifyDelay: 60,
			Alias:       cc.Alias,
			Prefix:      cc.Prefix,
			Suffix:      cc.Suffix,
		}
		if spec.Name == "" {
			spec.Name = id
		}
		if spec.Permission == "" {
			spec.Permission = "channel." + id
		}
		if spec.Alias == "" {
			spec.Alias = id
		}
		if cc.Silencable != nil {
			spec.Silencable = *cc.Silencable
		}
		if cc.NotifyDelay != nil {
			spec.NotifyDelay = *cc.NotifyDelay
		}
		out[id] = spec
	}
	return out
}

// BuildRegistry validates the channel section and builds the registry.
func (c *Config) BuildRegistry() (*channel.Registry, error) {
	reg, err := channel.NewRegistry(c.ChannelSpecs())
	if err != nil {
		return nil, fmt.Errorf("channels: %w", err)
	}
	return reg, nil
}

// Validate checks everything a reload must reject before committing.
func (c *Config) Validate() error {
	if _, err := c.BuildRegistry(); err != nil {
		return err
	}
	for _, raw := range []string{
		c.Telegram.PollTimeout,
		c.Persistence.OpTimeout,
		c.Session.IdleTimeout,
		c.Session.SweepEvery,
		c.Session.AutosaveEvery,
	} {
		if _, err := DurationField("config", raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		if _, err := DurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
