package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return NewManager(path)
}

const sampleYAML = `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: /tmp/prefs.db
  busy_timeout: "5s"
session:
  idle_timeout: "15m"
channels:
  global:
    name: Global
    cooldown: 30
    notify: true
    alias: g
    prefix: "[G] "
  staff:
    permission: staff.chat
    silencable: false
grants:
  "100":
    - "*"
messages:
  command.unknown: "Nope."
`

func TestParseFullConfig(t *testing.T) {
	t.Parallel()
	cfg, err := writeConfig(t, sampleYAML).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := cfg.Grants["100"]; len(got) != 1 || got[0] != "*" {
		t.Fatalf("grants = %v", cfg.Grants)
	}
	if cfg.Messages["command.unknown"] != "Nope." {
		t.Fatalf("messages = %v", cfg.Messages)
	}

	specs := cfg.ChannelSpecs()
	global := specs["global"]
	if global.Name != "Global" || global.Alias != "g" || global.Cooldown != 30 {
		t.Fatalf("global spec = %+v", global)
	}
	if global.Permission != "channel.global" {
		t.Fatalf("global permission = %q, want derived default", global.Permission)
	}
	if !global.Silencable || global.NotifyDelay != 60 {
		t.Fatalf("global defaults = %+v", global)
	}

	staff := specs["staff"]
	if staff.Name != "staff" || staff.Alias != "staff" {
		t.Fatalf("staff defaults = %+v", staff)
	}
	if staff.Permission != "staff.chat" {
		t.Fatalf("staff permission = %q, want explicit value kept", staff.Permission)
	}
	if staff.Silencable {
		t.Fatal("staff silencable = true, want explicit false kept")
	}

	reg, err := cfg.BuildRegistry()
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("registry len = %d", reg.Len())
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	t.Parallel()
	_, err := writeConfig(t, `
telegram:
  token: "123:abc"
  tokne_typo: "oops"
channels: {}
`).Parse()
	if err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Parallel()
	_, err := writeConfig(t, `
telegram:
  token: "123:abc"
  poll_timeout: "ten seconds"
channels: {}
`).Parse()
	if err == nil || !strings.Contains(err.Error(), "duration") {
		t.Fatalf("err = %v, want duration error", err)
	}
}

func TestParseRejectsDuplicateAlias(t *testing.T) {
	t.Parallel()
	_, err := writeConfig(t, `
telegram:
  token: "t"
channels:
  global:
    alias: g
  gang:
    alias: G
`).Parse()
	if err == nil || !strings.Contains(err.Error(), "alias") {
		t.Fatalf("err = %v, want duplicate alias error", err)
	}
}

func TestLoadCommitsSnapshot(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, sampleYAML)
	if m.Get() != nil {
		t.Fatal("Get before Load should be nil")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit the parsed snapshot")
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, sampleYAML)
	sub := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-sub:
		if got != cfg {
			t.Fatal("wrong snapshot published")
		}
	case <-time.After(time.Second):
		t.Fatal("publish did not reach subscriber")
	}

	// A saturated subscriber gets the newest snapshot, not the stale one.
	stale, fresh := &Config{}, &Config{}
	m.publish(stale)
	m.publish(fresh)
	if got := <-sub; got != fresh {
		t.Fatal("stale snapshot not dropped")
	}

	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("subscriber channel not closed")
	}
}

func TestDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"10s", 10 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := DurationField("field", tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("DurationField(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("DurationField(%q) = (%v, %v), want %v", tt.raw, got, err, tt.want)
		}
	}
}

func TestDurationOrDefault(t *testing.T) {
	t.Parallel()
	if got, err := DurationOrDefault("f", "", 30*time.Minute); err != nil || got != 30*time.Minute {
		t.Fatalf("empty = (%v, %v)", got, err)
	}
	if got, err := DurationOrDefault("f", "45s", 30*time.Minute); err != nil || got != 45*time.Second {
		t.Fatalf("explicit = (%v, %v)", got, err)
	}
}
