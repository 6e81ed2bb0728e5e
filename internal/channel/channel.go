package channel

import (
	"errors"
	"fmt"
	"strings"
)

// Spec is the raw, config-shaped description of a channel. It is validated
// exactly once by NewDefinition; a Definition never exists half-built.
type Spec struct {
	Name        string
	Permission  string
	Cooldown    int // seconds between sends per user; 0 disables
	Silencable  bool
	Notify      bool
	NotifyDelay int // seconds between missed-message notices; 0 means every time
	Alias       string
	Prefix      string
	Suffix      string
}

// Definition is an immutable channel description. Fields are exported for
// reads only; construct via NewDefinition.
type Definition struct {
	ID          string
	Name        string
	Permission  string
	Cooldown    int
	Silencable  bool
	Notify      bool
	NotifyDelay int
	Alias       string
	Prefix      string
	Suffix      string
}

// NewDefinition validates a Spec and returns the immutable Definition.
// Prefix defaults to the display name when omitted.
func NewDefinition(id string, spec Spec) (Definition, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Definition{}, errors.New("channel id is empty")
	}
	if strings.TrimSpace(spec.Name) == "" {
		return Definition{}, fmt.Errorf("channel %q: name is empty", id)
	}
	if strings.TrimSpace(spec.Permission) == "" {
		return Definition{}, fmt.Errorf("channel %q: permission is empty", id)
	}
	if strings.TrimSpace(spec.Alias) == "" {
		return Definition{}, fmt.Errorf("channel %q: alias is empty", id)
	}
	if spec.Cooldown < 0 {
		return Definition{}, fmt.Errorf("channel %q: cooldown must be >= 0, got %d", id, spec.Cooldown)
	}
	if spec.NotifyDelay < 0 {
		return Definition{}, fmt.Errorf("channel %q: notify_delay must be >= 0, got %d", id, spec.NotifyDelay)
	}

	prefix := spec.Prefix
	if strings.TrimSpace(prefix) == "" {
		prefix = spec.Name
	}

	return Definition{
		ID:          id,
		Name:        spec.Name,
		Permission:  strings.TrimSpace(spec.Permission),
		Cooldown:    spec.Cooldown,
		Silencable:  spec.Silencable,
		Notify:      spec.Notify,
		NotifyDelay: spec.NotifyDelay,
		Alias:       strings.TrimSpace(spec.Alias),
		Prefix:      prefix,
		Suffix:      spec.Suffix,
	}, nil
}
