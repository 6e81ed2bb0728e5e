package channel

import (
	"strings"
	"testing"
)

func validSpec() Spec {
	return Spec{
		Name:       "Global",
		Permission: "channel.global",
		Cooldown:   30,
		Silencable: true,
		Notify:     true,
		Alias:      "g",
	}
}

func TestNewDefinitionValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		id      string
		mutate  func(*Spec)
		wantErr string
	}{
		{name: "valid", id: "global", mutate: func(s *Spec) {}},
		{name: "empty id", id: "  ", mutate: func(s *Spec) {}, wantErr: "id is empty"},
		{name: "empty name", id: "global", mutate: func(s *Spec) { s.Name = "" }, wantErr: "name is empty"},
		{name: "empty permission", id: "global", mutate: func(s *Spec) { s.Permission = " " }, wantErr: "permission is empty"},
		{name: "empty alias", id: "global", mutate: func(s *Spec) { s.Alias = "" }, wantErr: "alias is empty"},
		{name: "negative cooldown", id: "global", mutate: func(s *Spec) { s.Cooldown = -1 }, wantErr: "cooldown"},
		{name: "negative notify delay", id: "global", mutate: func(s *Spec) { s.NotifyDelay = -5 }, wantErr: "notify_delay"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := validSpec()
			tt.mutate(&spec)
			def, err := NewDefinition(tt.id, spec)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewDefinition: %v", err)
				}
				if def.ID != "global" {
					t.Fatalf("ID = %q", def.ID)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewDefinitionPrefixDefaultsToName(t *testing.T) {
	t.Parallel()
	spec := validSpec()
	spec.Prefix = ""
	def, err := NewDefinition("global", spec)
	if err != nil {
		t.Fatal(err)
	}
	if def.Prefix != "Global" {
		t.Fatalf("Prefix = %q, want name fallback", def.Prefix)
	}

	spec.Prefix = "[G] "
	def, err = NewDefinition("global", spec)
	if err != nil {
		t.Fatal(err)
	}
	if def.Prefix != "[G] " {
		t.Fatalf("Prefix = %q, want explicit value kept", def.Prefix)
	}
}

func TestRegistryLookups(t *testing.T) {
	t.Parallel()
	r, err := NewRegistry(map[string]Spec{
		"global": {Name: "Global", Permission: "channel.global", Alias: "G"},
		"trade":  {Name: "Trade", Permission: "channel.trade", Alias: "tr"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	if _, ok := r.ByID("global"); !ok {
		t.Fatal("ByID(global) missing")
	}
	if _, ok := r.ByID("nope"); ok {
		t.Fatal("ByID(nope) should miss")
	}

	// Alias lookup is case-insensitive and trims whitespace.
	for _, alias := range []string{"g", "G", " g "} {
		def, ok := r.ByAlias(alias)
		if !ok || def.ID != "global" {
			t.Fatalf("ByAlias(%q) = (%v, %v)", alias, def.ID, ok)
		}
	}

	all := r.All()
	if len(all) != 2 || all[0].ID != "global" || all[1].ID != "trade" {
		t.Fatalf("All() order = %v", all)
	}
}

func TestRegistryRejectsDuplicateAlias(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry(map[string]Spec{
		"global": {Name: "Global", Permission: "channel.global", Alias: "g"},
		"gang":   {Name: "Gang", Permission: "channel.gang", Alias: "G"},
	})
	if err == nil {
		t.Fatal("expected duplicate alias error")
	}
	if !strings.Contains(err.Error(), "alias") {
		t.Fatalf("err = %q", err)
	}
}

func TestProviderSwap(t *testing.T) {
	t.Parallel()
	r1, err := NewRegistry(map[string]Spec{
		"global": {Name: "Global", Permission: "channel.global", Alias: "g"},
	})
	if err != nil {
		t.Fatal(err)
	}
	p := NewProvider(r1)
	if p.Current().Len() != 1 {
		t.Fatal("initial registry not served")
	}

	r2, err := NewRegistry(map[string]Spec{
		"global": {Name: "Global", Permission: "channel.global", Alias: "g"},
		"trade":  {Name: "Trade", Permission: "channel.trade", Alias: "tr"},
	})
	if err != nil {
		t.Fatal(err)
	}
	p.Swap(r2)
	if p.Current().Len() != 2 {
		t.Fatal("swap not visible")
	}

	// A nil swap keeps the current registry.
	p.Swap(nil)
	if p.Current().Len() != 2 {
		t.Fatal("nil swap clobbered the registry")
	}
}
