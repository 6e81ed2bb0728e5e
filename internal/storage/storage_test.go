package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	logx "talkgroups/pkg/logx"
)

func openDriver(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	if st == nil {
		t.Fatalf("Open(%s) returned nil store", driver)
	}
	return st
}

func mutedSorted(t *testing.T, st Store, userID string) []string {
	t.Helper()
	set, err := st.LoadMuted(context.Background(), userID)
	if err != nil {
		t.Fatalf("LoadMuted(%s): %v", userID, err)
	}
	out := make([]string, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"sqlite", "file"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openDriver(t, driver, filepath.Join(t.TempDir(), "prefs.db"))
			defer st.Close()

			if err := st.AddMuted(ctx, "u1", "general"); err != nil {
				t.Fatal(err)
			}
			if err := st.AddMuted(ctx, "u1", "trade"); err != nil {
				t.Fatal(err)
			}
			// Duplicate add must be idempotent.
			if err := st.AddMuted(ctx, "u1", "general"); err != nil {
				t.Fatal(err)
			}
			if err := st.AddMuted(ctx, "u2", "help"); err != nil {
				t.Fatal(err)
			}

			if got, want := mutedSorted(t, st, "u1"), []string{"general", "trade"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("u1 = %v, want %v", got, want)
			}

			if err := st.RemoveMuted(ctx, "u1", "trade"); err != nil {
				t.Fatal(err)
			}
			// Removing an absent row is a no-op.
			if err := st.RemoveMuted(ctx, "u1", "missing"); err != nil {
				t.Fatal(err)
			}
			if got, want := mutedSorted(t, st, "u1"), []string{"general"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("u1 = %v, want %v", got, want)
			}

			if err := st.ClearMuted(ctx, "u2"); err != nil {
				t.Fatal(err)
			}
			if got := mutedSorted(t, st, "u2"); len(got) != 0 {
				t.Fatalf("u2 = %v, want empty after clear", got)
			}
			if got := mutedSorted(t, st, "nobody"); len(got) != 0 {
				t.Fatalf("unknown user = %v, want empty", got)
			}
		})
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"sqlite", "file"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "prefs.db")

			st := openDriver(t, driver, path)
			if err := st.AddMuted(ctx, "u1", "general"); err != nil {
				t.Fatal(err)
			}
			if err := st.AddMuted(ctx, "u1", "trade"); err != nil {
				t.Fatal(err)
			}
			if err := st.RemoveMuted(ctx, "u1", "trade"); err != nil {
				t.Fatal(err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			st = openDriver(t, driver, path)
			defer st.Close()
			if got, want := mutedSorted(t, st, "u1"), []string{"general"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("after reopen u1 = %v, want %v", got, want)
			}
		})
	}
}

func TestFileStoreReplaysJournalWithoutClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	st := openDriver(t, "file", path)
	if err := st.AddMuted(ctx, "u1", "general"); err != nil {
		t.Fatal(err)
	}
	if err := st.ClearMuted(ctx, "u2"); err != nil {
		t.Fatal(err)
	}

	// Open a second store over the same files without closing the first:
	// the journal has not been compacted, so state must come from replay.
	st2 := openDriver(t, "file", path)
	defer st2.Close()
	if got, want := mutedSorted(t, st2, "u1"), []string{"general"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("replayed u1 = %v, want %v", got, want)
	}
	_ = st.Close()
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) = %T, want nil", driver, st)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
