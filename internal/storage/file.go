package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "talkgroups/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.muted.snapshot.json (map of user id -> muted channel ids)
//   - <prefix>.muted.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File
	muted        map[string]map[string]struct{}

	writes int
}

const compactEvery = 1000

type journalRecord struct {
	Op      string `json:"op"` // "add", "del", "clear"
	User    string `json:"user"`
	Channel string `json:"channel,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".muted.snapshot.json"
	journalPath := prefix + ".muted.journal.jsonl"

	muted := map[string]map[string]struct{}{}
	_ = loadSnapshot(snapPath, muted)
	_ = replayJournal(journalPath, muted)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		muted:        muted,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	// Final compact so restarts load from a clean snapshot.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("final compact failed", logx.Err(err))
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) LoadMuted(ctx context.Context, userID string) (map[string]struct{}, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]struct{}{}
	for ch := range s.muted[userID] {
		out[ch] = struct{}{}
	}
	return out, nil
}

func (s *fileStore) AddMuted(ctx context.Context, userID, channelID string) error {
	_ = ctx
	if userID == "" || channelID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.muted[userID]
	if set == nil {
		set = map[string]struct{}{}
		s.muted[userID] = set
	}
	set[channelID] = struct{}{}
	return s.appendLocked(journalRecord{Op: "add", User: userID, Channel: channelID})
}

func (s *fileStore) RemoveMuted(ctx context.Context, userID, channelID string) error {
	_ = ctx
	if userID == "" || channelID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if set := s.muted[userID]; set != nil {
		delete(set, channelID)
		if len(set) == 0 {
			delete(s.muted, userID)
		}
	}
	return s.appendLocked(journalRecord{Op: "del", User: userID, Channel: channelID})
}

func (s *fileStore) ClearMuted(ctx context.Context, userID string) error {
	_ = ctx
	if userID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.muted, userID)
	return s.appendLocked(journalRecord{Op: "clear", User: userID})
}

func (s *fileStore) appendLocked(r journalRecord) error {
	if s.journalFile == nil {
		return errors.New("journal closed")
	}
	if err := json.NewEncoder(s.journalFile).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("mute-set compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	snap := make(map[string][]string, len(s.muted))
	for user, set := range s.muted {
		ids := make([]string, 0, len(set))
		for ch := range set {
			ids = append(ids, ch)
		}
		snap[user] = ids
	}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string][]string
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for user, ids := range m {
		set := map[string]struct{}{}
		for _, ch := range ids {
			set[ch] = struct{}{}
		}
		if len(set) > 0 {
			out[user] = set
		}
	}
	return nil
}

func replayJournal(path string, out map[string]map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		switch r.Op {
		case "add":
			if r.User == "" || r.Channel == "" {
				continue
			}
			set := out[r.User]
			if set == nil {
				set = map[string]struct{}{}
				out[r.User] = set
			}
			set[r.Channel] = struct{}{}
		case "del":
			if set := out[r.User]; set != nil {
				delete(set, r.Channel)
				if len(set) == 0 {
					delete(out, r.User)
				}
			}
		case "clear":
			delete(out, r.User)
		}
	}
	return sc.Err()
}
