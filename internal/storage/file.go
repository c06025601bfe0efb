package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "wishbot/pkg/logx"
)

// fileStore keeps the counter map as a single pretty-printed JSON document,
// rewritten in full on every change. Writes go through a temp file + rename
// so a crash mid-write never leaves a truncated map behind.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) LoadCounts(ctx context.Context) (map[string]int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, err
	}

	counts := map[string]int{}
	if err := json.Unmarshal(b, &counts); err != nil {
		// A corrupt counter file should not block startup; alerts may repeat
		// once past their cap, which is the lesser failure.
		s.log.Warn("counter file unreadable; starting fresh",
			logx.String("path", s.path), logx.Err(err))
		return map[string]int{}, nil
	}
	return counts, nil
}

func (s *fileStore) SaveCounts(ctx context.Context, counts map[string]int) error {
	_ = ctx
	if counts == nil {
		counts = map[string]int{}
	}
	b, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
