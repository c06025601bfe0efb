// Package session holds the credential set the catalog API requires:
// a flat cookie jar captured from a logged-in browser session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MinCookies is the smallest jar accepted from an upload. Real session
// exports carry far more; anything smaller is almost certainly a paste of
// the wrong thing.
const MinCookies = 5

var ErrNoCookies = errors.New("no cookies found")

// Set is an immutable-for-the-session credential mapping.
type Set map[string]string

// ParseCookieHeader parses a "k1=v1; k2=v2; ..." cookie header line as
// copied from browser devtools.
func ParseCookieHeader(raw string) Set {
	out := Set{}
	for _, pair := range strings.Split(strings.TrimSpace(raw), ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Load reads a jar previously written by Save.
// A missing file returns ErrNoCookies (precondition for monitor start).
func Load(path string) (Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCookies
		}
		return nil, err
	}
	var s Set
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("cookie jar %s: %w", path, err)
	}
	if len(s) == 0 {
		return nil, ErrNoCookies
	}
	return s, nil
}

// Save writes the jar as pretty JSON, creating parent directories.
func Save(path string, s Set) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Exists reports whether a jar file is present (used by /start and /status).
func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
