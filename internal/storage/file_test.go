package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	logx "wishbot/pkg/logx"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	counts, err := st.LoadCounts(ctx)
	if err != nil {
		t.Fatalf("LoadCounts (empty): %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected empty counts, got %v", counts)
	}

	want := map[string]int{"SKU-1": 2, "SKU-2": 1}
	if err := st.SaveCounts(ctx, want); err != nil {
		t.Fatalf("SaveCounts: %v", err)
	}

	got, err := st.LoadCounts(ctx)
	if err != nil {
		t.Fatalf("LoadCounts: %v", err)
	}
	if len(got) != 2 || got["SKU-1"] != 2 || got["SKU-2"] != 1 {
		t.Fatalf("unexpected counts: %v", got)
	}

	// Full overwrite: saving a smaller map removes old entries.
	if err := st.SaveCounts(ctx, map[string]int{"SKU-2": 3}); err != nil {
		t.Fatalf("SaveCounts: %v", err)
	}
	got, _ = st.LoadCounts(ctx)
	if len(got) != 1 || got["SKU-2"] != 3 {
		t.Fatalf("expected overwrite, got %v", got)
	}
}

func TestFileStoreCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	counts, err := st.LoadCounts(context.Background())
	if err != nil {
		t.Fatalf("LoadCounts: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected fresh counts, got %v", counts)
	}
}

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("disabled storage should be (nil, nil), got %v, %v", st, err)
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
