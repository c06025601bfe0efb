package storage

// Package storage persists the per-item alert counters so the alert
// throttle survives restarts.
//
// It currently supports:
//   - "file": flat JSON map, rewritten in full on every change
//   - "sqlite": SQLite database file (optional build tag)
