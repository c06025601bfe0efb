// Package ledger tracks last-known stock state and alert counters per item
// code. It is the sole owner of that state; every mutation funnels through
// one mutex so the read-decide-write sequence for an item is atomic.
package ledger

import (
	"context"
	"sync"
	"time"

	"wishbot/internal/catalog"
	"wishbot/internal/storage"
	logx "wishbot/pkg/logx"
)

// Config configures the ledger.
type Config struct {
	// MaxAlertsPerItem caps alerts per uninterrupted in-stock lifecycle of
	// one item code. Default 3.
	MaxAlertsPerItem int
}

// Decision is the outcome of applying one observation.
type Decision struct {
	// Alert is true when this observation is a restock transition that is
	// still under the per-item alert cap. The counter has already been
	// incremented and persisted when Alert is returned true.
	Alert    bool
	AlertNum int // 1-based alert number within this restock lifecycle

	// WentOutOfStock is true when a previously in-stock item was positively
	// observed out of stock (its counter has been reset).
	WentOutOfStock bool
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	maxAlerts int
	store     storage.Store
	log       logx.Logger

	// inStock holds last-known state per observed item code. Absence means
	// UNKNOWN (never observed), which alerts like out-of-stock on the first
	// in-stock observation.
	inStock map[string]bool

	// counts holds alert counters > 0 only; entries are removed on reset so
	// the persisted map stays small.
	counts map[string]int
}

// New builds a ledger, loading persisted counters so the alert throttle
// survives restarts. store may be nil (persistence disabled).
func New(cfg Config, store storage.Store, log logx.Logger) (*Ledger, error) {
	if cfg.MaxAlertsPerItem <= 0 {
		cfg.MaxAlertsPerItem = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	counts := map[string]int{}
	if store != nil {
		loaded, err := store.LoadCounts(context.Background())
		if err != nil {
			return nil, err
		}
		for code, n := range loaded {
			if n > 0 {
				counts[code] = n
			}
		}
	}

	return &Ledger{
		maxAlerts: cfg.MaxAlertsPerItem,
		store:     store,
		log:       log,
		inStock:   map[string]bool{},
		counts:    counts,
	}, nil
}

// Apply evaluates one positively observed record and updates state.
//
// The whole read state → throttle check → counter increment → persist →
// state flip sequence runs under the ledger lock, so two overlapping scans
// observing the same restock can never both pass the throttle check.
// Callers must deliver the actual notification OUTSIDE this call; a network
// send never happens under the lock.
//
// Codes absent from a scan (e.g. their page failed) must simply not be
// applied: their state stays untouched.
func (l *Ledger) Apply(ctx context.Context, rec catalog.StockRecord) Decision {
	if rec.Code == "" {
		return Decision{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	was := l.inStock[rec.Code] // false for UNKNOWN: treated as "was not in stock"

	if rec.InStock {
		l.inStock[rec.Code] = true
		if was {
			// Still in stock: no transition, no counter change.
			return Decision{}
		}
		n := l.counts[rec.Code]
		if n >= l.maxAlerts {
			return Decision{}
		}
		n++
		l.counts[rec.Code] = n
		l.persistLocked(ctx)
		return Decision{Alert: true, AlertNum: n}
	}

	// Positively observed out of stock.
	if !was {
		// First observation or still out: record the state, nothing to reset.
		l.inStock[rec.Code] = false
		return Decision{}
	}
	l.inStock[rec.Code] = false
	if _, ok := l.counts[rec.Code]; ok {
		delete(l.counts, rec.Code)
		l.persistLocked(ctx)
	}
	return Decision{WentOutOfStock: true}
}

// Observe records state for a code without ever alerting. Used for the
// baseline scan at monitor start so pre-existing stock doesn't spam.
func (l *Ledger) Observe(code string, inStock bool) {
	if code == "" {
		return
	}
	l.mu.Lock()
	l.inStock[code] = inStock
	l.mu.Unlock()
}

// persistLocked writes the full counter map through to storage.
// Write-through on every change bounds crash loss to the in-flight decision.
// A persist failure is logged, not rolled back: the decision is already
// final (counted-but-possibly-unpersisted beats double alerting).
func (l *Ledger) persistLocked(ctx context.Context) {
	if l.store == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := l.store.SaveCounts(cctx, l.counts); err != nil {
		l.log.Error("counter persist failed", logx.Err(err))
	}
}

// Snapshot is a derived, read-only view for reporting.
type Snapshot struct {
	Tracked int // item codes ever observed
	InStock int // codes currently in stock
	Alerted int // codes with a live alert counter
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Snapshot{Tracked: len(l.inStock), Alerted: len(l.counts)}
	for _, in := range l.inStock {
		if in {
			s.InStock++
		}
	}
	return s
}

// AlertCount returns the current counter for one code (0 if none).
func (l *Ledger) AlertCount(code string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[code]
}

// LastKnownInStock reports the recorded state and whether the code has ever
// been observed.
func (l *Ledger) LastKnownInStock(code string) (inStock, known bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	in, ok := l.inStock[code]
	return in, ok
}
