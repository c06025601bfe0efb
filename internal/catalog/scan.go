package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"wishbot/internal/session"
	logx "wishbot/pkg/logx"
)

// ScanConfig configures the scan orchestrator.
//
// TotalPages is the highest page index; pages 0..TotalPages inclusive are
// fetched each cycle.
type ScanConfig struct {
	TotalPages int
	Workers    int
}

// Result is one complete scan over all catalog pages.
//
// Records holds every positively observed entry (in stock or not), in
// completion order. Page ordering is NOT preserved and must not be relied
// upon. Codes missing from Records were not observed this cycle (their
// pages failed) and carry no information.
type Result struct {
	Records []StockRecord
	Total   int // records observed this cycle (reporting only)

	FailedPages int
	Took        time.Duration
}

// InStock returns the subset of records currently in stock.
func (r Result) InStock() []StockRecord {
	out := make([]StockRecord, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.InStock {
			out = append(out, rec)
		}
	}
	return out
}

// Scanner fans page fetches across a bounded worker pool and streams
// normalized records back.
type Scanner struct {
	client *Client
	cfg    ScanConfig
	log    logx.Logger
}

func NewScanner(client *Client, cfg ScanConfig, log logx.Logger) *Scanner {
	if cfg.TotalPages < 0 {
		cfg.TotalPages = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scanner{client: client, cfg: cfg, log: log}
}

// Scan fetches all pages in parallel and returns the normalized result.
// Per-page failures degrade completeness, never abort sibling pages.
func (s *Scanner) Scan(ctx context.Context, creds session.Set) Result {
	start := time.Now()

	pages := make(chan int)
	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)

	workers := s.cfg.Workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pages {
				products, err := s.client.FetchPage(ctx, creds, page)
				if err != nil {
					s.log.Warn("page skipped", logx.Int("page", page), logx.Err(err))
					mu.Lock()
					res.FailedPages++
					mu.Unlock()
					continue
				}
				for _, p := range products {
					rec, ok := normalize(p)
					if !ok {
						continue
					}
					mu.Lock()
					res.Records = append(res.Records, rec)
					res.Total++
					mu.Unlock()
				}
			}
		}()
	}

	for page := 0; page <= s.cfg.TotalPages; page++ {
		select {
		case pages <- page:
		case <-ctx.Done():
			// Unqueued pages count as failed; queued ones finish.
			mu.Lock()
			res.FailedPages += s.cfg.TotalPages - page + 1
			mu.Unlock()
			goto drain
		}
	}
drain:
	close(pages)
	wg.Wait()

	res.Took = time.Since(start)
	return res
}

// normalize flattens one raw catalog entry into a StockRecord.
// Entries without an item code are discarded (ok=false).
func normalize(p apiProduct) (StockRecord, bool) {
	if p.ProductCode == "" {
		return StockRecord{}, false
	}

	var sizes []string
	seen := map[string]bool{}
	for _, v := range p.VariantOptions {
		if v.Stock.StockLevelStatus != stockLevelInStock {
			continue
		}
		for _, q := range v.Qualifiers {
			if q.Qualifier != "size" || q.Value == "" {
				continue
			}
			if !seen[q.Value] {
				seen[q.Value] = true
				sizes = append(sizes, q.Value)
			}
		}
	}
	sort.Strings(sizes)

	return StockRecord{
		Code:    p.ProductCode,
		Name:    p.Name,
		Price:   p.Price.Value,
		URL:     p.URL,
		Sizes:   sizes,
		InStock: len(sizes) > 0,
	}, true
}
