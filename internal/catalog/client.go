package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"wishbot/internal/session"
	logx "wishbot/pkg/logx"
)

// ClientConfig configures the page fetcher.
//
// Defaults (applied by NewClient):
//   - PageSize: 10
//   - RequestTimeout: 3s
//   - MaxRetries: 5
type ClientConfig struct {
	Endpoint       string
	PageSize       int
	RequestTimeout time.Duration
	MaxRetries     int

	// Referer / UserAgent sent with every request. The catalog API rejects
	// requests without a browser-looking identity.
	Referer   string
	UserAgent string
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Client fetches single catalog pages with bounded retry on timeout.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	log  logx.Logger
}

func NewClient(cfg ClientConfig, log logx.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("catalog endpoint is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg: cfg,
		// No client-level timeout: each attempt gets its own context so a
		// retry never inherits an already-spent budget.
		http: &http.Client{},
		log:  log,
	}, nil
}

// FetchPage returns the raw product entries for one page index.
//
// Retry policy (per the upstream API's failure modes):
//   - timeout: retried, up to MaxRetries attempts total
//   - non-200: logged, retried while attempts remain
//   - any other transport error: fail fast, page yields nothing
//   - malformed JSON: page yields nothing, no retry
//
// The returned error is diagnostic only; callers treat a failed page as
// empty and degraded-complete, never as fatal.
func (c *Client) FetchPage(ctx context.Context, creds session.Set, page int) ([]apiProduct, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		products, retry, err := c.fetchOnce(ctx, creds, page)
		if err == nil {
			return products, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		c.log.Warn("page fetch retrying",
			logx.Int("page", page),
			logx.Int("attempt", attempt),
			logx.Int("max", c.cfg.MaxRetries),
			logx.Err(err))
	}

	return nil, fmt.Errorf("page %d: retries exhausted: %w", page, lastErr)
}

// fetchOnce performs one attempt. retry reports whether the failure class
// is worth another attempt (timeout or non-200).
func (c *Client) fetchOnce(ctx context.Context, creds session.Set, page int) (products []apiProduct, retry bool, err error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, c.cfg.Endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	q := req.URL.Query()
	q.Set("currentPage", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("Referer", c.cfg.Referer)
	}
	// The API authorizes via the session's "A" cookie replayed as a bearer token.
	if tok := creds["A"]; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range creds {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) && ctx.Err() == nil {
			return nil, true, fmt.Errorf("timeout: %w", err)
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused across retries.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, true, fmt.Errorf("http %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("invalid json: %w", err)
	}
	return body.Products, false, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
