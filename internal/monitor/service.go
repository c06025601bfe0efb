// Package monitor runs the wishlist stock scan loop and the bot commands
// that control it.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"wishbot/internal/catalog"
	"wishbot/internal/eventbus"
	"wishbot/internal/ledger"
	rtsup "wishbot/internal/runtime/supervisor"
	"wishbot/internal/session"
	kit "wishbot/internal/transport"
	logx "wishbot/pkg/logx"
)

var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNotRunning     = errors.New("monitor not running")
)

// Scanner abstracts the catalog scan so the loop can be tested with a fake.
type Scanner interface {
	Scan(ctx context.Context, creds session.Set) catalog.Result
}

// Notifier is the outbound alert pipeline.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

type Config struct {
	// Interval between cycle starts (well, end-to-start). Default 5s.
	Interval time.Duration

	// MaxAlertsPerItem is echoed in alert texts ("Alert 2/3"). The ledger
	// owns the actual cap; keep the two configured from the same value.
	MaxAlertsPerItem int

	// CookiesPath is the credential jar consumed at Start. Default
	// "./cookies/cookies.json".
	CookiesPath string

	// AlertChat receives alerts and lifecycle messages.
	AlertChat kit.ChatTarget

	// SummarySchedule is an optional cron spec for a periodic status
	// message while the monitor runs. Empty disables it.
	SummarySchedule string
	Location        *time.Location
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxAlertsPerItem <= 0 {
		c.MaxAlertsPerItem = 3
	}
	if c.CookiesPath == "" {
		c.CookiesPath = "./cookies/cookies.json"
	}
}

// CycleReport is published on the bus as "monitor.cycle" after every scan.
type CycleReport struct {
	CycleID     string
	Scan        uint64
	Total       int
	InStock     int
	FailedPages int
	Alerted     int
	Took        time.Duration
}

type Service struct {
	cfg     Config
	scanner Scanner
	ledger  *ledger.Ledger
	notify  Notifier
	bus     eventbus.Bus
	log     logx.Logger

	mu      sync.Mutex
	running bool
	sup     *rtsup.Supervisor
	cron    *cron.Cron
	started time.Time

	// stopFlag is the cooperative stop request, observed at cycle
	// boundaries so an in-flight scan always completes.
	stopFlag atomic.Bool

	scans  atomic.Uint64
	alerts atomic.Uint64
}

func New(cfg Config, scanner Scanner, led *ledger.Ledger, notify Notifier, bus eventbus.Bus, log logx.Logger) *Service {
	cfg.applyDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	return &Service{
		cfg:     cfg,
		scanner: scanner,
		ledger:  led,
		notify:  notify,
		bus:     bus,
		log:     log.With(logx.String("comp", "monitor")),
	}
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats is a point-in-time view for /status and the daily summary.
type Stats struct {
	Running    bool
	Scans      uint64
	AlertsSent uint64
	Started    time.Time
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	running := s.running
	started := s.started
	s.mu.Unlock()
	return Stats{
		Running:    running,
		Scans:      s.scans.Load(),
		AlertsSent: s.alerts.Load(),
		Started:    started,
	}
}

// Start loads the credential jar and launches the scan loop. It fails with
// session.ErrNoCookies when no usable credentials exist, and
// ErrAlreadyRunning when the loop is active.
func (s *Service) Start(ctx context.Context) error {
	creds, err := session.Load(s.cfg.CookiesPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.started = time.Now()
	s.stopFlag.Store(false)
	s.scans.Store(0)
	s.alerts.Store(0)

	sup := rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)
	s.sup = sup
	s.startCronLocked(sup.Context())
	s.mu.Unlock()

	s.log.Info("monitor starting",
		logx.Duration("interval", s.cfg.Interval),
		logx.Int("cookies", len(creds)),
	)
	s.bus.Publish(eventbus.Event{Type: "monitor.started"})

	sup.Go0("monitor.loop", func(c context.Context) {
		s.run(c, creds)
	})
	return nil
}

// Stop requests a cooperative stop and waits for the loop to finish the
// cycle in flight. If ctx expires first, the loop is cancelled hard.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	sup := s.sup
	s.mu.Unlock()

	s.stopFlag.Store(true)
	if sup == nil {
		return nil
	}
	if err := sup.Wait(ctx); err != nil {
		s.log.Warn("monitor stop timed out, cancelling", logx.Err(err))
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Wait(wctx)
	}
	return nil
}

func (s *Service) startCronLocked(ctx context.Context) {
	if s.cfg.SummarySchedule == "" {
		return
	}
	var opts []cron.Option
	if s.cfg.Location != nil {
		opts = append(opts, cron.WithLocation(s.cfg.Location))
	}
	cr := cron.New(opts...)
	_, err := cr.AddFunc(s.cfg.SummarySchedule, func() {
		s.sendSummary(ctx)
	})
	if err != nil {
		s.log.Warn("invalid summary schedule", logx.String("spec", s.cfg.SummarySchedule), logx.Err(err))
		return
	}
	cr.Start()
	s.cron = cr
}

func (s *Service) finish() {
	s.mu.Lock()
	s.running = false
	s.sup = nil
	cr := s.cron
	s.cron = nil
	s.mu.Unlock()
	if cr != nil {
		cr.Stop()
	}
	s.bus.Publish(eventbus.Event{Type: "monitor.stopped"})
	s.log.Info("monitor stopped", logx.Uint64("scans", s.scans.Load()), logx.Uint64("alerts", s.alerts.Load()))
}

func (s *Service) run(ctx context.Context, creds session.Set) {
	defer s.finish()

	// Baseline scan: record current state without alerting, so only real
	// transitions after this point produce alerts.
	res := s.scanner.Scan(ctx, creds)
	if ctx.Err() != nil || s.stopFlag.Load() {
		return
	}
	inStock := 0
	for _, rec := range res.Records {
		s.ledger.Observe(rec.Code, rec.InStock)
		if rec.InStock {
			inStock++
		}
	}
	s.log.Info("baseline scan complete",
		logx.Int("total", res.Total),
		logx.Int("in_stock", inStock),
		logx.Int("failed_pages", res.FailedPages),
		logx.Duration("took", res.Took),
	)
	s.send(ctx, formatStartup(res.Total, inStock, s.cfg.Interval, s.cfg.MaxAlertsPerItem))

	for {
		if s.stopFlag.Load() || ctx.Err() != nil {
			return
		}
		n := s.scans.Add(1)
		if err := s.runCycle(ctx, creds, n); err != nil {
			s.log.Error("monitor cycle failed", logx.Uint64("scan", n), logx.Err(err))
			s.send(ctx, formatMonitorError(err))
			return
		}
		if !s.sleepInterval(ctx) {
			return
		}
	}
}

// runCycle executes one scan-decide-alert cycle. Per-page and per-record
// failures degrade the cycle; only a panic escapes as an error, which stops
// the monitor after notifying the alert chat.
func (s *Service) runCycle(ctx context.Context, creds session.Set, scan uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	cycleID := uuid.NewString()[:8]
	clog := s.log.With(logx.String("cycle", cycleID), logx.Uint64("scan", scan))

	res := s.scanner.Scan(ctx, creds)
	if ctx.Err() != nil {
		return nil
	}

	type pendingAlert struct {
		rec catalog.StockRecord
		num int
	}
	var out []pendingAlert
	inStock := 0
	for _, rec := range res.Records {
		if rec.InStock {
			inStock++
		}
		d := s.ledger.Apply(ctx, rec)
		if d.Alert {
			out = append(out, pendingAlert{rec: rec, num: d.AlertNum})
		}
	}

	// Deliver outside the ledger lock; the decision (and counter) is final
	// even if the send fails.
	notified := 0
	for _, p := range out {
		if s.notify == nil {
			break
		}
		text := formatAlert(p.rec, p.num, s.cfg.MaxAlertsPerItem)
		if nerr := s.notify.Notify(ctx, kit.Notification{
			Channel:  "telegram",
			Priority: 5,
			Target:   s.cfg.AlertChat,
			Text:     text,
			Options:  &kit.SendOptions{ParseMode: "Markdown"},
		}); nerr != nil {
			clog.Warn("alert enqueue failed", logx.String("code", p.rec.Code), logx.Err(nerr))
			continue
		}
		notified++
		s.alerts.Add(1)
		clog.Info("restock alert", logx.String("code", p.rec.Code), logx.String("name", p.rec.Name), logx.Int("alert_num", p.num))
	}

	s.bus.Publish(eventbus.Event{Type: "monitor.cycle", Data: CycleReport{
		CycleID:     cycleID,
		Scan:        scan,
		Total:       res.Total,
		InStock:     inStock,
		FailedPages: res.FailedPages,
		Alerted:     notified,
		Took:        res.Took,
	}})
	clog.Info("scan complete",
		logx.Duration("took", res.Took),
		logx.Int("total", res.Total),
		logx.Int("in_stock", inStock),
		logx.Int("failed_pages", res.FailedPages),
		logx.Int("notified", notified),
	)
	return nil
}

// sleepInterval waits out the configured interval while polling the stop
// flag, so /stopmonitor takes effect without waiting a full interval.
func (s *Service) sleepInterval(ctx context.Context) bool {
	poll := s.cfg.Interval / 10
	if poll < 10*time.Millisecond {
		poll = 10 * time.Millisecond
	}
	if poll > 250*time.Millisecond {
		poll = 250 * time.Millisecond
	}
	deadline := time.Now().Add(s.cfg.Interval)
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		if s.stopFlag.Load() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			if !time.Now().Before(deadline) {
				return true
			}
		}
	}
}

func (s *Service) sendSummary(ctx context.Context) {
	snap := s.ledger.Snapshot()
	st := s.Stats()
	s.send(ctx, formatSummary(snap.Tracked, snap.InStock, snap.Alerted, st.Scans, st.Started))
}

func (s *Service) send(ctx context.Context, text string) {
	if s.notify == nil {
		return
	}
	err := s.notify.Notify(ctx, kit.Notification{
		Channel: "telegram",
		Target:  s.cfg.AlertChat,
		Text:    text,
		Options: &kit.SendOptions{ParseMode: "Markdown"},
	})
	if err != nil {
		s.log.Warn("monitor message enqueue failed", logx.Err(err))
	}
}
