// Package notifier delivers alert messages to the chat channel, serialized
// and rate-limited so a burst of restocks never trips the platform's
// throughput limits.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"wishbot/internal/eventbus"
	rtsup "wishbot/internal/runtime/supervisor"
	kit "wishbot/internal/transport"
	logx "wishbot/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

// Service implements an async notification pipeline: bounded queue + one
// delivery worker + token-bucket spacing. Delivery failures are logged and
// dropped, never retried (the alert decision was already counted by the
// ledger; see the accepted counted-but-undelivered trade-off).
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	queue     chan kit.Notification
	sup       *rtsup.Supervisor
	sendWG    sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.SendGap <= 0 {
		cfg.SendGap = 600 * time.Millisecond
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	// One token per SendGap, burst 1: deliveries are strictly spaced.
	s.limiter = rate.NewLimiter(rate.Every(cfg.SendGap), 1)
}

// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan kit.Notification, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// Delivery failures must never take the app down.
		rtsup.WithCancelOnError(false),
	)
	q := s.queue
	sup := s.sup
	s.mu.Unlock()

	sup.Go0("notifier.worker", func(c context.Context) {
		s.workerLoop(c, q)
	})
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	sup := s.sup
	s.queue = nil
	s.sup = nil
	s.accepting = false
	s.mu.Unlock()

	if q == nil {
		return
	}
	// Wait for in-flight enqueues before closing so Notify never races a
	// send against the close.
	s.sendWG.Wait()
	close(q)

	if sup != nil {
		if err := sup.Wait(ctx); err != nil {
			sup.Cancel()
		}
	}
}

// Notify enqueues one alert. It never blocks: a full queue returns
// ErrQueueFull and the alert is dropped (logged by the caller).
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Snapshot returns recently delivered alerts (newest last).
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Text: text})
	if len(s.history) > 100 {
		s.history = s.history[len(s.history)-100:]
	}
	s.hmu.Unlock()
}

func (s *Service) workerLoop(ctx context.Context, q <-chan kit.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, n)
		}
	}
}

func (s *Service) deliver(ctx context.Context, n kit.Notification) {
	s.mu.Lock()
	lim := s.limiter
	ad := s.adapter
	timeout := s.cfg.SendTimeout
	s.mu.Unlock()

	if ad == nil || n.Text == "" {
		return
	}

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return
		}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	_, err := ad.SendText(cctx, n.Target, n.Text, n.Options)
	cancel()

	now := time.Now()
	if err != nil {
		s.log.Error("alert delivery failed", logx.Int64("chat", n.Target.ChatID), logx.Err(err))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: "alert.failed", Time: now,
				Data: Event{ChatID: n.Target.ChatID, Text: n.Text, Error: err.Error(), At: now}})
		}
		return
	}

	s.appendHistory(n.Text)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "alert.sent", Time: now,
			Data: Event{ChatID: n.Target.ChatID, Text: n.Text, At: now}})
	}
}
