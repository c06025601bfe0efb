package monitor

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wishbot/internal/catalog"
	"wishbot/internal/eventbus"
	"wishbot/internal/ledger"
	"wishbot/internal/session"
	kit "wishbot/internal/transport"
	logx "wishbot/pkg/logx"
)

type fakeScanner struct {
	mu      sync.Mutex
	results []catalog.Result
	calls   int
	panicAt int // 1-based call number that panics; 0 disables
}

func (f *fakeScanner) Scan(ctx context.Context, creds session.Set) catalog.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicAt > 0 && f.calls == f.panicAt {
		panic("scan exploded")
	}
	i := f.calls - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	if i < 0 {
		return catalog.Result{}
	}
	return f.results[i]
}

func (f *fakeScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	fail  atomic.Bool
}

func (f *fakeNotifier) Notify(ctx context.Context, n kit.Notification) error {
	if f.fail.Load() {
		return context.DeadlineExceeded
	}
	f.mu.Lock()
	f.texts = append(f.texts, n.Text)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeNotifier) countContaining(sub string) int {
	n := 0
	for _, t := range f.snapshot() {
		if strings.Contains(t, sub) {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func writeCookies(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.json")
	err := session.Save(path, session.Set{"A": "tok", "b": "1", "c": "2", "d": "3", "e": "4"})
	if err != nil {
		t.Fatalf("save cookies: %v", err)
	}
	return path
}

func newTestService(t *testing.T, sc Scanner, fn Notifier) *Service {
	t.Helper()
	led, err := ledger.New(ledger.Config{MaxAlertsPerItem: 3}, nil, logx.Nop())
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	cfg := Config{
		Interval:         20 * time.Millisecond,
		MaxAlertsPerItem: 3,
		CookiesPath:      writeCookies(t),
	}
	return New(cfg, sc, led, fn, eventbus.New(), logx.Nop())
}

func rec(code string, inStock bool, sizes ...string) catalog.StockRecord {
	return catalog.StockRecord{
		Code:    code,
		Name:    "Item " + code,
		Price:   499,
		URL:     "/item-" + code + "-p-1.html",
		Sizes:   sizes,
		InStock: inStock,
	}
}

func TestStartWithoutCookiesFails(t *testing.T) {
	sc := &fakeScanner{}
	fn := &fakeNotifier{}
	led, _ := ledger.New(ledger.Config{}, nil, logx.Nop())
	s := New(Config{CookiesPath: filepath.Join(t.TempDir(), "absent.json")}, sc, led, fn, nil, logx.Nop())

	if err := s.Start(context.Background()); err != session.ErrNoCookies {
		t.Fatalf("Start err = %v, want ErrNoCookies", err)
	}
	if s.Running() {
		t.Fatal("monitor should not be running")
	}
}

func TestBaselineDoesNotAlert(t *testing.T) {
	sc := &fakeScanner{results: []catalog.Result{
		{Records: []catalog.StockRecord{rec("P1", true, "M"), rec("P2", true, "S")}, Total: 2},
	}}
	fn := &fakeNotifier{}
	s := newTestService(t, sc, fn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	// Wait for the startup message plus at least one full cycle.
	waitFor(t, func() bool { return sc.callCount() >= 3 })

	if got := fn.countContaining("IN-STOCK ALERT"); got != 0 {
		t.Fatalf("baseline produced %d alerts, want 0", got)
	}
	if got := fn.countContaining("WISHLIST MONITOR"); got != 1 {
		t.Fatalf("startup messages = %d, want 1", got)
	}
}

func TestRestockTransitionAlerts(t *testing.T) {
	sc := &fakeScanner{results: []catalog.Result{
		{Records: []catalog.StockRecord{rec("P1", false)}, Total: 1},
		{Records: []catalog.StockRecord{rec("P1", true, "M", "L")}, Total: 1},
	}}
	fn := &fakeNotifier{}
	s := newTestService(t, sc, fn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	waitFor(t, func() bool { return fn.countContaining("IN-STOCK ALERT") >= 1 })

	// Repeated in-stock cycles must not re-alert.
	waitFor(t, func() bool { return sc.callCount() >= 5 })
	if got := fn.countContaining("IN-STOCK ALERT"); got != 1 {
		t.Fatalf("alerts = %d, want exactly 1", got)
	}

	var alert string
	for _, txt := range fn.snapshot() {
		if strings.Contains(txt, "IN-STOCK ALERT") {
			alert = txt
		}
	}
	for _, want := range []string{"Item P1", "M, L", "Rs.499", "`P1`", "Alert 1/3"} {
		if !strings.Contains(alert, want) {
			t.Fatalf("alert text missing %q:\n%s", want, alert)
		}
	}
	if st := s.Stats(); st.AlertsSent != 1 {
		t.Fatalf("AlertsSent = %d, want 1", st.AlertsSent)
	}
}

func TestStopIsCooperative(t *testing.T) {
	sc := &fakeScanner{results: []catalog.Result{{Records: nil, Total: 0}}}
	fn := &fakeNotifier{}
	s := newTestService(t, sc, fn)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return sc.callCount() >= 2 })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Running() {
		t.Fatal("monitor still running after Stop")
	}
	if err := s.Stop(context.Background()); err != ErrNotRunning {
		t.Fatalf("second Stop err = %v, want ErrNotRunning", err)
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	sc := &fakeScanner{results: []catalog.Result{{}}}
	fn := &fakeNotifier{}
	s := newTestService(t, sc, fn)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	if err := s.Start(context.Background()); err != ErrAlreadyRunning {
		t.Fatalf("second Start err = %v, want ErrAlreadyRunning", err)
	}
}

func TestCyclePanicNotifiesAndStops(t *testing.T) {
	sc := &fakeScanner{
		results: []catalog.Result{{Records: []catalog.StockRecord{rec("P1", false)}, Total: 1}},
		panicAt: 2, // first monitoring cycle after baseline
	}
	fn := &fakeNotifier{}
	s := newTestService(t, sc, fn)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return !s.Running() })
	if got := fn.countContaining("Monitor Error"); got != 1 {
		t.Fatalf("error notifications = %d, want 1", got)
	}
}

func TestDeliveryFailureKeepsCounter(t *testing.T) {
	sc := &fakeScanner{results: []catalog.Result{
		{Records: []catalog.StockRecord{rec("P1", false)}, Total: 1},
		{Records: []catalog.StockRecord{rec("P1", true, "M")}, Total: 1},
	}}
	fn := &fakeNotifier{}
	fn.fail.Store(true)
	s := newTestService(t, sc, fn)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	waitFor(t, func() bool { return sc.callCount() >= 3 })

	// The counter advanced even though delivery failed: at-least-once
	// counted, at-most-once delivered.
	if got := s.ledger.AlertCount("P1"); got != 1 {
		t.Fatalf("AlertCount = %d, want 1", got)
	}
	if got := fn.countContaining("IN-STOCK ALERT"); got != 0 {
		t.Fatalf("delivered alerts = %d, want 0", got)
	}
}
