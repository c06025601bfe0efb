package notifier

import "time"

// Config controls the outbound alert pipeline.
//
// Defaults (applied by New):
//   - QueueSize: 128
//   - SendGap: 600ms (minimum spacing between deliveries)
//   - SendTimeout: 10s
type Config struct {
	Enabled     bool
	QueueSize   int
	SendGap     time.Duration
	SendTimeout time.Duration
}

// HistoryItem is one delivered alert, kept in memory for /status.
type HistoryItem struct {
	At   time.Time
	Text string
}

// Event is published on the bus as "alert.sent" / "alert.failed".
type Event struct {
	ChatID int64
	Text   string
	Error  string
	At     time.Time
}
