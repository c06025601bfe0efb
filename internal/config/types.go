package config

type Config struct {
	Telegram Telegram `json:"telegram"`
	Logging  Logging  `json:"logging"`
	Monitor  Monitor  `json:"monitor"`

	Notifier *Notifier `json:"notifier,omitempty"`
	Storage  *Storage  `json:"storage,omitempty"`
}

type Telegram struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`

	// AlertChat is the chat that receives restock alerts and monitor
	// lifecycle messages (numeric chat id as a string).
	AlertChat string `json:"alert_chat"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type Logging struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// Monitor controls the wishlist scan loop.
//
// All durations are Go duration strings (e.g. "500ms", "5s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - total_pages: 9 (pages 0..9 inclusive are fetched)
//   - page_size: 10
//   - interval: "5s"
//   - request_timeout: "3s"
//   - max_retries: 5
//   - fetch_workers: 5
//   - max_alerts_per_item: 3
//   - cookies_path: "./cookies/cookies.json"
type Monitor struct {
	Endpoint   string `json:"endpoint"`
	TotalPages int    `json:"total_pages,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`

	Interval       string `json:"interval,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
	MaxRetries     int    `json:"max_retries,omitempty"`
	FetchWorkers   int    `json:"fetch_workers,omitempty"`

	MaxAlertsPerItem int    `json:"max_alerts_per_item,omitempty"`
	CookiesPath      string `json:"cookies_path,omitempty"`

	// SummarySchedule is an optional cron spec (e.g. "0 9 * * *") for a
	// daily status message while the monitor runs. Empty disables it.
	SummarySchedule string `json:"summary_schedule,omitempty"`
	Timezone        string `json:"timezone,omitempty"`
}

// Notifier controls the outbound alert pipeline.
//
// If the whole section is omitted, the notifier defaults to enabled=true.
type Notifier struct {
	Enabled     bool   `json:"enabled"`
	QueueSize   int    `json:"queue_size,omitempty"`
	SendGap     string `json:"send_gap,omitempty"` // min delay between deliveries
	SendTimeout string `json:"send_timeout,omitempty"`
}

// Storage controls durable alert-counter persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./notification_count.json" }
type Storage struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
