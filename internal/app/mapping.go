package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"wishbot/internal/catalog"
	"wishbot/internal/config"
	"wishbot/internal/ledger"
	"wishbot/internal/monitor"
	"wishbot/internal/notifier"
	"wishbot/internal/storage"
	kit "wishbot/internal/transport"
)

func parseDurationField(path, raw string) (time.Duration, error) {
	return config.ParseDurationField(path, raw)
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	return config.ParseDurationOrDefault(path, raw, def)
}

func parseAlertChat(raw string) (kit.ChatTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return kit.ChatTarget{}, fmt.Errorf("telegram.alert_chat is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return kit.ChatTarget{}, fmt.Errorf("telegram.alert_chat: invalid chat id %q: %w", raw, err)
	}
	return kit.ChatTarget{ChatID: id}, nil
}

func mapClientConfig(cfg *config.Config) (catalog.ClientConfig, error) {
	m := cfg.Monitor
	if strings.TrimSpace(m.Endpoint) == "" {
		return catalog.ClientConfig{}, fmt.Errorf("monitor.endpoint is required")
	}
	timeout, err := parseDurationOrDefault("monitor.request_timeout", m.RequestTimeout, 3*time.Second)
	if err != nil {
		return catalog.ClientConfig{}, err
	}
	return catalog.ClientConfig{
		Endpoint:       m.Endpoint,
		PageSize:       m.PageSize,
		RequestTimeout: timeout,
		MaxRetries:     m.MaxRetries,
	}, nil
}

func mapScanConfig(cfg *config.Config) catalog.ScanConfig {
	m := cfg.Monitor
	total := m.TotalPages
	if total <= 0 {
		total = 9
	}
	return catalog.ScanConfig{
		TotalPages: total,
		Workers:    m.FetchWorkers,
	}
}

func mapLedgerConfig(cfg *config.Config) ledger.Config {
	return ledger.Config{MaxAlertsPerItem: cfg.Monitor.MaxAlertsPerItem}
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	m := cfg.Monitor
	interval, err := parseDurationOrDefault("monitor.interval", m.Interval, 5*time.Second)
	if err != nil {
		return monitor.Config{}, err
	}
	chat, err := parseAlertChat(cfg.Telegram.AlertChat)
	if err != nil {
		return monitor.Config{}, err
	}
	var loc *time.Location
	if tz := strings.TrimSpace(m.Timezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return monitor.Config{}, fmt.Errorf("monitor.timezone: invalid %q: %w", tz, err)
		}
	}
	return monitor.Config{
		Interval:         interval,
		MaxAlertsPerItem: m.MaxAlertsPerItem,
		CookiesPath:      m.CookiesPath,
		AlertChat:        chat,
		SummarySchedule:  m.SummarySchedule,
		Location:         loc,
	}, nil
}

// mapNotifierConfig defaults to enabled when the section is omitted.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{Enabled: true}, nil
	}
	gap, err := parseDurationOrDefault("notifier.send_gap", n.SendGap, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	timeout, err := parseDurationOrDefault("notifier.send_timeout", n.SendTimeout, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	if n.QueueSize < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.queue_size must be >= 0")
	}
	return notifier.Config{
		Enabled:     n.Enabled,
		QueueSize:   n.QueueSize,
		SendGap:     gap,
		SendTimeout: timeout,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	s := cfg.Storage
	if s == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.TrimSpace(strings.ToLower(s.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := parseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, false, err
	}
	if strings.TrimSpace(s.Path) == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage is enabled")
	}
	return storage.Config{
		Driver:      driver,
		Path:        s.Path,
		BusyTimeout: busy,
	}, true, nil
}
