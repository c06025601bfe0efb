package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wishbot/internal/session"
	kit "wishbot/internal/transport"
	"wishbot/internal/transport/telegram/router"
	logx "wishbot/pkg/logx"
)

const maxCookieFileBytes = 256 << 10

// Commands returns the bot command surface for the monitor. appCtx is the
// application lifetime context; the scan loop started by /startmonitor is
// bound to it, not to the request.
func (s *Service) Commands(appCtx context.Context, cm *router.CommandManager) []router.Command {
	return []router.Command{
		{
			Route:       "start",
			Description: "welcome and cookie status",
			Usage:       "/start",
			Access:      router.AccessEveryone,
			Handle:      s.cmdStart,
		},
		{
			Route:       "setcookies",
			Description: "upload session cookies",
			Usage:       "/setcookies",
			Access:      router.AccessOwnerOnly,
			Handle:      s.cmdSetCookies(cm),
		},
		{
			Route:       "startmonitor",
			Description: "start stock monitoring",
			Usage:       "/startmonitor",
			Access:      router.AccessOwnerOnly,
			Timeout:     30 * time.Second,
			Handle:      s.cmdStartMonitor(appCtx),
		},
		{
			Route:       "stopmonitor",
			Description: "stop stock monitoring",
			Usage:       "/stopmonitor",
			Access:      router.AccessOwnerOnly,
			Timeout:     30 * time.Second,
			Handle:      s.cmdStopMonitor,
		},
		{
			Route:       "status",
			Description: "monitor status",
			Usage:       "/status",
			Access:      router.AccessEveryone,
			Handle:      s.cmdStatus,
		},
	}
}

func reply(ctx context.Context, req *router.Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{ParseMode: "Markdown", DisablePreview: true})
	return err
}

func (s *Service) cmdStart(ctx context.Context, req *router.Request) error {
	var body string
	if session.Exists(s.cfg.CookiesPath) {
		body = strings.Join([]string{
			"🚀 *WISHLIST MONITOR BOT*",
			ruleWide,
			"✅ Cookies found!",
			"",
			"📋 *Available Commands:*",
			"",
			"/startmonitor - Start monitoring",
			"/stopmonitor - Stop monitoring",
			"/setcookies - Update cookies",
			"/status - Check status",
		}, "\n")
	} else {
		body = strings.Join([]string{
			"🚀 *WISHLIST MONITOR BOT*",
			ruleWide,
			"❌ No cookies found!",
			"",
			"📋 *Use /setcookies to upload your cookies file*",
		}, "\n")
	}
	return reply(ctx, req, body)
}

// cmdSetCookies prompts for a cookie header and arms a pending step: the
// next message (or uploaded file) from the chat is parsed as cookies.
func (s *Service) cmdSetCookies(cm *router.CommandManager) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		cm.SetPending(req.Chat.ChatID, s.handleCookiePayload)
		return reply(ctx, req, strings.Join([]string{
			"*UPLOAD COOKIES*",
			rule,
			"",
			"Send your cookie header as text or upload a cookies.txt file.",
			"Format: `cookie1=value1; cookie2=value2; ...`",
			"",
			"Copy from browser DevTools (Network tab)",
			"",
			rule,
		}, "\n"))
	}
}

func (s *Service) handleCookiePayload(ctx context.Context, req *router.Request) error {
	msg := req.Update.Message

	var raw string
	switch {
	case msg.Document != nil:
		if req.Files == nil {
			return reply(ctx, req, "❌ *File downloads are not supported here.*\nPaste the cookie header as text instead.")
		}
		data, err := req.Files.DownloadFile(ctx, msg.Document.FileID, maxCookieFileBytes)
		if err != nil {
			req.Logger.Warn("cookie file download failed", logx.Err(err))
			return reply(ctx, req, "❌ *Error:* "+err.Error())
		}
		raw = string(data)
	default:
		raw = msg.Text
	}

	set := session.ParseCookieHeader(strings.TrimSpace(raw))
	if len(set) < session.MinCookies {
		return reply(ctx, req, "❌ *Invalid cookies!*\nPlease send a valid cookie header.")
	}

	if err := session.Save(s.cfg.CookiesPath, set); err != nil {
		req.Logger.Error("cookie save failed", logx.Err(err))
		return reply(ctx, req, "❌ *Error:* "+err.Error())
	}
	req.Logger.Info("cookies saved", logx.Int("count", len(set)))

	return reply(ctx, req, strings.Join([]string{
		"✅ *Cookies saved!*",
		rule,
		fmt.Sprintf("📦 %d cookies saved", len(set)),
		"📁 Location: " + s.cfg.CookiesPath,
		"",
		"Use /startmonitor to begin",
		"",
		rule,
	}, "\n"))
}

func (s *Service) cmdStartMonitor(appCtx context.Context) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		err := s.Start(appCtx)
		switch {
		case errors.Is(err, session.ErrNoCookies):
			return reply(ctx, req, "❌ *No cookies found!*\nUse /setcookies first")
		case errors.Is(err, ErrAlreadyRunning):
			return reply(ctx, req, "⚠️ *Monitor already running!*\nUse /stopmonitor to stop")
		case err != nil:
			return reply(ctx, req, "❌ *Error:* "+err.Error())
		}
		return reply(ctx, req, "🚀 *Starting monitor...*")
	}
}

func (s *Service) cmdStopMonitor(ctx context.Context, req *router.Request) error {
	err := s.Stop(ctx)
	if errors.Is(err, ErrNotRunning) {
		return reply(ctx, req, "⚠️ *Monitor not running!*\nUse /startmonitor to start")
	}
	if err != nil {
		return reply(ctx, req, "❌ *Error:* "+err.Error())
	}
	return reply(ctx, req, "⏹️ *Monitor stopped!*\n\n"+rule)
}

func (s *Service) cmdStatus(ctx context.Context, req *router.Request) error {
	snap := s.ledger.Snapshot()
	st := s.Stats()

	var body string
	switch {
	case st.Running:
		body = strings.Join([]string{
			"✅ *Monitor is RUNNING*",
			rule,
			fmt.Sprintf("📦 Products tracked: %d", snap.Tracked),
			fmt.Sprintf("✅ In-stock: %d", snap.InStock),
			fmt.Sprintf("🔔 Products alerted: %d", snap.Alerted),
			fmt.Sprintf("🔄 Scans: %d", st.Scans),
			"",
			rule,
		}, "\n")
	case session.Exists(s.cfg.CookiesPath):
		body = strings.Join([]string{
			"⏸️ *Monitor is STOPPED*",
			rule,
			"✅ Cookies found",
			"Use /startmonitor to start",
			"",
			rule,
		}, "\n")
	default:
		body = strings.Join([]string{
			"⏸️ *Monitor is STOPPED*",
			rule,
			"❌ No cookies found",
			"Use /setcookies to upload",
			"",
			rule,
		}, "\n")
	}
	return reply(ctx, req, body)
}
