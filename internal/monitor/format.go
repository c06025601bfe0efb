package monitor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"wishbot/internal/catalog"
)

const (
	storefrontBase = "https://www.sheinindia.in"
	rule           = "━━━━━━━━━━━━━━━━"
	ruleWide       = "━━━━━━━━━━━━━━━━━━━━━━"
)

// Catalog URLs carry a per-variant slug before the .html suffix; stripping it
// yields the canonical product page.
var variantSlugRe = regexp.MustCompile(`(?i)-[a-z0-9]+\.html$`)

func productURL(raw, code string) string {
	if raw == "" {
		return storefrontBase + "/product-" + code + ".html"
	}
	clean := variantSlugRe.ReplaceAllString(raw, ".html")
	if strings.HasPrefix(clean, "http") {
		return clean
	}
	return storefrontBase + clean
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatAlert(rec catalog.StockRecord, alertNum, maxAlerts int) string {
	sizes := strings.Join(rec.Sizes, ", ")
	if sizes == "" {
		sizes = "N/A"
	}
	return strings.Join([]string{
		"🔔 *IN-STOCK ALERT!*",
		rule,
		"📦 Product: " + rec.Name,
		"📏 Sizes in stock: " + sizes,
		"💰 Price: Rs." + formatPrice(rec.Price),
		"🔖 Code: `" + rec.Code + "`",
		rule,
		"🛒 [OPEN PRODUCT](" + productURL(rec.URL, rec.Code) + ")",
		fmt.Sprintf("🔔 Alert %d/%d", alertNum, maxAlerts),
		"",
		rule,
	}, "\n")
}

func formatStartup(total, inStock int, interval time.Duration, maxAlerts int) string {
	return strings.Join([]string{
		"🚀 *WISHLIST MONITOR*",
		ruleWide,
		fmt.Sprintf("📦 Total products: %d", total),
		fmt.Sprintf("✅ In-stock: %d", inStock),
		fmt.Sprintf("❌ Out-of-stock: %d", total-inStock),
		"⏱️ Check interval: " + interval.String(),
		fmt.Sprintf("🔔 Max alerts per product: %d", maxAlerts),
		ruleWide,
		"✅ Monitor is running...",
		"💬 You'll get alerts when stock changes!",
		"",
		ruleWide,
	}, "\n")
}

func formatMonitorError(err error) string {
	return strings.Join([]string{
		"❌ *Monitor Error*",
		err.Error(),
		"",
		rule,
	}, "\n")
}

func formatSummary(tracked, inStock, alerted int, scans uint64, since time.Time) string {
	return strings.Join([]string{
		"📊 *Daily Summary*",
		rule,
		fmt.Sprintf("📦 Products tracked: %d", tracked),
		fmt.Sprintf("✅ In-stock: %d", inStock),
		fmt.Sprintf("🔔 Products alerted: %d", alerted),
		fmt.Sprintf("🔄 Scans since start: %d", scans),
		"⏱️ Running since: " + since.Format("2006-01-02 15:04"),
		rule,
	}, "\n")
}
