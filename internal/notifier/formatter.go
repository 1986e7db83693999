package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"MarketSync/internal/model"
)

// PassOutcomes groups per-ticker outcomes by granularity.
type PassOutcomes map[model.Granularity]map[string]model.SyncOutcome

// FormatPassSummary renders a pass report. With failuresOnly set, tickers
// that did not fail are counted but not listed.
func FormatPassSummary(runID string, at time.Time, outcomes PassOutcomes, failuresOnly bool) string {
	var b strings.Builder
	title := "Sync pass"
	if failuresOnly {
		title = "⚠️ Sync failures"
	}
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n", title, at.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("<code>%s</code>\n", runID))

	for _, g := range model.Granularities {
		byTicker, ok := outcomes[g]
		if !ok {
			continue
		}
		counts := make(map[model.OutcomeStatus]int)
		for _, o := range byTicker {
			counts[o.Status]++
		}
		b.WriteString(fmt.Sprintf("\n<b>%s</b>: %d updated, %d up to date, %d no data, %d failed\n",
			g, counts[model.StatusUpdated], counts[model.StatusUpToDate],
			counts[model.StatusNoNewData], counts[model.StatusFailed]))

		for _, ticker := range sortedTickers(byTicker) {
			o := byTicker[ticker]
			if failuresOnly && !o.Failed() {
				continue
			}
			b.WriteString(fmt.Sprintf("  %s %s: %s\n", statusIcon(o.Status), html.EscapeString(ticker), html.EscapeString(o.String())))
		}
	}
	return b.String()
}

// FormatRSIAlert formats a zone change for one series.
func FormatRSIAlert(a *model.RSIAlert) string {
	r := a.Reading
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b> %s RSI(%d) %.2f\n", zoneIcon(a.Zone), html.EscapeString(r.Ticker), r.Granularity, r.Period, r.RSI))
	b.WriteString(fmt.Sprintf("Zone: %s (was %s)\n", a.Label, a.Previous))
	b.WriteString(fmt.Sprintf("Close: %.2f @ %s\n", r.Close, r.Granularity.FormatTimestamp(r.Time)))
	return b.String()
}

// FormatReadings renders the latest RSI of each series of one ticker.
func FormatReadings(ticker string, readings []model.RSIReading) string {
	if len(readings) == 0 {
		return fmt.Sprintf("No stored data for %s", html.EscapeString(ticker))
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b>\n", html.EscapeString(ticker)))
	for _, r := range readings {
		b.WriteString(fmt.Sprintf("  %s: RSI(%d) %.2f, close %.2f @ %s\n",
			r.Granularity, r.Period, r.RSI, r.Close, r.Granularity.FormatTimestamp(r.Time)))
	}
	return b.String()
}

// FormatHelp lists the chat commands.
func FormatHelp() string {
	return "<b>MarketSync commands</b>\n" +
		"/status - last sync pass per granularity\n" +
		"/sync [daily|hourly|5m] - run a sync pass now\n" +
		"/rsi TICKER - latest RSI for a ticker\n" +
		"/help - this message"
}

func sortedTickers(m map[string]model.SyncOutcome) []string {
	tickers := make([]string, 0, len(m))
	for t := range m {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

func statusIcon(s model.OutcomeStatus) string {
	switch s {
	case model.StatusUpdated:
		return "✅"
	case model.StatusFailed:
		return "❌"
	case model.StatusNoNewData:
		return "➖"
	default:
		return "✔️"
	}
}

func zoneIcon(z model.RSIZone) string {
	switch z {
	case model.ZoneExtremeOversold, model.ZoneOversold:
		return "🟢"
	case model.ZoneExtremeOverbought, model.ZoneOverbought:
		return "🔴"
	default:
		return "⚪"
	}
}
