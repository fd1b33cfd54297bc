package router

import (
	"fmt"
	"strconv"
	"time"

	"github.com/normanking/centavo/internal/prefs"
	"github.com/normanking/centavo/internal/render"
)

// shapePrice pulls the spot-price fields out of a capability payload.
// Missing fields come back as zero values; the renderer tolerates those.
func shapePrice(data map[string]any) (price float64, freshness time.Duration, asOf time.Time) {
	price = asFloat(data["price"])
	freshness = time.Duration(asFloat(data["freshness_sec"])) * time.Second
	asOf = asTime(data["as_of"])
	return price, freshness, asOf
}

// shapeReport maps a portfolio/report/transactions payload onto the
// renderer's report type.
func shapeReport(data map[string]any) render.Report {
	rep := render.Report{
		Title:        asString(data["title"]),
		TotalValue:   asFloat(data["total_value"]),
		MovePct:      asFloat(data["move_pct"]),
		TxCount:      int(asFloat(data["tx_count"])),
		PricedAssets: int(asFloat(data["priced_assets"])),
		CashFlow:     asFloat(data["cash_flow"]),
		Staleness:    time.Duration(asFloat(data["staleness_sec"])) * time.Second,
		AsOf:         asTime(data["as_of"]),
	}
	assets, _ := data["assets"].([]any)
	for _, a := range assets {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		rep.Lines = append(rep.Lines, render.AssetLine{
			Symbol: asString(m["symbol"]),
			Amount: asFloat(m["amount"]),
			Value:  asFloat(m["value"]),
		})
	}
	if rep.PricedAssets == 0 {
		rep.PricedAssets = len(rep.Lines)
	}
	return rep
}

// statusText renders the exchange-link health payload.
func statusText(data map[string]any) string {
	connected, _ := data["connected"].(bool)
	if !connected {
		return "Exchange link: disconnected. Reconnect the account in settings."
	}
	if latency := asFloat(data["latency_ms"]); latency > 0 {
		return fmt.Sprintf("Exchange link: connected (latency %dms).", int(latency))
	}
	return "Exchange link: connected."
}

// renderOptions builds formatting options from the user's preference
// document, falling back to the defaults for anything unset.
func renderOptions(doc prefs.Document, tone render.Tone) render.Options {
	opts := render.DefaultOptions()
	opts.Tone = tone
	if v, ok := doc.Values["decimals"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Decimals = n
		}
	}
	if v, ok := doc.Values["date_format"]; ok {
		opts.DateFormat = v
	}
	if v, ok := doc.Values["show_cash_flow"]; ok {
		opts.ShowCashFlow = v == "on"
	}
	if v, ok := doc.Values["show_timestamp"]; ok {
		opts.ShowTimestamp = v == "on"
	}
	if v, ok := doc.Values["show_freshness"]; ok {
		opts.ShowFreshness = v == "on"
	}
	return opts
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
