package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// demoExecutor serves canned exchange payloads so the CLI works without
// a linked account. The authenticated exchange client replaces this once
// its OAuth flow ships.
type demoExecutor struct{}

var demoPrices = map[string]float64{
	"BTC-USD":  43250.12,
	"ETH-USD":  2310.44,
	"SOL-USD":  98.72,
	"DOGE-USD": 0.0812,
	"ADA-USD":  0.4821,
}

func (demoExecutor) Invoke(ctx context.Context, name string, input map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	switch name {
	case "price":
		pair, _ := input["pair"].(string)
		price, ok := demoPrices[strings.ToUpper(pair)]
		if !ok {
			return fmt.Sprintf(`{"ok":false,"errorCode":"TOOL_EXECUTION_FAILED","safeMessage":"No market data for %s."}`, pair), nil
		}
		return marshal(map[string]any{
			"ok": true, "pair": pair, "price": price,
			"freshness_sec": 8, "as_of": now,
		})
	case "portfolio":
		return marshal(map[string]any{
			"ok": true, "title": "Portfolio", "total_value": 30107.06,
			"move_pct": 3.2, "tx_count": 5, "cash_flow": 120.5,
			"staleness_sec": 20, "as_of": now,
			"assets": []map[string]any{
				{"symbol": "BTC", "amount": 0.5, "value": 21625.06},
				{"symbol": "ETH", "amount": 3.2, "value": 7393.41},
				{"symbol": "DOGE", "amount": 13400.0, "value": 1088.59},
			},
		})
	case "transactions":
		return marshal(map[string]any{
			"ok": true, "title": "Recent transactions", "total_value": 412.33,
			"tx_count": 3, "staleness_sec": 15, "as_of": now,
			"assets": []map[string]any{
				{"symbol": "BTC", "amount": 0.004, "value": 173.0},
				{"symbol": "SOL", "amount": 2.4, "value": 236.93},
			},
		})
	case "reports":
		return marshal(map[string]any{
			"ok": true, "title": "Weekly report", "total_value": 30107.06,
			"move_pct": -1.4, "tx_count": 9, "cash_flow": -220.0,
			"staleness_sec": 45, "as_of": now,
			"assets": []map[string]any{
				{"symbol": "BTC", "amount": 0.5, "value": 21625.06},
				{"symbol": "ETH", "amount": 3.2, "value": 7393.41},
			},
		})
	case "status":
		return marshal(map[string]any{"ok": true, "connected": true, "latency_ms": 42})
	default:
		return fmt.Sprintf(`{"ok":false,"errorCode":"TOOL_NOT_ENABLED","safeMessage":"Unknown capability %s."}`, name), nil
	}
}

func marshal(v map[string]any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
