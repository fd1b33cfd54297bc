package symbols

import "strings"

// Canonical is the set of tickers the exchange integration can quote.
// Keys are upper-case base symbols.
var Canonical = map[string]bool{
	"BTC":   true,
	"ETH":   true,
	"SOL":   true,
	"DOGE":  true,
	"ADA":   true,
	"XRP":   true,
	"LTC":   true,
	"DOT":   true,
	"AVAX":  true,
	"LINK":  true,
	"MATIC": true,
	"UNI":   true,
	"ATOM":  true,
	"ALGO":  true,
	"XLM":   true,
	"BCH":   true,
	"ETC":   true,
	"SHIB":  true,
	"USDT":  true,
	"USDC":  true,
}

// Aliases maps full asset names (lower-case) to their canonical ticker.
var Aliases = map[string]string{
	"bitcoin":      "BTC",
	"ethereum":     "ETH",
	"ether":        "ETH",
	"solana":       "SOL",
	"dogecoin":     "DOGE",
	"doge coin":    "DOGE",
	"cardano":      "ADA",
	"ripple":       "XRP",
	"litecoin":     "LTC",
	"polkadot":     "DOT",
	"avalanche":    "AVAX",
	"chainlink":    "LINK",
	"polygon":      "MATIC",
	"uniswap":      "UNI",
	"cosmos":       "ATOM",
	"algorand":     "ALGO",
	"stellar":      "XLM",
	"bitcoin cash": "BCH",
	"shiba":        "SHIB",
	"shiba inu":    "SHIB",
	"tether":       "USDT",
}

// Quotes is the set of accepted quote currencies for explicit pairs.
var Quotes = map[string]bool{
	"USD":  true,
	"USDT": true,
	"USDC": true,
	"EUR":  true,
	"GBP":  true,
	"BTC":  true,
	"ETH":  true,
}

// DefaultQuote is appended when the user names only a base asset.
const DefaultQuote = "USD"

// stopWords are tokens that never resolve to an asset, no matter how close
// the edit distance gets.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "buy": true,
	"chart": true, "check": true, "coin": true, "crypto": true,
	"current": true, "for": true, "get": true, "give": true, "how": true,
	"in": true, "is": true, "latest": true, "me": true, "much": true,
	"my": true, "now": true, "of": true, "on": true, "please": true,
	"price": true, "prices": true, "quote": true, "rate": true,
	"sell": true, "show": true, "the": true, "to": true, "today": true,
	"value": true, "what": true, "whats": true, "worth": true,
}

// IsKnown reports whether the token names a canonical symbol or alias,
// in any case. Used by the classifier as a domain marker check.
func IsKnown(token string) bool {
	if Canonical[strings.ToUpper(token)] {
		return true
	}
	_, ok := Aliases[strings.ToLower(token)]
	return ok
}
