package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	exchangePrefix = "B-"
	quoteUSDT      = "USDT"
)

// Ticker is one row of the bot's ticker snapshot.
type Ticker struct {
	Market    string      `json:"market"`
	LastPrice TickerPrice `json:"last_price"`
}

// TickerPrice accepts both JSON numbers and numeric strings.
type TickerPrice string

func (p *TickerPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = TickerPrice(strings.TrimSpace(s))
		return nil
	}
	*p = TickerPrice(data)
	return nil
}

// Float parses the price. ok is false for empty, unparseable or non-positive values.
func (p TickerPrice) Float() (float64, bool) {
	f, err := strconv.ParseFloat(string(p), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

// Pair is a watched instrument shown on the dashboard.
type Pair struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name"`
}

func DefaultPairs() []Pair {
	return []Pair{
		{Symbol: "BTCUSDT", Name: "Bitcoin"},
		{Symbol: "ETHUSDT", Name: "Ethereum"},
		{Symbol: "SOLUSDT", Name: "Solana"},
		{Symbol: "XRPUSDT", Name: "XRP"},
		{Symbol: "DOGEUSDT", Name: "Dogecoin"},
		{Symbol: "ADAUSDT", Name: "Cardano"},
	}
}

// HasExchangePrefix reports whether the spelling is the futures form (B-XXX_USDT).
func HasExchangePrefix(symbol string) bool {
	return strings.HasPrefix(symbol, exchangePrefix)
}

// CanonicalSymbol maps any spelling to the plain form: B-BTC_USDT, BTC_USDT -> BTCUSDT.
func CanonicalSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimPrefix(s, exchangePrefix)
	return strings.ReplaceAll(s, "_", "")
}

// UnderscoreSymbol returns the XXX_USDT spelling.
func UnderscoreSymbol(symbol string) string {
	c := CanonicalSymbol(symbol)
	if strings.HasSuffix(c, quoteUSDT) && len(c) > len(quoteUSDT) {
		return strings.TrimSuffix(c, quoteUSDT) + "_" + quoteUSDT
	}
	return c
}

// ExchangeSymbol returns the B-XXX_USDT spelling.
func ExchangeSymbol(symbol string) string {
	return exchangePrefix + UnderscoreSymbol(symbol)
}

// SymbolSpellings lists lookup candidates in resolution order.
func SymbolSpellings(symbol string) []string {
	given := strings.TrimSpace(symbol)
	candidates := []string{given, ExchangeSymbol(given), UnderscoreSymbol(given), CanonicalSymbol(given)}

	out := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
