package usecase

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
)

type PriceStatus string

const (
	PriceFresh       PriceStatus = "fresh"
	PriceStale       PriceStatus = "stale"       // last refresh failed, value is from an older table
	PriceUnknown     PriceStatus = "unknown"     // table exists but has no such symbol
	PriceUnavailable PriceStatus = "unavailable" // no table has ever been fetched
)

// PriceQuote is a lookup result. Price is only meaningful when Known() is true.
type PriceQuote struct {
	Symbol string      `json:"symbol"`
	Price  float64     `json:"price"`
	Status PriceStatus `json:"status"`
}

func (q PriceQuote) Known() bool {
	return q.Status == PriceFresh || q.Status == PriceStale
}

// PriceTable maps every spelling seen in one ticker snapshot to a price.
// It is rebuilt wholesale on each refresh.
type PriceTable struct {
	prices  map[string]float64
	builtAt time.Time
}

// spelling precedence when one snapshot quotes an instrument more than once
func spellingRank(market string) int {
	switch {
	case domain.HasExchangePrefix(market):
		return 0
	case market == domain.CanonicalSymbol(market):
		return 1
	default:
		return 2
	}
}

// BuildPriceTable records each ticker under its own spelling and, for
// exchange-prefixed spellings, under the stripped form too. All spellings of
// an instrument end up with the same price.
func BuildPriceTable(tickers []domain.Ticker, now time.Time) *PriceTable {
	type pick struct {
		price float64
		rank  int
	}
	canonical := make(map[string]pick)
	spellings := make(map[string]string) // spelling -> canonical

	for _, t := range tickers {
		if t.Market == "" {
			continue
		}
		price, ok := t.LastPrice.Float()
		if !ok {
			continue
		}
		canon := domain.CanonicalSymbol(t.Market)
		rank := spellingRank(t.Market)
		if cur, exists := canonical[canon]; !exists || rank < cur.rank {
			canonical[canon] = pick{price: price, rank: rank}
		}
		spellings[t.Market] = canon
		if domain.HasExchangePrefix(t.Market) {
			spellings[canon] = canon
		}
	}

	table := &PriceTable{
		prices:  make(map[string]float64, len(spellings)),
		builtAt: now,
	}
	for spelling, canon := range spellings {
		table.prices[spelling] = canonical[canon].price
	}
	return table
}

// Lookup tries the symbol as given, then B-XXX_USDT, then XXX_USDT, then XXXUSDT.
func (t *PriceTable) Lookup(symbol string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	for _, s := range domain.SymbolSpellings(symbol) {
		if p, ok := t.prices[s]; ok {
			return p, true
		}
	}
	return 0, false
}

func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.prices)
}

func (t *PriceTable) BuiltAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.builtAt
}

// PriceCache holds the latest table and whether the last refresh worked.
type PriceCache struct {
	mu       sync.RWMutex
	table    *PriceTable
	lastErr  error
	failedAt time.Time
}

func NewPriceCache() *PriceCache {
	return &PriceCache{}
}

// Replace swaps in a freshly built table.
func (c *PriceCache) Replace(table *PriceTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = table
	c.lastErr = nil
	c.failedAt = time.Time{}
}

// MarkFailed keeps the previous table but flags it stale.
func (c *PriceCache) MarkFailed(err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.failedAt = at
}

func (c *PriceCache) Table() *PriceTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table
}

// Degraded reports a failed last refresh.
func (c *PriceCache) Degraded() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr != nil, c.lastErr
}

func (c *PriceCache) Quote(symbol string) PriceQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := PriceQuote{Symbol: symbol}
	if c.table == nil {
		q.Status = PriceUnavailable
		return q
	}
	p, ok := c.table.Lookup(symbol)
	if !ok {
		q.Status = PriceUnknown
		return q
	}
	q.Price = p
	q.Status = PriceFresh
	if c.lastErr != nil {
		q.Status = PriceStale
	}
	return q
}

// FormatPrice renders a quote with precision tiered by magnitude.
func FormatPrice(price float64, known bool) string {
	if !known || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return "--"
	}
	switch {
	case price >= 10000:
		return fmt.Sprintf("$%.1fK", price/1000)
	case price >= 100:
		return fmt.Sprintf("$%.2f", price)
	case price >= 1:
		return fmt.Sprintf("$%.3f", price)
	default:
		return fmt.Sprintf("$%.6f", price)
	}
}
