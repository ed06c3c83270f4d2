package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

type EntryMode string

const (
	EntryMarket EntryMode = "MARKET"
	EntryLimit  EntryMode = "LIMIT"
)

// TradeDraft is the trade form while the user is still typing.
// Zero values mean "not entered".
type TradeDraft struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryMode  EntryMode `json:"entry_mode"`
	LimitPrice float64   `json:"limit_price"`
	Capital    float64   `json:"capital"`
	Leverage   float64   `json:"leverage"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
}

// TradeRequest is what gets submitted to the bot. Immutable once sent.
type TradeRequest struct {
	Symbol     string
	Side       Side
	EntryMode  EntryMode
	EntryPrice float64
	Capital    float64
	Leverage   float64
	StopLoss   float64
	TakeProfit float64 // 0 = let the bot pick (2R)
}

// RiskSnapshot is derived from a draft on every input change.
type RiskSnapshot struct {
	Complete        bool    `json:"complete"`
	EntryPrice      float64 `json:"entry_price"`
	PositionValue   float64 `json:"position_value"`
	Quantity        float64 `json:"quantity"`
	RiskPerUnit     float64 `json:"risk_per_unit"`
	RiskAmount      float64 `json:"risk_amount"`
	RiskPercent     float64 `json:"risk_percent"`
	Target2R        float64 `json:"target_2r"`
	PotentialProfit float64 `json:"potential_profit"`
	RewardMultiple  float64 `json:"reward_multiple"` // 0 when no take-profit
}

// ActiveTrade is the client's cache of the bot's authoritative trade.
type ActiveTrade struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Side            Side            `json:"side"`
	EntryMode       EntryMode       `json:"entry_mode"`
	EntryPrice      float64         `json:"entry_price"`
	Capital         float64         `json:"capital"`
	Quantity        float64         `json:"quantity"`
	Leverage        float64         `json:"leverage"`
	InitialStopLoss float64         `json:"initial_stop_loss"`
	CurrentStopLoss float64         `json:"current_stop_loss"`
	TakeProfit      float64         `json:"take_profit"`
	RiskPerUnit     float64         `json:"risk_per_unit"`
	Levels          []TrailingLevel `json:"levels"`
	CurrentLevel    int             `json:"current_level"` // index of highest reached rung, -1 if none
	CreatedAt       time.Time       `json:"created_at"`
}

// Clone returns a deep copy so views never alias the monitor's ladder.
func (t *ActiveTrade) Clone() *ActiveTrade {
	if t == nil {
		return nil
	}
	c := *t
	c.Levels = make([]TrailingLevel, len(t.Levels))
	copy(c.Levels, t.Levels)
	return &c
}

// TradeDisplay holds the transient fields refreshed by ticks.
type TradeDisplay struct {
	CurrentPrice float64   `json:"current_price"`
	CurrentR     float64   `json:"current_r"`
	PnL          float64   `json:"pnl"`
	PnLPercent   float64   `json:"pnl_percent"`
	StopLossEcho float64   `json:"stop_loss_echo"`
	LastAction   string    `json:"last_action"`
	Source       string    `json:"source"` // "push" or "poll"
	UpdatedAt    time.Time `json:"updated_at"`
}
