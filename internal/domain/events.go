package domain

import "time"

// Push event kinds as sent by the bot.
const (
	EventPriceUpdate  = "price_update"
	EventLevelReached = "level_reached"
	EventTradeClosed  = "trade_closed"
	EventLog          = "log"
	EventConnected    = "connected"
)

type PriceUpdate struct {
	TradeID         string
	CurrentPrice    float64
	CurrentR        float64
	CurrentStopLoss float64
	TakeProfit      float64
	PnL             float64
	PnLPercent      float64
}

type LevelReached struct {
	TradeID     string
	Level       TrailingLevel
	NewStopLoss float64
	Action      string
}

type CloseReason string

const (
	CloseTakeProfit CloseReason = "take_profit"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseManual     CloseReason = "manual"
	CloseOther      CloseReason = "other"
)

type TradeClosed struct {
	TradeID   string
	Reason    string
	ExitPrice float64
	PnL       float64
	HasPnL    bool
}

type BotLog struct {
	TradeID string
	Time    string
	Message string
	Type    string
}

// TradeStatus is the bot's answer to a status query.
type TradeStatus struct {
	Trade  *ActiveTrade
	Status string // ACTIVE, CLOSED_TP, CLOSED_SL, CLOSED_MANUAL
}

func (s TradeStatus) Active() bool {
	return s.Status == "" || s.Status == "ACTIVE"
}

// JournalEntry is one line of the in-session trade journal.
type JournalEntry struct {
	ID        string    `json:"id"`
	TradeID   string    `json:"trade_id"`
	Kind      string    `json:"kind"` // submitted, level, closed, rejected
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	StopLoss  float64   `json:"stop_loss"`
	PnL       float64   `json:"pnl"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
