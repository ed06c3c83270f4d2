package domain

import "context"

// BotClient is the request/response side of the remote trading bot.
type BotClient interface {
	GetTicker(ctx context.Context) ([]Ticker, error)
	StartTrade(ctx context.Context, req TradeRequest) (*ActiveTrade, error)
	StopTrade(ctx context.Context, tradeID string) error
	GetTradeStatus(ctx context.Context, tradeID string) (*TradeStatus, error)
}

// StreamHandler receives the bot's push events. Calls come from a single
// reader goroutine, in arrival order.
type StreamHandler interface {
	OnConnect()
	OnDisconnect(err error)
	OnPriceUpdate(ev PriceUpdate)
	OnLevelReached(ev LevelReached)
	OnTradeClosed(ev TradeClosed)
	OnLog(ev BotLog)
}

// EventStream delivers push events until ctx is cancelled, reconnecting on failure.
type EventStream interface {
	Run(ctx context.Context, h StreamHandler) error
}

// TradeJournal stores what happened during the running session.
type TradeJournal interface {
	SaveEntry(ctx context.Context, e *JournalEntry) error
	ListEntries(ctx context.Context, limit int) ([]*JournalEntry, error)
	ListTradeEntries(ctx context.Context, tradeID string) ([]*JournalEntry, error)
}
