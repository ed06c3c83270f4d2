package bot

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
)

// Request and response documents exactly as the bot speaks them.

type startRequest struct {
	Coin       string  `json:"coin"`
	TradeType  string  `json:"trade_type"`
	EntryType  string  `json:"entry_type"`
	EntryPrice float64 `json:"entry_price"`
	Capital    float64 `json:"capital"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Leverage   float64 `json:"leverage"`
}

func newStartRequest(req domain.TradeRequest) startRequest {
	return startRequest{
		Coin:       req.Symbol,
		TradeType:  string(req.Side),
		EntryType:  string(req.EntryMode),
		EntryPrice: req.EntryPrice,
		Capital:    req.Capital,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Leverage:   req.Leverage,
	}
}

type startResponse struct {
	Success bool      `json:"success"`
	TradeID string    `json:"trade_id"`
	Trade   *tradeDoc `json:"trade"`
	Error   string    `json:"error"`
}

type ackResponse struct {
	Success   bool    `json:"success"`
	Error     string  `json:"error"`
	ExitPrice float64 `json:"exit_price"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type tradeDoc struct {
	ID             string                 `json:"id"`
	Coin           string                 `json:"coin"`
	TradeType      string                 `json:"trade_type"`
	EntryType      string                 `json:"entry_type"`
	EntryPrice     float64                `json:"entry_price"`
	Capital        float64                `json:"capital"`
	Quantity       float64                `json:"quantity"`
	StopLoss       float64                `json:"stop_loss"`
	CurrentSL      float64                `json:"current_sl"`
	TakeProfit     float64                `json:"take_profit"`
	Leverage       float64                `json:"leverage"`
	RiskPerUnit    float64                `json:"risk_per_unit"`
	TrailingLevels []domain.TrailingLevel `json:"trailing_levels"`
	CurrentLevel   *int                   `json:"current_level"`
	Status         string                 `json:"status"`
	CreatedAt      string                 `json:"created_at"`
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseCreatedAt(s string) time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (d *tradeDoc) toDomain() *domain.ActiveTrade {
	t := &domain.ActiveTrade{
		ID:              d.ID,
		Symbol:          d.Coin,
		Side:            domain.Side(strings.ToUpper(d.TradeType)),
		EntryMode:       domain.EntryMode(strings.ToUpper(d.EntryType)),
		EntryPrice:      d.EntryPrice,
		Capital:         d.Capital,
		Quantity:        d.Quantity,
		Leverage:        d.Leverage,
		InitialStopLoss: d.StopLoss,
		CurrentStopLoss: d.CurrentSL,
		TakeProfit:      d.TakeProfit,
		RiskPerUnit:     d.RiskPerUnit,
		Levels:          d.TrailingLevels,
		CurrentLevel:    -1,
		CreatedAt:       parseCreatedAt(d.CreatedAt),
	}
	if d.CurrentLevel != nil {
		t.CurrentLevel = *d.CurrentLevel
	}
	if t.CurrentStopLoss == 0 {
		t.CurrentStopLoss = d.StopLoss
	}
	return t
}

type testResponse struct {
	Status     string          `json:"status"`
	BTCPrice   json.RawMessage `json:"btc_price"`
	AuthStatus string          `json:"auth_status"`
	Error      string          `json:"error"`
}

// Push envelope: {"event": kind, "data": {...}}
type pushEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type priceUpdateDoc struct {
	TradeID      string  `json:"trade_id"`
	CurrentPrice float64 `json:"current_price"`
	CurrentRR    float64 `json:"current_rr"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`
	CurrentSL    float64 `json:"current_sl"`
	TakeProfit   float64 `json:"take_profit"`
}

func (d priceUpdateDoc) toDomain() domain.PriceUpdate {
	return domain.PriceUpdate{
		TradeID:         d.TradeID,
		CurrentPrice:    d.CurrentPrice,
		CurrentR:        d.CurrentRR,
		CurrentStopLoss: d.CurrentSL,
		TakeProfit:      d.TakeProfit,
		PnL:             d.PnL,
		PnLPercent:      d.PnLPercent,
	}
}

type levelReachedDoc struct {
	TradeID string               `json:"trade_id"`
	Level   domain.TrailingLevel `json:"level"`
	NewSL   float64              `json:"new_sl"`
	Action  string               `json:"action"`
}

func (d levelReachedDoc) toDomain() domain.LevelReached {
	return domain.LevelReached{TradeID: d.TradeID, Level: d.Level, NewStopLoss: d.NewSL, Action: d.Action}
}

type tradeClosedDoc struct {
	TradeID   string   `json:"trade_id"`
	Reason    string   `json:"reason"`
	ExitPrice float64  `json:"exit_price"`
	PnL       *float64 `json:"pnl"`
}

func (d tradeClosedDoc) toDomain() domain.TradeClosed {
	c := domain.TradeClosed{TradeID: d.TradeID, Reason: d.Reason, ExitPrice: d.ExitPrice}
	if d.PnL != nil {
		c.PnL = *d.PnL
		c.HasPnL = true
	}
	return c
}

type logDoc struct {
	TradeID string `json:"trade_id"`
	Log     struct {
		Time    string `json:"time"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"log"`
}

func (d logDoc) toDomain() domain.BotLog {
	return domain.BotLog{TradeID: d.TradeID, Time: d.Log.Time, Message: d.Log.Message, Type: d.Log.Type}
}
