package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
	"go.uber.org/zap"
)

// Observer is a presentation collaborator notified after each applied event.
// Calls arrive sequentially, in the order effects were produced. Notify must
// not block on the service that delivers it.
type Observer interface {
	Notify(effect Effect, state MonitorState)
}

type ObserverFunc func(effect Effect, state MonitorState)

func (f ObserverFunc) Notify(effect Effect, state MonitorState) { f(effect, state) }

type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertSuccess AlertLevel = "success"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

// Alert is a user-facing notice. Loud alerts are the ones a UI would beep for.
type Alert struct {
	Time    time.Time  `json:"time"`
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	TradeID string     `json:"trade_id,omitempty"`
	Loud    bool       `json:"loud"`
}

// BuildAlert turns an effect into an alert. Effects without a user-facing
// meaning return false.
func BuildAlert(effect Effect) (Alert, bool) {
	switch effect.Kind {
	case EffectTradeOpened:
		msg := "Bot started"
		if t := effect.Trade; t != nil {
			msg = fmt.Sprintf("%s %s @ %.2f, SL %.2f", t.Side, t.Symbol, t.EntryPrice, t.CurrentStopLoss)
		}
		return Alert{Level: AlertSuccess, Title: "Bot started!", Message: msg, TradeID: effect.TradeID, Loud: true}, true

	case EffectSubmitFailed:
		msg := "Failed to start"
		if effect.Err != nil {
			msg = effect.Err.Error()
		}
		return Alert{Level: AlertError, Title: "Start failed", Message: msg}, true

	case EffectLevelReached:
		if effect.Level == nil {
			return Alert{}, false
		}
		sl := effect.Level.NewStopLoss
		if effect.Trade != nil {
			sl = effect.Trade.CurrentStopLoss
		}
		return Alert{
			Level:   AlertWarning,
			Title:   fmt.Sprintf("%gR Target Hit!", effect.Level.R),
			Message: fmt.Sprintf("SL trailed to $%.2f\n\n%s", sl, effect.Reason),
			TradeID: effect.TradeID,
			Loud:    true,
		}, true

	case EffectTradeClosed:
		c := effect.Close
		if c == nil {
			return Alert{}, false
		}
		title := "Stop Loss Hit!"
		level := AlertError
		switch c.Kind {
		case domain.CloseTakeProfit:
			title, level = "Take Profit Hit!", AlertSuccess
		case domain.CloseManual:
			title, level = "Trade closed", AlertInfo
		case domain.CloseOther:
			title, level = "Trade closed", AlertWarning
		}
		msg := fmt.Sprintf("Exit: $%.2f", c.ExitPrice)
		if c.HasPnL {
			msg += fmt.Sprintf("\nProfit: $%.2f", c.PnL)
		}
		return Alert{Level: level, Title: title, Message: msg, TradeID: c.TradeID, Loud: true}, true

	case EffectStopFailed:
		return Alert{Level: AlertError, Title: "Error closing", Message: errText(effect.Err), TradeID: effect.TradeID}, true

	case EffectStreamStatus:
		if effect.Reason == "connected" {
			return Alert{Level: AlertSuccess, Title: "Connected to server"}, true
		}
		return Alert{Level: AlertError, Title: "Disconnected", Message: errText(effect.Err)}, true

	case EffectPriceFeed:
		if effect.Reason == "degraded" {
			return Alert{Level: AlertWarning, Title: "Price feed degraded", Message: errText(effect.Err)}, true
		}
		return Alert{Level: AlertInfo, Title: "Price feed restored"}, true
	}
	return Alert{}, false
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// AlertFeed keeps the most recent alerts for the dashboard.
type AlertFeed struct {
	mu      sync.RWMutex
	alerts  []Alert
	max     int
	timeNow func() time.Time
	logger  *zap.Logger
}

func NewAlertFeed(max int, logger *zap.Logger) *AlertFeed {
	if max <= 0 {
		max = 50
	}
	return &AlertFeed{max: max, timeNow: time.Now, logger: logger}
}

func (f *AlertFeed) Notify(effect Effect, _ MonitorState) {
	a, ok := BuildAlert(effect)
	if !ok {
		return
	}
	a.Time = f.timeNow()

	f.mu.Lock()
	f.alerts = append([]Alert{a}, f.alerts...)
	if len(f.alerts) > f.max {
		f.alerts = f.alerts[:f.max]
	}
	f.mu.Unlock()

	if f.logger != nil {
		f.logger.Info("Alert",
			zap.String("level", string(a.Level)),
			zap.String("title", a.Title),
			zap.String("message", a.Message),
			zap.String("trade_id", a.TradeID))
	}
}

// Recent returns alerts newest first.
func (f *AlertFeed) Recent() []Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Alert, len(f.alerts))
	copy(out, f.alerts)
	return out
}
