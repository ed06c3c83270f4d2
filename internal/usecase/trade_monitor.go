package usecase

import (
	"errors"
	"strings"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseActive     Phase = "active"
	PhaseClosed     Phase = "closed" // transient, always followed by idle
)

// ClosedTrade summarises the last trade the bot closed.
type ClosedTrade struct {
	TradeID   string             `json:"trade_id"`
	Symbol    string             `json:"symbol"`
	Reason    string             `json:"reason"`
	Kind      domain.CloseReason `json:"kind"`
	ExitPrice float64            `json:"exit_price"`
	PnL       float64            `json:"pnl"`
	HasPnL    bool               `json:"has_pnl"`
	ClosedAt  time.Time          `json:"closed_at"`
}

// MonitorState is the single view of at most one trade.
type MonitorState struct {
	Phase           Phase                `json:"phase"`
	Pending         *domain.TradeRequest `json:"pending,omitempty"`
	Trade           *domain.ActiveTrade  `json:"trade,omitempty"`
	Display         domain.TradeDisplay  `json:"display"`
	StopPending     bool                 `json:"stop_pending"`
	NeedsResync     bool                 `json:"needs_resync"`
	StreamConnected bool                 `json:"stream_connected"`
	PricesDegraded  bool                 `json:"prices_degraded"`
	LastClose       *ClosedTrade         `json:"last_close,omitempty"`
}

func NewMonitorState() MonitorState {
	return MonitorState{Phase: PhaseIdle}
}

// Clone deep-copies the state so callers can hold it across events.
func (s MonitorState) Clone() MonitorState {
	c := s
	c.Trade = s.Trade.Clone()
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	if s.LastClose != nil {
		lc := *s.LastClose
		c.LastClose = &lc
	}
	return c
}

func (s MonitorState) activeTrade(id string) bool {
	return s.Phase == PhaseActive && s.Trade != nil && s.Trade.ID == id
}

// Events

type Event interface {
	Name() string
}

type SubmitRequested struct{ Request domain.TradeRequest }
type SubmitSucceeded struct{ Trade *domain.ActiveTrade }
type SubmitFailed struct{ Err error }
type StopRequested struct{ TradeID string }
type StopFailed struct {
	TradeID string
	Err     error
}
type PushPriceUpdated struct {
	Update domain.PriceUpdate
	At     time.Time
}
type PushLevelReached struct {
	Level domain.LevelReached
	At    time.Time
}
type PushTradeClosed struct {
	Close domain.TradeClosed
	At    time.Time
}

// PricesRefreshed carries a poll result. TradeID is the trade that was
// active when the poll started.
type PricesRefreshed struct {
	TradeID string
	Table   *PriceTable
	At      time.Time
}
type PricesFailed struct {
	Err error
	At  time.Time
}
type StreamConnected struct{}
type StreamDisconnected struct{ Err error }
type TradeSynced struct {
	TradeID string
	Status  *domain.TradeStatus
	Err     error
	At      time.Time
}

func (SubmitRequested) Name() string    { return "submit_requested" }
func (SubmitSucceeded) Name() string    { return "submit_succeeded" }
func (SubmitFailed) Name() string       { return "submit_failed" }
func (StopRequested) Name() string      { return "stop_requested" }
func (StopFailed) Name() string         { return "stop_failed" }
func (PushPriceUpdated) Name() string   { return domain.EventPriceUpdate }
func (PushLevelReached) Name() string   { return domain.EventLevelReached }
func (PushTradeClosed) Name() string    { return domain.EventTradeClosed }
func (PricesRefreshed) Name() string    { return "prices_refreshed" }
func (PricesFailed) Name() string       { return "prices_failed" }
func (StreamConnected) Name() string    { return "stream_connected" }
func (StreamDisconnected) Name() string { return "stream_disconnected" }
func (TradeSynced) Name() string        { return "trade_synced" }

// Effects

type EffectKind string

const (
	EffectPhaseChanged    EffectKind = "phase_changed"
	EffectTradeOpened     EffectKind = "trade_opened"
	EffectSubmitFailed    EffectKind = "submit_failed"
	EffectLevelReached    EffectKind = "level_reached"
	EffectTradeClosed     EffectKind = "trade_closed"
	EffectStopRequested   EffectKind = "stop_requested"
	EffectStopFailed      EffectKind = "stop_failed"
	EffectResyncRequested EffectKind = "resync_requested"
	EffectResynced        EffectKind = "resynced"
	EffectStreamStatus    EffectKind = "stream_status"
	EffectPriceFeed       EffectKind = "price_feed"
	EffectDropped         EffectKind = "dropped"
)

// Effect is what observers (alerts, sound, journal) react to.
type Effect struct {
	Kind    EffectKind
	From    Phase
	To      Phase
	TradeID string
	Trade   *domain.ActiveTrade
	Level   *domain.TrailingLevel
	Close   *ClosedTrade
	Event   string
	Reason  string
	Err     error
}

func phaseChange(from, to Phase, tradeID string) Effect {
	return Effect{Kind: EffectPhaseChanged, From: from, To: to, TradeID: tradeID}
}

func dropped(ev Event, tradeID, reason string) Effect {
	return Effect{Kind: EffectDropped, Event: ev.Name(), TradeID: tradeID, Reason: reason}
}

// Transition applies one event. It never mutates its input and has no I/O.
func Transition(s MonitorState, ev Event) (MonitorState, []Effect) {
	next := s.Clone()

	switch e := ev.(type) {
	case SubmitRequested:
		if s.Phase != PhaseIdle {
			return s, []Effect{dropped(ev, "", "trade already in flight")}
		}
		req := e.Request
		next.Phase = PhaseSubmitting
		next.Pending = &req
		return next, []Effect{phaseChange(PhaseIdle, PhaseSubmitting, "")}

	case SubmitSucceeded:
		if s.Phase != PhaseSubmitting {
			return s, []Effect{dropped(ev, "", "no submission in flight")}
		}
		if e.Trade == nil || e.Trade.ID == "" {
			return submitFailed(next, errors.New("bot returned no trade"))
		}
		next.Phase = PhaseActive
		next.Pending = nil
		next.Trade = e.Trade.Clone()
		next.Display = domain.TradeDisplay{StopLossEcho: e.Trade.CurrentStopLoss}
		next.StopPending = false
		next.NeedsResync = false
		return next, []Effect{
			phaseChange(PhaseSubmitting, PhaseActive, e.Trade.ID),
			{Kind: EffectTradeOpened, TradeID: e.Trade.ID, Trade: e.Trade.Clone()},
		}

	case SubmitFailed:
		if s.Phase != PhaseSubmitting {
			return s, []Effect{dropped(ev, "", "no submission in flight")}
		}
		return submitFailed(next, e.Err)

	case PushPriceUpdated:
		u := e.Update
		if !s.activeTrade(u.TradeID) {
			return s, []Effect{dropped(ev, u.TradeID, "no matching active trade")}
		}
		next.Display.CurrentPrice = u.CurrentPrice
		next.Display.CurrentR = u.CurrentR
		next.Display.PnL = u.PnL
		next.Display.PnLPercent = u.PnLPercent
		next.Display.StopLossEcho = u.CurrentStopLoss
		next.Display.Source = "push"
		next.Display.UpdatedAt = e.At

		if !s.NeedsResync || u.CurrentStopLoss <= 0 {
			return next, nil
		}
		// first authoritative event after a reconnect refreshes the stop
		next.Trade.CurrentStopLoss = u.CurrentStopLoss
		if u.TakeProfit > 0 {
			next.Trade.TakeProfit = u.TakeProfit
		}
		next.NeedsResync = false
		return next, []Effect{{Kind: EffectResynced, TradeID: u.TradeID, Event: ev.Name()}}

	case PushLevelReached:
		lr := e.Level
		if !s.activeTrade(lr.TradeID) {
			return s, []Effect{dropped(ev, lr.TradeID, "no matching active trade")}
		}
		idx := FindLevel(next.Trade.Levels, lr.Level.R)
		if idx < 0 {
			return s, []Effect{dropped(ev, lr.TradeID, "level not on ladder")}
		}
		if next.Trade.Levels[idx].Reached {
			return s, []Effect{dropped(ev, lr.TradeID, "level already reached")}
		}
		// reaching a rung implies every lower rung was passed
		for i := 0; i <= idx; i++ {
			next.Trade.Levels[i].Reached = true
		}
		if idx > next.Trade.CurrentLevel {
			next.Trade.CurrentLevel = idx
		}
		if lr.NewStopLoss > 0 {
			next.Trade.CurrentStopLoss = lr.NewStopLoss
			next.Display.StopLossEcho = lr.NewStopLoss
		}
		action := lr.Action
		if action == "" {
			action = next.Trade.Levels[idx].Action
		}
		next.Display.LastAction = action
		next.NeedsResync = false

		level := next.Trade.Levels[idx]
		return next, []Effect{{
			Kind:    EffectLevelReached,
			TradeID: lr.TradeID,
			Trade:   next.Trade.Clone(),
			Level:   &level,
			Reason:  action,
		}}

	case PushTradeClosed:
		c := e.Close
		if !s.activeTrade(c.TradeID) {
			return s, []Effect{dropped(ev, c.TradeID, "no matching active trade")}
		}
		return closeTrade(next, ClosedTrade{
			TradeID:   c.TradeID,
			Reason:    c.Reason,
			Kind:      ClassifyCloseReason(c.Reason),
			ExitPrice: c.ExitPrice,
			PnL:       c.PnL,
			HasPnL:    c.HasPnL,
			ClosedAt:  e.At,
		})

	case StopRequested:
		if !s.activeTrade(e.TradeID) {
			return s, []Effect{dropped(ev, e.TradeID, "no matching active trade")}
		}
		if s.StopPending {
			return s, []Effect{dropped(ev, e.TradeID, "stop already requested")}
		}
		next.StopPending = true
		return next, []Effect{{Kind: EffectStopRequested, TradeID: e.TradeID}}

	case StopFailed:
		if !s.activeTrade(e.TradeID) {
			return s, []Effect{dropped(ev, e.TradeID, "no matching active trade")}
		}
		next.StopPending = false
		return next, []Effect{{Kind: EffectStopFailed, TradeID: e.TradeID, Err: e.Err}}

	case PricesRefreshed:
		var effects []Effect
		if s.PricesDegraded {
			next.PricesDegraded = false
			effects = append(effects, Effect{Kind: EffectPriceFeed, Reason: "restored"})
		}
		// a poll that started for another (or no) trade must not touch this one
		if e.TradeID == "" || !s.activeTrade(e.TradeID) {
			return next, effects
		}
		if price, ok := e.Table.Lookup(next.Trade.Symbol); ok {
			applyLocalPrice(&next, price, e.At)
		}
		return next, effects

	case PricesFailed:
		if s.PricesDegraded {
			return s, nil
		}
		next.PricesDegraded = true
		return next, []Effect{{Kind: EffectPriceFeed, Reason: "degraded", Err: e.Err}}

	case StreamConnected:
		next.StreamConnected = true
		effects := []Effect{{Kind: EffectStreamStatus, Reason: "connected"}}
		// pushes sent while the stream was down are lost
		if (s.NeedsResync || !s.StreamConnected) && s.Phase == PhaseActive && s.Trade != nil {
			effects = append(effects, Effect{Kind: EffectResyncRequested, TradeID: s.Trade.ID})
		}
		return next, effects

	case StreamDisconnected:
		next.StreamConnected = false
		if s.Phase == PhaseActive {
			next.NeedsResync = true
		}
		return next, []Effect{{Kind: EffectStreamStatus, Reason: "disconnected", Err: e.Err}}

	case TradeSynced:
		if !s.activeTrade(e.TradeID) {
			return s, []Effect{dropped(ev, e.TradeID, "no matching active trade")}
		}
		if e.Err != nil {
			if errors.Is(e.Err, domain.ErrTradeNotFound) {
				return closeTrade(next, ClosedTrade{
					TradeID:  e.TradeID,
					Reason:   "Trade no longer known to bot",
					Kind:     domain.CloseOther,
					ClosedAt: e.At,
				})
			}
			return s, []Effect{dropped(ev, e.TradeID, "status fetch failed: "+e.Err.Error())}
		}
		if e.Status == nil {
			return s, []Effect{dropped(ev, e.TradeID, "empty status")}
		}
		if !e.Status.Active() {
			reason := StatusCloseReason(e.Status.Status)
			return closeTrade(next, ClosedTrade{
				TradeID:  e.TradeID,
				Reason:   reason,
				Kind:     ClassifyCloseReason(reason),
				ClosedAt: e.At,
			})
		}
		if e.Status.Trade != nil {
			mergeAuthoritative(next.Trade, e.Status.Trade)
		}
		if s.StreamConnected {
			next.NeedsResync = false
		}
		return next, []Effect{{Kind: EffectResynced, TradeID: e.TradeID, Event: ev.Name()}}
	}

	return s, []Effect{dropped(ev, "", "unhandled event")}
}

func submitFailed(next MonitorState, err error) (MonitorState, []Effect) {
	next.Phase = PhaseIdle
	next.Pending = nil
	return next, []Effect{
		{Kind: EffectSubmitFailed, Err: err},
		phaseChange(PhaseSubmitting, PhaseIdle, ""),
	}
}

func closeTrade(next MonitorState, summary ClosedTrade) (MonitorState, []Effect) {
	summary.Symbol = next.Trade.Symbol
	if summary.ExitPrice == 0 {
		summary.ExitPrice = next.Display.CurrentPrice
	}
	id := next.Trade.ID

	next.Phase = PhaseIdle
	next.Trade = nil
	next.Pending = nil
	next.Display = domain.TradeDisplay{}
	next.StopPending = false
	next.NeedsResync = false
	next.LastClose = &summary

	closed := summary
	return next, []Effect{
		phaseChange(PhaseActive, PhaseClosed, id),
		{Kind: EffectTradeClosed, TradeID: id, Close: &closed, Reason: summary.Reason},
		phaseChange(PhaseClosed, PhaseIdle, id),
	}
}

// applyLocalPrice recomputes R-multiple and PnL from a polled price.
func applyLocalPrice(s *MonitorState, price float64, at time.Time) {
	t := s.Trade
	change := (price - t.EntryPrice) * t.Side.Sign()

	s.Display.CurrentPrice = price
	s.Display.CurrentR = 0
	if t.RiskPerUnit > 0 {
		s.Display.CurrentR = change / t.RiskPerUnit
	}
	s.Display.PnL = change * t.Quantity
	s.Display.PnLPercent = 0
	if t.EntryPrice > 0 {
		s.Display.PnLPercent = change / t.EntryPrice * 100 * t.Leverage
	}
	s.Display.Source = "poll"
	s.Display.UpdatedAt = at
}

// mergeAuthoritative copies server-owned fields. Ladder targets stay as
// created; reached markers only ever turn on.
func mergeAuthoritative(local, remote *domain.ActiveTrade) {
	if remote.CurrentStopLoss > 0 {
		local.CurrentStopLoss = remote.CurrentStopLoss
	}
	if remote.TakeProfit > 0 {
		local.TakeProfit = remote.TakeProfit
	}
	if remote.Quantity > 0 {
		local.Quantity = remote.Quantity
	}
	for _, rl := range remote.Levels {
		if !rl.Reached {
			continue
		}
		if idx := FindLevel(local.Levels, rl.R); idx >= 0 {
			for i := 0; i <= idx; i++ {
				local.Levels[i].Reached = true
			}
			if idx > local.CurrentLevel {
				local.CurrentLevel = idx
			}
		}
	}
	if remote.CurrentLevel > local.CurrentLevel && remote.CurrentLevel < len(local.Levels) {
		for i := 0; i <= remote.CurrentLevel; i++ {
			local.Levels[i].Reached = true
		}
		local.CurrentLevel = remote.CurrentLevel
	}
}

// ClassifyCloseReason maps the bot's free-text reason to a kind.
func ClassifyCloseReason(reason string) domain.CloseReason {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "take profit"):
		return domain.CloseTakeProfit
	case strings.Contains(r, "stop loss"):
		return domain.CloseStopLoss
	case strings.Contains(r, "manual"):
		return domain.CloseManual
	default:
		return domain.CloseOther
	}
}

// StatusCloseReason turns a CLOSED_* status into the bot's reason text.
func StatusCloseReason(status string) string {
	switch status {
	case "CLOSED_TP":
		return "Take Profit Hit"
	case "CLOSED_SL":
		return "Stop Loss Hit"
	case "CLOSED_MANUAL":
		return "Manual Close"
	default:
		return status
	}
}
