package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/trailing_trade_client/internal/domain"
)

// ResolveEntryPrice picks the entry used for sizing: the live quote for
// MARKET, the typed limit price for LIMIT (live quote while the field is empty).
func ResolveEntryPrice(draft domain.TradeDraft, live PriceQuote) (float64, bool) {
	if draft.EntryMode == domain.EntryLimit && draft.LimitPrice > 0 {
		return draft.LimitPrice, true
	}
	if live.Known() && live.Price > 0 {
		return live.Price, true
	}
	return 0, false
}

// CalculateRisk derives the full snapshot. It never fails: missing entry or
// capital yields Complete=false and the caller shows placeholders.
func CalculateRisk(entryPrice, capital, leverage, stopLoss, takeProfit float64, side domain.Side) domain.RiskSnapshot {
	if !(entryPrice > 0) || !(capital > 0) {
		return domain.RiskSnapshot{}
	}
	if !(leverage > 0) {
		leverage = 1
	}

	positionValue := capital * leverage
	quantity := positionValue / entryPrice

	snap := domain.RiskSnapshot{
		Complete:      true,
		EntryPrice:    entryPrice,
		PositionValue: positionValue,
		Quantity:      quantity,
	}

	hasStop := stopLoss > 0
	if hasStop {
		snap.RiskPerUnit = math.Abs(entryPrice - stopLoss)
	}
	snap.RiskAmount = snap.RiskPerUnit * quantity
	if hasStop {
		snap.RiskPercent = snap.RiskAmount / capital * 100
		if side == domain.SideShort {
			snap.Target2R = entryPrice - snap.RiskPerUnit*2
		} else {
			snap.Target2R = entryPrice + snap.RiskPerUnit*2
		}
	}
	snap.PotentialProfit = snap.RiskPerUnit * 2 * quantity

	if takeProfit > 0 && snap.RiskPerUnit > 0 {
		snap.RewardMultiple = math.Abs(takeProfit-entryPrice) / snap.RiskPerUnit
	}
	return snap
}

// PreviewRisk resolves the entry from the draft and computes the snapshot.
func PreviewRisk(draft domain.TradeDraft, live PriceQuote) domain.RiskSnapshot {
	entry, ok := ResolveEntryPrice(draft, live)
	if !ok {
		return domain.RiskSnapshot{}
	}
	return CalculateRisk(entry, draft.Capital, draft.Leverage, draft.StopLoss, draft.TakeProfit, draft.Side)
}

// ValidateRequest turns a draft into a submittable request. For MARKET the
// entry is the live quote; for LIMIT it must be typed.
func ValidateRequest(draft domain.TradeDraft, live PriceQuote) (domain.TradeRequest, error) {
	if !draft.Side.Valid() {
		return domain.TradeRequest{}, domain.ErrInvalidSide
	}

	var entry float64
	switch draft.EntryMode {
	case domain.EntryLimit:
		entry = draft.LimitPrice
	default:
		if live.Known() {
			entry = live.Price
		}
	}
	if !(entry > 0) {
		return domain.TradeRequest{}, fmt.Errorf("%w for %s", domain.ErrNoEntryPrice, draft.Symbol)
	}
	if !(draft.Capital > 0) {
		return domain.TradeRequest{}, domain.ErrInvalidCapital
	}
	if !(draft.StopLoss > 0) {
		return domain.TradeRequest{}, domain.ErrMissingStopLoss
	}
	if draft.Side == domain.SideLong && draft.StopLoss >= entry {
		return domain.TradeRequest{}, fmt.Errorf("%w: must be below entry for LONG", domain.ErrStopLossSide)
	}
	if draft.Side == domain.SideShort && draft.StopLoss <= entry {
		return domain.TradeRequest{}, fmt.Errorf("%w: must be above entry for SHORT", domain.ErrStopLossSide)
	}

	leverage := draft.Leverage
	if leverage == 0 {
		leverage = 1
	}
	if !(leverage > 0) {
		return domain.TradeRequest{}, domain.ErrInvalidLeverage
	}

	mode := draft.EntryMode
	if mode == "" {
		mode = domain.EntryMarket
	}

	return domain.TradeRequest{
		Symbol:     draft.Symbol,
		Side:       draft.Side,
		EntryMode:  mode,
		EntryPrice: entry,
		Capital:    draft.Capital,
		Leverage:   leverage,
		StopLoss:   draft.StopLoss,
		TakeProfit: draft.TakeProfit,
	}, nil
}
