package domain

import "errors"

var (
	ErrInvalidCapital   = errors.New("capital must be greater than zero")
	ErrInvalidLeverage  = errors.New("leverage must be greater than zero")
	ErrMissingStopLoss  = errors.New("stop loss is required")
	ErrStopLossSide     = errors.New("stop loss on wrong side of entry")
	ErrInvalidSide      = errors.New("side must be LONG or SHORT")
	ErrNoEntryPrice     = errors.New("entry price unknown")
	ErrDegenerateLadder = errors.New("degenerate trailing ladder")
	ErrTradeInFlight    = errors.New("a trade is already submitting or active")
	ErrNoActiveTrade    = errors.New("no active trade")
	ErrBotRejected      = errors.New("bot rejected request")
	ErrTradeNotFound    = errors.New("trade not found")
)
