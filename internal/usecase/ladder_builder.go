package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/trailing_trade_client/internal/domain"
)

// DefaultSuggestionPercents are the advisory stop distances offered pre-trade.
var DefaultSuggestionPercents = []float64{1, 2, 3, 5}

// SuggestStopLosses offers stops at fixed percentages from the live price:
// below for LONG, above for SHORT. Advisory only.
func SuggestStopLosses(livePrice float64, side domain.Side, percents []float64) []domain.StopSuggestion {
	if !(livePrice > 0) {
		return nil
	}
	if len(percents) == 0 {
		percents = DefaultSuggestionPercents
	}
	out := make([]domain.StopSuggestion, 0, len(percents))
	for _, pct := range percents {
		price := livePrice * (1 - pct/100)
		if side == domain.SideShort {
			price = livePrice * (1 + pct/100)
		}
		out = append(out, domain.StopSuggestion{Percent: pct, Price: price})
	}
	return out
}

// RoundToTick rounds to the nearest multiple of tick. tick <= 0 disables rounding.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// BuildLadder computes the R-multiple ladder from the entry and the initial
// stop. The result is fixed for the life of the trade; never rebuild it from
// a trailed stop.
func BuildLadder(entry, initialStop float64, side domain.Side, rungs []domain.RungConfig, tick float64) ([]domain.TrailingLevel, error) {
	if !side.Valid() {
		return nil, domain.ErrInvalidSide
	}
	if !(entry > 0) || !(initialStop > 0) {
		return nil, fmt.Errorf("%w: entry and stop must be positive", domain.ErrDegenerateLadder)
	}
	risk := math.Abs(entry - initialStop)
	if !(risk > 0) {
		return nil, fmt.Errorf("%w: risk per unit is zero", domain.ErrDegenerateLadder)
	}
	if len(rungs) == 0 {
		return nil, fmt.Errorf("%w: no rungs configured", domain.ErrDegenerateLadder)
	}

	sign := side.Sign()
	levels := make([]domain.TrailingLevel, 0, len(rungs))
	for _, rc := range rungs {
		target := RoundToTick(entry+sign*rc.R*risk, tick)

		newSL := initialStop
		if rc.R >= 1 {
			newSL = RoundToTick(entry+sign*rc.TrailR*risk, tick)
		}

		levels = append(levels, domain.TrailingLevel{
			R:           rc.R,
			TargetPrice: target,
			NewStopLoss: newSL,
			Action:      rc.Action,
			BookPercent: rc.BookPercent,
		})
	}

	if err := ValidateLadder(entry, side, levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// ValidateLadder rejects ladders whose R-multiples are not strictly
// increasing or whose targets do not move strictly away from entry in the
// trade's direction.
func ValidateLadder(entry float64, side domain.Side, levels []domain.TrailingLevel) error {
	if len(levels) == 0 {
		return fmt.Errorf("%w: empty ladder", domain.ErrDegenerateLadder)
	}
	sign := side.Sign()
	prevR := 0.0
	prevTarget := entry
	for i, l := range levels {
		if !(l.R > prevR) {
			return fmt.Errorf("%w: rung %d R=%.4f not above %.4f", domain.ErrDegenerateLadder, i, l.R, prevR)
		}
		if !(sign*(l.TargetPrice-prevTarget) > 0) {
			return fmt.Errorf("%w: rung %d target %.8f does not advance from %.8f", domain.ErrDegenerateLadder, i, l.TargetPrice, prevTarget)
		}
		prevR = l.R
		prevTarget = l.TargetPrice
	}
	return nil
}

const rTolerance = 1e-9

// FindLevel returns the index of the rung with the given R-multiple.
func FindLevel(levels []domain.TrailingLevel, r float64) int {
	for i, l := range levels {
		if math.Abs(l.R-r) < rTolerance {
			return i
		}
	}
	return -1
}
