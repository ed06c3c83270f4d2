package usecase_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/usecase"
)

func TestBuildLadder_Long(t *testing.T) {
	levels, err := usecase.BuildLadder(100, 98, domain.SideLong, domain.DefaultRungs(), 0)
	require.NoError(t, err)
	require.Len(t, levels, 9)

	assert.InDelta(t, 101, levels[0].TargetPrice, 1e-9)
	assert.InDelta(t, 98, levels[0].NewStopLoss, 1e-9, "below 1R the stop stays put")
	assert.InDelta(t, 102, levels[1].TargetPrice, 1e-9)
	assert.InDelta(t, 100, levels[1].NewStopLoss, 1e-9, "1R moves to breakeven")
	assert.InDelta(t, 103, levels[2].TargetPrice, 1e-9)
	assert.InDelta(t, 102, levels[2].NewStopLoss, 1e-9)
	assert.Equal(t, 25.0, levels[2].BookPercent)
	assert.InDelta(t, 110, levels[8].TargetPrice, 1e-9)
	assert.InDelta(t, 106, levels[8].NewStopLoss, 1e-9)
	for _, l := range levels {
		assert.False(t, l.Reached)
	}
}

func TestBuildLadder_Short(t *testing.T) {
	levels, err := usecase.BuildLadder(100, 102, domain.SideShort, domain.DefaultRungs(), 0)
	require.NoError(t, err)

	assert.InDelta(t, 99, levels[0].TargetPrice, 1e-9)
	assert.InDelta(t, 97, levels[2].TargetPrice, 1e-9)
	assert.InDelta(t, 98, levels[2].NewStopLoss, 1e-9)
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i].TargetPrice, levels[i-1].TargetPrice)
	}
}

func TestBuildLadder_Monotonic(t *testing.T) {
	cases := []struct {
		entry, stop float64
		side        domain.Side
	}{
		{65000, 64000, domain.SideLong},
		{0.08, 0.079, domain.SideLong},
		{3000, 3050, domain.SideShort},
		{1.2345, 1.3, domain.SideShort},
	}
	for _, c := range cases {
		levels, err := usecase.BuildLadder(c.entry, c.stop, c.side, domain.DefaultRungs(), 0)
		require.NoError(t, err)
		prev := c.entry
		for i, l := range levels {
			if c.side == domain.SideLong {
				assert.Greater(t, l.TargetPrice, prev, "rung %d", i)
			} else {
				assert.Less(t, l.TargetPrice, prev, "rung %d", i)
			}
			prev = l.TargetPrice
		}
	}
}

func TestBuildLadder_Idempotent(t *testing.T) {
	a, err := usecase.BuildLadder(65000, 64000, domain.SideLong, domain.DefaultRungs(), 0.1)
	require.NoError(t, err)
	b, err := usecase.BuildLadder(65000, 64000, domain.SideLong, domain.DefaultRungs(), 0.1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildLadder_Degenerate(t *testing.T) {
	tests := []struct {
		name        string
		entry, stop float64
		rungs       []domain.RungConfig
		tick        float64
	}{
		{"stop equals entry", 100, 100, domain.DefaultRungs(), 0},
		{"zero entry", 0, 98, domain.DefaultRungs(), 0},
		{"no rungs", 100, 98, nil, 0},
		{"tick collapses rungs", 100, 99.99, domain.DefaultRungs(), 1},
		{"non increasing R", 100, 98, []domain.RungConfig{{R: 1}, {R: 1}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := usecase.BuildLadder(tt.entry, tt.stop, domain.SideLong, tt.rungs, tt.tick)
			assert.True(t, errors.Is(err, domain.ErrDegenerateLadder), "got %v", err)
		})
	}

	_, err := usecase.BuildLadder(100, 98, "FLAT", domain.DefaultRungs(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidSide)
}

func TestValidateLadder_RejectsWrongDirection(t *testing.T) {
	levels := []domain.TrailingLevel{{R: 1, TargetPrice: 102}, {R: 2, TargetPrice: 104}}
	assert.NoError(t, usecase.ValidateLadder(100, domain.SideLong, levels))
	assert.ErrorIs(t, usecase.ValidateLadder(100, domain.SideShort, levels), domain.ErrDegenerateLadder)
	assert.ErrorIs(t, usecase.ValidateLadder(100, domain.SideLong, nil), domain.ErrDegenerateLadder)
}

func TestFindLevel(t *testing.T) {
	levels, err := usecase.BuildLadder(100, 98, domain.SideLong, domain.DefaultRungs(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, usecase.FindLevel(levels, 1.5))
	assert.Equal(t, 8, usecase.FindLevel(levels, 5))
	assert.Equal(t, -1, usecase.FindLevel(levels, 1.25))
}

func TestSuggestStopLosses(t *testing.T) {
	long := usecase.SuggestStopLosses(100, domain.SideLong, nil)
	require.Len(t, long, 4)
	assert.InDelta(t, 99, long[0].Price, 1e-9)
	assert.InDelta(t, 95, long[3].Price, 1e-9)

	short := usecase.SuggestStopLosses(100, domain.SideShort, []float64{2})
	require.Len(t, short, 1)
	assert.InDelta(t, 102, short[0].Price, 1e-9)

	assert.Nil(t, usecase.SuggestStopLosses(0, domain.SideLong, nil))
}

func TestRoundToTick(t *testing.T) {
	assert.InDelta(t, 65000.1, usecase.RoundToTick(65000.14, 0.1), 1e-9)
	assert.Equal(t, 1.23456, usecase.RoundToTick(1.23456, 0))
}
