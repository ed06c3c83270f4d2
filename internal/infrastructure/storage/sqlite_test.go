package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trailing_trade_client/internal/domain"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*domain.JournalEntry{
		{TradeID: "t1", Kind: "submitted", Symbol: "BTCUSDT", Side: domain.SideLong, Price: 100, StopLoss: 98, CreatedAt: base},
		{TradeID: "t1", Kind: "level", Symbol: "BTCUSDT", Side: domain.SideLong, Price: 103, StopLoss: 102, Detail: "1.5R", CreatedAt: base.Add(time.Minute)},
		{Kind: "rejected", Detail: "bot rejected", CreatedAt: base.Add(2 * time.Minute)},
		{TradeID: "t1", Kind: "closed", Symbol: "BTCUSDT", Price: 104, PnL: 400, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, store.SaveEntry(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	latest, err := store.ListEntries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "closed", latest[0].Kind)
	assert.Equal(t, "rejected", latest[1].Kind)

	all, err := store.ListEntries(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	trade, err := store.ListTradeEntries(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, trade, 3)
	assert.Equal(t, "submitted", trade[0].Kind)
	assert.Equal(t, domain.SideLong, trade[0].Side)
	assert.Equal(t, 102.0, trade[1].StopLoss)
	assert.Equal(t, 400.0, trade[2].PnL)
	assert.True(t, base.Equal(trade[0].CreatedAt))
}

func TestSQLiteStore_StoresAreIsolated(t *testing.T) {
	a := newStore(t)
	b := newStore(t)
	ctx := context.Background()

	require.NoError(t, a.SaveEntry(ctx, &domain.JournalEntry{Kind: "submitted", CreatedAt: time.Now()}))

	entries, err := b.ListEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
