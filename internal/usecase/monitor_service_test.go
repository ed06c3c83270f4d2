package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/usecase"
	"go.uber.org/zap"
)

// MockBot
type MockBot struct {
	mu         sync.Mutex
	Tickers    []domain.Ticker
	TickerErr  error
	StartResp  *domain.ActiveTrade
	StartErr   error
	StopErr    error
	Status     *domain.TradeStatus
	StatusErr  error
	Started    []domain.TradeRequest
	Stopped    []string
	StatusHits int
}

func (m *MockBot) GetTicker(ctx context.Context) ([]domain.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Tickers, m.TickerErr
}

func (m *MockBot) StartTrade(ctx context.Context, req domain.TradeRequest) (*domain.ActiveTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = append(m.Started, req)
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	return m.StartResp.Clone(), nil
}

func (m *MockBot) StopTrade(ctx context.Context, tradeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stopped = append(m.Stopped, tradeID)
	return m.StopErr
}

func (m *MockBot) GetTradeStatus(ctx context.Context, tradeID string) (*domain.TradeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusHits++
	return m.Status, m.StatusErr
}

func (m *MockBot) calls() (started, stopped, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Started), len(m.Stopped), m.StatusHits
}

// MockStream hands its handler to the test.
type MockStream struct {
	ready chan domain.StreamHandler
}

func NewMockStream() *MockStream {
	return &MockStream{ready: make(chan domain.StreamHandler, 1)}
}

func (m *MockStream) Run(ctx context.Context, h domain.StreamHandler) error {
	m.ready <- h
	<-ctx.Done()
	return ctx.Err()
}

// MockJournal
type MockJournal struct {
	mu      sync.Mutex
	Entries []*domain.JournalEntry
}

func (m *MockJournal) SaveEntry(ctx context.Context, e *domain.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *MockJournal) ListEntries(ctx context.Context, limit int) ([]*domain.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Entries, nil
}

func (m *MockJournal) ListTradeEntries(ctx context.Context, tradeID string) ([]*domain.JournalEntry, error) {
	return nil, nil
}

func (m *MockJournal) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.Kind)
	}
	return out
}

type recordingObserver struct {
	mu      sync.Mutex
	effects []usecase.Effect
}

func (r *recordingObserver) Notify(e usecase.Effect, _ usecase.MonitorState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, e)
}

func (r *recordingObserver) has(kind usecase.EffectKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

type harness struct {
	svc     *usecase.MonitorService
	bot     *MockBot
	stream  *MockStream
	journal *MockJournal
	obs     *recordingObserver
	handler domain.StreamHandler
}

func startService(t *testing.T, bot *MockBot) *harness {
	t.Helper()
	h := &harness{bot: bot, stream: NewMockStream(), journal: &MockJournal{}, obs: &recordingObserver{}}
	h.svc = usecase.NewMonitorService(bot, h.stream, h.journal, nil, usecase.MonitorConfig{
		PollInterval:   time.Hour,
		RequestTimeout: time.Second,
	}, zap.NewNop())
	h.svc.Subscribe(h.obs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case h.handler = <-h.stream.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never started")
	}
	require.Eventually(t, func() bool {
		return h.svc.Prices().Quote("BTCUSDT").Known()
	}, 2*time.Second, 5*time.Millisecond)
	return h
}

func (h *harness) waitPhase(t *testing.T, phase usecase.Phase) usecase.MonitorState {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.svc.State().Phase == phase
	}, 2*time.Second, 5*time.Millisecond)
	return h.svc.State()
}

func longDraft() domain.TradeDraft {
	return domain.TradeDraft{
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		EntryMode: domain.EntryMarket,
		Capital:   1000,
		Leverage:  10,
		StopLoss:  98,
	}
}

func botWithPrice() *MockBot {
	return &MockBot{
		Tickers:   []domain.Ticker{ticker("B-BTC_USDT", "100")},
		StartResp: &domain.ActiveTrade{ID: "t1", Quantity: 100},
	}
}

func TestMonitorService_SubmitBuildsLocalLadder(t *testing.T) {
	h := startService(t, botWithPrice())

	req, err := h.svc.Submit(context.Background(), longDraft())
	require.NoError(t, err)
	assert.Equal(t, 100.0, req.EntryPrice)

	s := h.waitPhase(t, usecase.PhaseActive)
	require.NotNil(t, s.Trade)
	assert.Equal(t, "t1", s.Trade.ID)
	assert.Equal(t, "BTCUSDT", s.Trade.Symbol)
	assert.Equal(t, 98.0, s.Trade.InitialStopLoss)
	assert.Equal(t, 98.0, s.Trade.CurrentStopLoss)
	assert.Equal(t, 2.0, s.Trade.RiskPerUnit)
	assert.Equal(t, -1, s.Trade.CurrentLevel)
	require.Len(t, s.Trade.Levels, 9)
	assert.InDelta(t, 103, s.Trade.Levels[2].TargetPrice, 1e-9)

	_, err = h.svc.Submit(context.Background(), longDraft())
	assert.ErrorIs(t, err, domain.ErrTradeInFlight)

	require.Eventually(t, func() bool { return h.obs.has(usecase.EffectTradeOpened) }, time.Second, 5*time.Millisecond)
}

func TestMonitorService_SubmitValidationSkipsBot(t *testing.T) {
	h := startService(t, botWithPrice())

	d := longDraft()
	d.StopLoss = 105
	_, err := h.svc.Submit(context.Background(), d)
	assert.ErrorIs(t, err, domain.ErrStopLossSide)

	started, _, _ := h.bot.calls()
	assert.Zero(t, started)
	assert.Equal(t, usecase.PhaseIdle, h.svc.State().Phase)
}

func TestMonitorService_SubmitRejected(t *testing.T) {
	bot := botWithPrice()
	bot.StartErr = domain.ErrBotRejected
	h := startService(t, bot)

	_, err := h.svc.Submit(context.Background(), longDraft())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.obs.has(usecase.EffectSubmitFailed) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, usecase.PhaseIdle, h.svc.State().Phase)
	require.Eventually(t, func() bool {
		k := h.journal.kinds()
		return len(k) == 1 && k[0] == "rejected"
	}, time.Second, 5*time.Millisecond)
}

func TestMonitorService_PushLifecycle(t *testing.T) {
	h := startService(t, botWithPrice())
	h.handler.OnConnect()

	_, err := h.svc.Submit(context.Background(), longDraft())
	require.NoError(t, err)
	h.waitPhase(t, usecase.PhaseActive)

	h.handler.OnPriceUpdate(domain.PriceUpdate{TradeID: "t1", CurrentPrice: 103.2, CurrentR: 1.6, CurrentStopLoss: 98})
	h.handler.OnLevelReached(domain.LevelReached{TradeID: "t1", Level: domain.TrailingLevel{R: 1.5}, NewStopLoss: 102})
	h.handler.OnLog(domain.BotLog{TradeID: "t1", Message: "SL moved", Type: "info"})
	require.Eventually(t, func() bool {
		s := h.svc.State()
		return s.Trade != nil && s.Trade.CurrentStopLoss == 102
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.svc.Stop(context.Background()))
	require.NoError(t, h.svc.Stop(context.Background()), "second stop while pending is accepted")
	assert.Equal(t, usecase.PhaseActive, h.svc.State().Phase)
	require.Eventually(t, func() bool {
		_, stopped, _ := h.bot.calls()
		return stopped == 1
	}, 2*time.Second, 5*time.Millisecond)

	h.handler.OnTradeClosed(domain.TradeClosed{TradeID: "t1", Reason: "Manual Close", ExitPrice: 103, PnL: 300, HasPnL: true})
	s := h.waitPhase(t, usecase.PhaseIdle)
	require.NotNil(t, s.LastClose)
	assert.Equal(t, domain.CloseManual, s.LastClose.Kind)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"submitted", "level", "closed"}, h.journal.kinds())
	}, 2*time.Second, 5*time.Millisecond)

	_, _, status := h.bot.calls()
	assert.Zero(t, status, "connected stream needs no status poll")
	assert.ErrorIs(t, h.svc.Stop(context.Background()), domain.ErrNoActiveTrade)
}

func TestMonitorService_ResyncOnReconnect(t *testing.T) {
	bot := botWithPrice()
	bot.Status = &domain.TradeStatus{Status: "CLOSED_TP"}
	h := startService(t, bot)
	h.handler.OnConnect()

	_, err := h.svc.Submit(context.Background(), longDraft())
	require.NoError(t, err)
	h.waitPhase(t, usecase.PhaseActive)

	h.handler.OnDisconnect(errors.New("eof"))
	require.Eventually(t, func() bool { return h.svc.State().NeedsResync }, 2*time.Second, 5*time.Millisecond)
	h.handler.OnConnect()

	s := h.waitPhase(t, usecase.PhaseIdle)
	require.NotNil(t, s.LastClose)
	assert.Equal(t, domain.CloseTakeProfit, s.LastClose.Kind)
	_, _, status := h.bot.calls()
	assert.Equal(t, 1, status)
}

func TestMonitorService_StopWithoutStreamSyncs(t *testing.T) {
	bot := botWithPrice()
	bot.Status = &domain.TradeStatus{Status: "CLOSED_MANUAL"}
	h := startService(t, bot)

	_, err := h.svc.Submit(context.Background(), longDraft())
	require.NoError(t, err)
	h.waitPhase(t, usecase.PhaseActive)

	require.NoError(t, h.svc.Stop(context.Background()))
	s := h.waitPhase(t, usecase.PhaseIdle)
	assert.Equal(t, domain.CloseManual, s.LastClose.Kind)
}

func TestMonitorService_StopFailureKeepsTrade(t *testing.T) {
	bot := botWithPrice()
	bot.StopErr = errors.New("bot down")
	h := startService(t, bot)

	_, err := h.svc.Submit(context.Background(), longDraft())
	require.NoError(t, err)
	h.waitPhase(t, usecase.PhaseActive)

	require.NoError(t, h.svc.Stop(context.Background()))
	require.Eventually(t, func() bool { return h.obs.has(usecase.EffectStopFailed) }, 2*time.Second, 5*time.Millisecond)
	s := h.svc.State()
	assert.Equal(t, usecase.PhaseActive, s.Phase)
	assert.False(t, s.StopPending)
}

func TestMonitorService_StopOfUnknownTradeSyncs(t *testing.T) {
	bot := botWithPrice()
	bot.StopErr = fmt.Errorf("stop trade: %w", domain.ErrTradeNotFound)
	bot.StatusErr = domain.ErrTradeNotFound
	h := startService(t, bot)
	h.handler.OnConnect()

	_, err := h.svc.Submit(context.Background(), longDraft())
	require.NoError(t, err)
	h.waitPhase(t, usecase.PhaseActive)

	require.NoError(t, h.svc.Stop(context.Background()))
	s := h.waitPhase(t, usecase.PhaseIdle)
	require.NotNil(t, s.LastClose)
	assert.Equal(t, domain.CloseOther, s.LastClose.Kind)
	_, _, status := h.bot.calls()
	assert.Equal(t, 1, status)
}

func TestMonitorService_ConnectAfterOpenSyncs(t *testing.T) {
	bot := botWithPrice()
	bot.Status = &domain.TradeStatus{Status: "CLOSED_SL"}
	h := startService(t, bot)

	_, err := h.svc.Submit(context.Background(), longDraft())
	require.NoError(t, err)
	h.waitPhase(t, usecase.PhaseActive)

	h.handler.OnConnect()
	s := h.waitPhase(t, usecase.PhaseIdle)
	require.NotNil(t, s.LastClose)
	assert.Equal(t, domain.CloseStopLoss, s.LastClose.Kind)
}

func TestMonitorService_PreviewAndQuotes(t *testing.T) {
	h := startService(t, botWithPrice())

	p := h.svc.Preview(longDraft())
	assert.Equal(t, usecase.PriceFresh, p.Quote.Status)
	assert.Equal(t, "$100.00", p.QuoteText)
	assert.True(t, p.Risk.Complete)
	assert.InDelta(t, 20, p.Risk.RiskPercent, 1e-9)
	assert.True(t, p.AutoTarget2R)
	assert.Len(t, p.Suggestions, 4)
	assert.Len(t, p.Levels, 9)
	assert.Empty(t, p.LadderError)

	quotes := h.svc.Quotes([]domain.Pair{{Symbol: "BTCUSDT", Name: "Bitcoin"}, {Symbol: "ETHUSDT", Name: "Ethereum"}})
	require.Len(t, quotes, 2)
	assert.Equal(t, "$100.00", quotes[0].Text)
	assert.Equal(t, "--", quotes[1].Text)
}
