package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	prices      []domain.PriceUpdate
	levels      []domain.LevelReached
	closes      []domain.TradeClosed
	logs        []domain.BotLog
}

func (r *recordingHandler) OnConnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
}

func (r *recordingHandler) OnDisconnect(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
}

func (r *recordingHandler) OnPriceUpdate(ev domain.PriceUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, ev)
}

func (r *recordingHandler) OnLevelReached(ev domain.LevelReached) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, ev)
}

func (r *recordingHandler) OnTradeClosed(ev domain.TradeClosed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = append(r.closes, ev)
}

func (r *recordingHandler) OnLog(ev domain.BotLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, ev)
}

func (r *recordingHandler) counts() (connects, disconnects, closes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects, r.disconnects, len(r.closes)
}

var pushMessages = []string{
	`{"event":"connected","data":{"status":"Connected"}}`,
	`{"event":"price_update","data":{"trade_id":"t1","current_price":103.2,"current_rr":1.6,"pnl":320,"pnl_percent":32,"current_sl":98,"take_profit":104}}`,
	`not json`,
	`{"event":"level_reached","data":{"trade_id":"t1","level":{"rr":1.5,"target_price":103,"new_sl":102,"action":"Book 25% profit","book_percent":25,"reached":true},"new_sl":102,"action":"Book 25% profit"}}`,
	`{"event":"log","data":{"trade_id":"t1","log":{"time":"12:00:01","message":"SL moved","type":"alert"}}}`,
	`{"event":"trade_closed","data":{"trade_id":"t1","reason":"Stop Loss Hit","exit_price":102}}`,
}

func pushServer(t *testing.T, messages []string, dropAfter bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		if dropAfter {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStream_DecodesPushEvents(t *testing.T) {
	srv := pushServer(t, pushMessages, false)
	s := NewStream(StreamConfig{URL: wsURL(srv), PingInterval: 10 * time.Millisecond}, zap.NewNop())
	h := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, h) }()

	require.Eventually(t, func() bool {
		_, _, closes := h.counts()
		return closes == 1
	}, 2*time.Second, 5*time.Millisecond)

	h.mu.Lock()
	require.Len(t, h.prices, 1)
	assert.Equal(t, 1.6, h.prices[0].CurrentR)
	assert.Equal(t, 98.0, h.prices[0].CurrentStopLoss)
	require.Len(t, h.levels, 1)
	assert.Equal(t, 1.5, h.levels[0].Level.R)
	assert.Equal(t, 102.0, h.levels[0].NewStopLoss)
	require.Len(t, h.logs, 1)
	assert.Equal(t, "SL moved", h.logs[0].Message)
	assert.Equal(t, "Stop Loss Hit", h.closes[0].Reason)
	assert.False(t, h.closes[0].HasPnL)
	h.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
	connects, disconnects, _ := h.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestStream_ReconnectsAfterDrop(t *testing.T) {
	srv := pushServer(t, []string{`{"event":"trade_closed","data":{"trade_id":"t1","reason":"Take Profit Hit","exit_price":104,"pnl":400}}`}, true)
	s := NewStream(StreamConfig{URL: wsURL(srv), ReconnectDelay: 5 * time.Millisecond, MaxReconnectDelay: 20 * time.Millisecond}, zap.NewNop())
	h := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx, h) }()

	require.Eventually(t, func() bool {
		connects, disconnects, _ := h.counts()
		return connects >= 2 && disconnects >= 1
	}, 2*time.Second, 5*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.True(t, h.closes[0].HasPnL)
	assert.Equal(t, 400.0, h.closes[0].PnL)
}
