package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vitos/trailing_trade_client/internal/config"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/infrastructure/bot"
	"github.com/vitos/trailing_trade_client/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing bot interaction...\n")
	fmt.Printf("Endpoint: %s\n", cfg.Bot.BaseURL)
	fmt.Printf("Stream:   %s\n", cfg.Bot.WSURL)

	client := bot.NewClient(cfg.Bot.BaseURL, cfg.RequestTimeout(), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 2. Self-test
	report, err := client.Ping(ctx)
	if err != nil {
		fmt.Printf("❌ Self-test failed: %v\n", err)
	} else {
		fmt.Printf("✅ Bot status: %s (auth: %s, BTC: %s)\n", report.Status, report.AuthStatus, report.BTCPrice)
	}

	// 3. Ticker
	tickers, err := client.GetTicker(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get ticker: %v\n", err)
		os.Exit(1)
	}
	table := usecase.BuildPriceTable(tickers, time.Now())
	fmt.Printf("✅ Ticker: %d rows, %d spellings\n", len(tickers), table.Len())
	for _, p := range cfg.Pairs {
		price, ok := table.Lookup(p.Symbol)
		fmt.Printf("   %-10s %s\n", p.Symbol, usecase.FormatPrice(price, ok))
	}

	// 4. Push stream
	stream := bot.NewStream(bot.StreamConfig{URL: cfg.Bot.WSURL}, zap.NewNop())
	watcher := &connectWatcher{connected: make(chan struct{}, 1)}
	sctx, scancel := context.WithTimeout(ctx, 5*time.Second)
	defer scancel()
	go stream.Run(sctx, watcher)

	select {
	case <-watcher.connected:
		fmt.Printf("✅ Push stream connected\n")
	case <-sctx.Done():
		fmt.Printf("❌ Push stream did not connect\n")
	}
}

type connectWatcher struct {
	connected chan struct{}
}

func (p *connectWatcher) OnConnect() {
	select {
	case p.connected <- struct{}{}:
	default:
	}
}
func (p *connectWatcher) OnDisconnect(err error)                {}
func (p *connectWatcher) OnPriceUpdate(ev domain.PriceUpdate)   {}
func (p *connectWatcher) OnLevelReached(ev domain.LevelReached) {}
func (p *connectWatcher) OnTradeClosed(ev domain.TradeClosed)   {}
func (p *connectWatcher) OnLog(ev domain.BotLog)                {}
