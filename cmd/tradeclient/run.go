package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitos/trailing_trade_client/internal/config"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/infrastructure/bot"
	"github.com/vitos/trailing_trade_client/internal/infrastructure/logger"
	"github.com/vitos/trailing_trade_client/internal/infrastructure/storage"
	"github.com/vitos/trailing_trade_client/internal/usecase"
	"github.com/vitos/trailing_trade_client/internal/web"
	"go.uber.org/zap"
)

var runPort int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trade monitor and dashboard API",
	Long: `Connect to the bot, poll prices, follow the push stream and serve the
local dashboard API until interrupted.

Example:
  tradeclient run -c config/config.yaml --port 8080`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&runPort, "port", 0, "dashboard port (overrides server.port)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	eventLog := log
	if cfg.Logging.EventLog != "" {
		eventLog, err = logger.NewFileLogger(cfg.Logging.EventLog, "debug")
		if err != nil {
			log.Error("Failed to init event logger, using default", zap.Error(err))
			eventLog = log
		} else {
			defer eventLog.Sync()
		}
	}

	journal, err := storage.NewSQLiteStore(cfg.Journal.DSN)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer journal.Close()

	client := bot.NewClient(cfg.Bot.BaseURL, cfg.RequestTimeout(), log.Named("bot"))
	stream := bot.NewStream(bot.StreamConfig{
		URL:               cfg.Bot.WSURL,
		ReconnectDelay:    cfg.ReconnectDelay(),
		MaxReconnectDelay: cfg.MaxReconnectDelay(),
		PingInterval:      cfg.PingInterval(),
	}, log.Named("stream"))

	monitor := usecase.NewMonitorService(client, stream, journal, usecase.NewPriceCache(), monitorConfig(cfg), log.Named("monitor"))
	alerts := usecase.NewAlertFeed(50, eventLog)
	monitor.Subscribe(alerts)

	port := cfg.Server.Port
	if runPort != 0 {
		port = runPort
	}
	server := web.NewServer(port, monitor, journal, alerts, cfg.Pairs, draftDefaults(cfg), log.Named("web"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Trade client running",
		zap.String("bot", cfg.Bot.BaseURL),
		zap.String("stream", cfg.Bot.WSURL),
		zap.Int("port", port))

	return serve(ctx, monitor, server, log)
}

type monitorRunner interface {
	Run(ctx context.Context) error
}

type dashboard interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serve runs the monitor and the dashboard until ctx is done or one of them
// fails. It returns only after the monitor has stopped writing to the journal.
func serve(ctx context.Context, monitor monitorRunner, server dashboard, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		log.Error("Component failed", zap.Error(err))
	}

	log.Info("Shutting down...")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Warn("Web server shutdown", zap.Error(serr))
	}
	<-monitorDone
	return err
}

func monitorConfig(cfg *config.Config) usecase.MonitorConfig {
	poll := cfg.PollInterval()
	if poll == 0 {
		poll = -1
	}
	return usecase.MonitorConfig{
		PollInterval:    poll,
		RequestTimeout:  cfg.RequestTimeout(),
		Rungs:           cfg.Ladder.Rungs,
		PriceTick:       cfg.Ladder.PriceTick,
		SuggestPercents: cfg.Suggestions.Percents,
	}
}

func draftDefaults(cfg *config.Config) domain.TradeDraft {
	return domain.TradeDraft{
		Symbol:    cfg.Defaults.Symbol,
		Side:      domain.Side(cfg.Defaults.Side),
		EntryMode: domain.EntryMode(cfg.Defaults.EntryMode),
		Capital:   cfg.Defaults.Capital,
		Leverage:  cfg.Defaults.Leverage,
	}
}
