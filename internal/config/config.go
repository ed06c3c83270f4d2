package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	EnvBotURL   = "TRADECLIENT_BOT_URL"
	EnvLogLevel = "TRADECLIENT_LOG_LEVEL"
)

type Config struct {
	Bot         BotConfig         `yaml:"bot"`
	Polling     PollingConfig     `yaml:"polling"`
	Stream      StreamConfig      `yaml:"stream"`
	Ladder      LadderConfig      `yaml:"ladder"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Defaults    TradeDefaults     `yaml:"defaults"`
	Pairs       []domain.Pair     `yaml:"pairs"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Journal     JournalConfig     `yaml:"journal"`
}

type BotConfig struct {
	BaseURL          string `yaml:"base_url"`
	WSURL            string `yaml:"ws_url"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
}

type PollingConfig struct {
	PricesMs int `yaml:"prices_ms"` // negative disables polling
}

type StreamConfig struct {
	ReconnectMs    int `yaml:"reconnect_ms"`
	MaxReconnectMs int `yaml:"max_reconnect_ms"`
	PingMs         int `yaml:"ping_ms"`
}

type LadderConfig struct {
	Rungs     []domain.RungConfig `yaml:"rungs"`
	PriceTick float64             `yaml:"price_tick"`
}

type SuggestionsConfig struct {
	Percents []float64 `yaml:"percents"`
}

type TradeDefaults struct {
	Symbol    string  `yaml:"symbol"`
	Side      string  `yaml:"side"`
	EntryMode string  `yaml:"entry"`
	Capital   float64 `yaml:"capital"`
	Leverage  float64 `yaml:"leverage"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	EventLog string `yaml:"event_log"`
}

type JournalConfig struct {
	DSN string `yaml:"dsn"` // empty = private in-memory database
}

func Default() *Config {
	return &Config{
		Bot: BotConfig{
			BaseURL:          "http://localhost:5000",
			WSURL:            "ws://localhost:5000/ws",
			RequestTimeoutMs: 10000,
		},
		Polling: PollingConfig{PricesMs: 2000},
		Stream: StreamConfig{
			ReconnectMs:    1000,
			MaxReconnectMs: 30000,
			PingMs:         25000,
		},
		Ladder:      LadderConfig{Rungs: domain.DefaultRungs()},
		Suggestions: SuggestionsConfig{Percents: []float64{1, 2, 3, 5}},
		Defaults: TradeDefaults{
			Symbol:    "BTCUSDT",
			Side:      string(domain.SideLong),
			EntryMode: string(domain.EntryMarket),
			Capital:   100,
			Leverage:  10,
		},
		Pairs:   domain.DefaultPairs(),
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies env overrides. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer f.Close()
			decoder := yaml.NewDecoder(f)
			decoder.KnownFields(true)
			if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBotURL)); v != "" {
		c.Bot.BaseURL = v
		if ws, ok := wsURLFor(v); ok {
			c.Bot.WSURL = ws
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
}

// wsURLFor derives the push stream address from the REST base URL.
func wsURLFor(base string) (string, bool) {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws", true
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws", true
	}
	return "", false
}

func (c *Config) Validate() error {
	if c.Bot.BaseURL == "" {
		return fmt.Errorf("bot.base_url is required")
	}
	if c.Defaults.Side != "" && !domain.Side(c.Defaults.Side).Valid() {
		return fmt.Errorf("defaults.side must be LONG or SHORT, got %q", c.Defaults.Side)
	}
	switch domain.EntryMode(c.Defaults.EntryMode) {
	case "", domain.EntryMarket, domain.EntryLimit:
	default:
		return fmt.Errorf("defaults.entry must be MARKET or LIMIT, got %q", c.Defaults.EntryMode)
	}
	if c.Ladder.PriceTick < 0 {
		return fmt.Errorf("ladder.price_tick must not be negative")
	}
	prev := 0.0
	for i, r := range c.Ladder.Rungs {
		if !(r.R > prev) {
			return fmt.Errorf("ladder.rungs[%d]: rr %.2f must be above %.2f", i, r.R, prev)
		}
		if r.BookPercent < 0 || r.BookPercent > 100 {
			return fmt.Errorf("ladder.rungs[%d]: book_percent must be within 0..100", i)
		}
		prev = r.R
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (c *Config) RequestTimeout() time.Duration { return ms(c.Bot.RequestTimeoutMs) }

// PollInterval is negative when polling is disabled.
func (c *Config) PollInterval() time.Duration { return ms(c.Polling.PricesMs) }

func (c *Config) ReconnectDelay() time.Duration    { return ms(c.Stream.ReconnectMs) }
func (c *Config) MaxReconnectDelay() time.Duration { return ms(c.Stream.MaxReconnectMs) }
func (c *Config) PingInterval() time.Duration      { return ms(c.Stream.PingMs) }
