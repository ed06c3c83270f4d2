package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"go.uber.org/zap"
)

const DefaultStreamURL = "ws://localhost:5000/ws"

type StreamConfig struct {
	URL               string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	HandshakeTimeout  time.Duration
}

// Stream reads the bot's push events over a WebSocket and reconnects with
// backoff until its context is cancelled.
type Stream struct {
	cfg    StreamConfig
	dialer *websocket.Dialer
	logger *zap.Logger
}

func NewStream(cfg StreamConfig, logger *zap.Logger) *Stream {
	if cfg.URL == "" {
		cfg.URL = DefaultStreamURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		cfg:    cfg,
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: cfg.HandshakeTimeout},
		logger: logger,
	}
}

func (s *Stream) Run(ctx context.Context, h domain.StreamHandler) error {
	delay := s.cfg.ReconnectDelay
	for {
		connected, err := s.session(ctx, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = s.cfg.ReconnectDelay
		}
		s.logger.Warn("Push stream down, reconnecting",
			zap.String("url", s.cfg.URL),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

// session runs one connection until it drops. connected reports whether the
// dial succeeded.
func (s *Stream) session(ctx context.Context, h domain.StreamHandler) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	s.logger.Info("Push stream connected", zap.String("url", s.cfg.URL))
	h.OnConnect()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepAlive(ctx, conn, done)
	}()

	err = s.readLoop(conn, h)
	close(done)
	conn.Close()
	wg.Wait()

	if ctx.Err() != nil {
		err = ctx.Err()
	}
	h.OnDisconnect(err)
	return true, err
}

// keepAlive pings on an interval and closes the connection on cancel so the
// blocked read returns.
func (s *Stream) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	var tick <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
			return
		case <-tick:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				s.logger.Debug("Ping failed", zap.Error(err))
			}
		}
	}
}

func (s *Stream) readLoop(conn *websocket.Conn, h domain.StreamHandler) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env pushEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.logger.Warn("Bad push message", zap.Error(err))
			continue
		}
		if err := s.dispatch(env, h); err != nil {
			s.logger.Warn("Bad push payload", zap.String("event", env.Event), zap.Error(err))
		}
	}
}

var errEmptyPayload = errors.New("empty payload")

func (s *Stream) dispatch(env pushEnvelope, h domain.StreamHandler) error {
	if len(env.Data) == 0 && env.Event != domain.EventConnected {
		return errEmptyPayload
	}
	switch env.Event {
	case domain.EventPriceUpdate:
		var d priceUpdateDoc
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		h.OnPriceUpdate(d.toDomain())
	case domain.EventLevelReached:
		var d levelReachedDoc
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		h.OnLevelReached(d.toDomain())
	case domain.EventTradeClosed:
		var d tradeClosedDoc
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		h.OnTradeClosed(d.toDomain())
	case domain.EventLog:
		var d logDoc
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		h.OnLog(d.toDomain())
	case domain.EventConnected:
		s.logger.Debug("Bot greeted stream", zap.ByteString("data", env.Data))
	default:
		s.logger.Debug("Ignoring push event", zap.String("event", env.Event))
	}
	return nil
}
