package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
	"go.uber.org/zap"
)

const DefaultBaseURL = "http://localhost:5000"

// Client talks to the bot's REST API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) sendRequest(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	c.logger.Debug("Bot API call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))
	return resp.StatusCode, respBody, nil
}

func apiError(status int, body []byte) error {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("bot API error (%d): %s", status, e.Error)
	}
	return fmt.Errorf("bot API error (%d): %s", status, strings.TrimSpace(string(body)))
}

func (c *Client) GetTicker(ctx context.Context) ([]domain.Ticker, error) {
	status, body, err := c.sendRequest(ctx, http.MethodGet, "/api/ticker", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker: %w", err)
	}
	if status >= 400 {
		return nil, apiError(status, body)
	}
	var tickers []domain.Ticker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}
	return tickers, nil
}

func (c *Client) StartTrade(ctx context.Context, req domain.TradeRequest) (*domain.ActiveTrade, error) {
	status, body, err := c.sendRequest(ctx, http.MethodPost, "/api/bot/start", newStartRequest(req))
	if err != nil {
		return nil, fmt.Errorf("start trade: %w", err)
	}

	var resp startResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status >= 400 {
			return nil, apiError(status, body)
		}
		return nil, fmt.Errorf("decode start response: %w", err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", status)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrBotRejected, msg)
	}

	var trade *domain.ActiveTrade
	if resp.Trade != nil {
		trade = resp.Trade.toDomain()
	} else {
		trade = &domain.ActiveTrade{CurrentLevel: -1}
	}
	if trade.ID == "" {
		trade.ID = resp.TradeID
	}
	c.logger.Info("Bot started trade", zap.String("trade_id", trade.ID), zap.String("symbol", req.Symbol))
	return trade, nil
}

func (c *Client) StopTrade(ctx context.Context, tradeID string) error {
	status, body, err := c.sendRequest(ctx, http.MethodPost, "/api/bot/stop/"+url.PathEscape(tradeID), nil)
	if err != nil {
		return fmt.Errorf("stop trade: %w", err)
	}

	var resp ackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status >= 400 {
			return apiError(status, body)
		}
		return fmt.Errorf("decode stop response: %w", err)
	}
	if !resp.Success {
		if strings.EqualFold(resp.Error, "Trade not found") {
			return fmt.Errorf("stop %s: %w", tradeID, domain.ErrTradeNotFound)
		}
		return fmt.Errorf("%w: %s", domain.ErrBotRejected, resp.Error)
	}
	return nil
}

func (c *Client) GetTradeStatus(ctx context.Context, tradeID string) (*domain.TradeStatus, error) {
	status, body, err := c.sendRequest(ctx, http.MethodGet, "/api/bot/status/"+url.PathEscape(tradeID), nil)
	if err != nil {
		return nil, fmt.Errorf("trade status: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("status %s: %w", tradeID, domain.ErrTradeNotFound)
	}
	if status >= 400 {
		return nil, apiError(status, body)
	}

	var doc tradeDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode trade status: %w", err)
	}
	trade := doc.toDomain()
	if trade.ID == "" {
		trade.ID = tradeID
	}
	return &domain.TradeStatus{Trade: trade, Status: doc.Status}, nil
}

// HealthReport is the bot's self-test answer.
type HealthReport struct {
	Status     string
	BTCPrice   string
	AuthStatus string
}

// Ping calls the bot's connectivity self-test.
func (c *Client) Ping(ctx context.Context) (*HealthReport, error) {
	status, body, err := c.sendRequest(ctx, http.MethodGet, "/api/test", nil)
	if err != nil {
		return nil, fmt.Errorf("ping bot: %w", err)
	}
	var resp testResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apiError(status, body)
	}
	if status >= 400 || resp.Status != "ok" {
		return nil, fmt.Errorf("bot self-test failed: %s", resp.Error)
	}
	return &HealthReport{
		Status:     resp.Status,
		BTCPrice:   strings.Trim(string(resp.BTCPrice), `"`),
		AuthStatus: resp.AuthStatus,
	}, nil
}
