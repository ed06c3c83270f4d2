package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router   *http.ServeMux
	server   *http.Server
	monitor  *usecase.MonitorService
	journal  domain.TradeJournal
	alerts   *usecase.AlertFeed
	pairs    []domain.Pair
	defaults domain.TradeDraft
	logger   *zap.Logger
}

// NewServer builds the local dashboard API. journal and alerts may be nil.
func NewServer(
	port int,
	monitor *usecase.MonitorService,
	journal domain.TradeJournal,
	alerts *usecase.AlertFeed,
	pairs []domain.Pair,
	defaults domain.TradeDraft,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		monitor:  monitor,
		journal:  journal,
		alerts:   alerts,
		pairs:    pairs,
		defaults: defaults,
		logger:   logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Monitor
	s.router.HandleFunc("GET /api/state", s.handleState)
	s.router.HandleFunc("GET /api/alerts", s.handleAlerts)

	// Prices
	s.router.HandleFunc("GET /api/quotes", s.handleQuotes)
	s.router.HandleFunc("PUT /api/polling", s.handleSetPolling)

	// Trade form
	s.router.HandleFunc("POST /api/risk", s.handleRisk)
	s.router.HandleFunc("POST /api/trade", s.handleSubmit)
	s.router.HandleFunc("POST /api/trade/stop", s.handleStop)

	// Journal
	s.router.HandleFunc("GET /api/journal", s.handleJournal)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
