package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/usecase"
	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// errorStatus maps domain errors onto HTTP codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrTradeInFlight), errors.Is(err, domain.ErrNoActiveTrade):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCapital),
		errors.Is(err, domain.ErrInvalidLeverage),
		errors.Is(err, domain.ErrMissingStopLoss),
		errors.Is(err, domain.ErrStopLossSide),
		errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrNoEntryPrice),
		errors.Is(err, domain.ErrDegenerateLadder):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeDraft reads a trade form, filling blanks from the configured defaults.
func (s *Server) decodeDraft(r *http.Request) (domain.TradeDraft, error) {
	var d domain.TradeDraft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		return d, err
	}
	if d.Symbol == "" {
		d.Symbol = s.defaults.Symbol
	}
	if d.Side == "" {
		d.Side = s.defaults.Side
	}
	if d.EntryMode == "" {
		d.EntryMode = s.defaults.EntryMode
	}
	if d.Leverage == 0 {
		d.Leverage = s.defaults.Leverage
	}
	return d, nil
}

type stateResponse struct {
	State          usecase.MonitorState `json:"state"`
	PollIntervalMs int64                `json:"poll_interval_ms"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, stateResponse{
		State:          s.monitor.State(),
		PollIntervalMs: s.monitor.PollInterval().Milliseconds(),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := []usecase.Alert{}
	if s.alerts != nil {
		alerts = s.alerts.Recent()
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Quotes(s.pairs))
}

func (s *Server) handleSetPolling(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntervalMs int64 `json:"interval_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.monitor.SetPollInterval(time.Duration(req.IntervalMs) * time.Millisecond)
	s.writeJSON(w, http.StatusOK, map[string]int64{"interval_ms": req.IntervalMs})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	draft, err := s.decodeDraft(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Preview(draft))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	draft, err := s.decodeDraft(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	req, err := s.monitor.Submit(r.Context(), draft)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("Failed to submit trade", zap.Error(err))
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "submitting",
		"request": req,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.Stop(r.Context()); err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "stop requested"})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeJSON(w, http.StatusOK, []*domain.JournalEntry{})
		return
	}

	var (
		entries []*domain.JournalEntry
		err     error
	)
	if tradeID := r.URL.Query().Get("trade_id"); tradeID != "" {
		entries, err = s.journal.ListTradeEntries(r.Context(), tradeID)
	} else {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, perr := strconv.Atoi(v); perr == nil {
				limit = n
			}
		}
		entries, err = s.journal.ListEntries(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("Failed to list journal", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []*domain.JournalEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.monitor.State()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"phase":            st.Phase,
		"stream_connected": st.StreamConnected,
		"prices_degraded":  st.PricesDegraded,
	})
}
