package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vitos/trailing_trade_client/internal/domain"
	"go.uber.org/zap"
)

type MonitorConfig struct {
	PollInterval    time.Duration
	RequestTimeout  time.Duration
	Rungs           []domain.RungConfig
	PriceTick       float64
	SuggestPercents []float64
	MailboxSize     int
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if len(c.Rungs) == 0 {
		c.Rungs = domain.DefaultRungs()
	}
	if len(c.SuggestPercents) == 0 {
		c.SuggestPercents = DefaultSuggestionPercents
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = 64
	}
	return c
}

type envelope struct {
	ev   Event
	done chan []Effect
}

type effectBatch struct {
	effects []Effect
	state   MonitorState
}

// MonitorService owns the trade monitor. All events, whatever their source,
// are applied one at a time by the loop started in Run.
type MonitorService struct {
	bot     domain.BotClient
	stream  domain.EventStream
	journal domain.TradeJournal
	prices  *PriceCache
	logger  *zap.Logger
	cfg     MonitorConfig
	timeNow func() time.Time

	mailbox chan envelope
	batches chan effectBatch
	poller  *PricePoller

	mu     sync.RWMutex
	state  MonitorState
	runCtx context.Context

	obsMu     sync.RWMutex
	observers []Observer
}

// NewMonitorService wires the monitor. stream and journal may be nil.
func NewMonitorService(bot domain.BotClient, stream domain.EventStream, journal domain.TradeJournal, prices *PriceCache, cfg MonitorConfig, logger *zap.Logger) *MonitorService {
	cfg = cfg.withDefaults()
	if prices == nil {
		prices = NewPriceCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MonitorService{
		bot:     bot,
		stream:  stream,
		journal: journal,
		prices:  prices,
		logger:  logger,
		cfg:     cfg,
		timeNow: time.Now,
		mailbox: make(chan envelope, cfg.MailboxSize),
		batches: make(chan effectBatch, cfg.MailboxSize),
		state:   NewMonitorState(),
	}
	s.poller = NewPricePoller(cfg.PollInterval, s.refreshPrices)
	return s
}

// Subscribe registers an observer. Register before Run.
func (s *MonitorService) Subscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *MonitorService) Prices() *PriceCache { return s.prices }

func (s *MonitorService) Rungs() []domain.RungConfig {
	out := make([]domain.RungConfig, len(s.cfg.Rungs))
	copy(out, s.cfg.Rungs)
	return out
}

func (s *MonitorService) SetPollInterval(d time.Duration) {
	s.logger.Info("Price polling interval changed", zap.Duration("interval", d))
	s.poller.SetInterval(d)
}

func (s *MonitorService) PollInterval() time.Duration { return s.poller.Interval() }

// State returns a copy of the latest applied state.
func (s *MonitorService) State() MonitorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *MonitorService) currentTradeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Phase == PhaseActive && s.state.Trade != nil {
		return s.state.Trade.ID
	}
	return ""
}

func (s *MonitorService) loopContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}

// Run starts the push stream, the price poller and the event loop, and
// blocks until ctx is cancelled.
func (s *MonitorService) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.logger.Info("Starting trade monitor",
		zap.Duration("poll_interval", s.poller.Interval()),
		zap.Int("rungs", len(s.cfg.Rungs)))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.notifyLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.poller.Run(ctx)
	}()
	if s.stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.stream.Run(ctx, &streamRelay{svc: s, ctx: ctx}); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Push stream stopped", zap.Error(err))
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("Trade monitor stopped")
			return ctx.Err()
		case env := <-s.mailbox:
			effects := s.apply(ctx, env.ev)
			if env.done != nil {
				env.done <- effects
			}
		}
	}
}

// dispatch enqueues ev and waits until it has been applied.
func (s *MonitorService) dispatch(ctx context.Context, ev Event) ([]Effect, error) {
	done := make(chan []Effect, 1)
	select {
	case s.mailbox <- envelope{ev: ev, done: done}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case effects := <-done:
		return effects, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// post enqueues ev without waiting for it to be applied.
func (s *MonitorService) post(ctx context.Context, ev Event) {
	select {
	case s.mailbox <- envelope{ev: ev}:
	case <-ctx.Done():
	}
}

func (s *MonitorService) apply(ctx context.Context, ev Event) []Effect {
	switch e := ev.(type) {
	case PricesRefreshed:
		s.prices.Replace(e.Table)
	case PricesFailed:
		s.prices.MarkFailed(e.Err, e.At)
	}

	s.mu.Lock()
	next, effects := Transition(s.state, ev)
	s.state = next
	view := next.Clone()
	s.mu.Unlock()

	for _, eff := range effects {
		s.logEffect(ev, eff)
		switch eff.Kind {
		case EffectResyncRequested:
			go s.syncTrade(ctx, eff.TradeID)
		case EffectStopRequested:
			go s.stopTrade(ctx, eff.TradeID)
		}
	}

	if len(effects) > 0 {
		select {
		case s.batches <- effectBatch{effects: effects, state: view}:
		case <-ctx.Done():
		}
	}
	return effects
}

func (s *MonitorService) logEffect(ev Event, eff Effect) {
	switch eff.Kind {
	case EffectDropped:
		s.logger.Debug("Event dropped",
			zap.String("event", eff.Event),
			zap.String("trade_id", eff.TradeID),
			zap.String("reason", eff.Reason))
	case EffectPhaseChanged:
		s.logger.Info("Monitor phase changed",
			zap.String("from", string(eff.From)),
			zap.String("to", string(eff.To)),
			zap.String("trade_id", eff.TradeID))
	case EffectSubmitFailed, EffectStopFailed:
		s.logger.Error("Bot request failed",
			zap.String("effect", string(eff.Kind)),
			zap.String("trade_id", eff.TradeID),
			zap.Error(eff.Err))
	case EffectStreamStatus, EffectPriceFeed:
		if eff.Err != nil {
			s.logger.Warn("Feed status", zap.String("effect", string(eff.Kind)), zap.String("status", eff.Reason), zap.Error(eff.Err))
			return
		}
		s.logger.Info("Feed status", zap.String("effect", string(eff.Kind)), zap.String("status", eff.Reason))
	default:
		s.logger.Info("Monitor effect",
			zap.String("effect", string(eff.Kind)),
			zap.String("event", ev.Name()),
			zap.String("trade_id", eff.TradeID),
			zap.String("reason", eff.Reason))
	}
}

// notifyLoop fans effects out to observers and the journal off the event loop.
func (s *MonitorService) notifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.batches:
			s.obsMu.RLock()
			observers := s.observers
			s.obsMu.RUnlock()
			for _, eff := range b.effects {
				for _, o := range observers {
					o.Notify(eff, b.state)
				}
				s.record(ctx, eff)
			}
		}
	}
}

func (s *MonitorService) record(ctx context.Context, eff Effect) {
	if s.journal == nil {
		return
	}
	var entry *domain.JournalEntry
	now := s.timeNow()
	switch eff.Kind {
	case EffectTradeOpened:
		t := eff.Trade
		entry = &domain.JournalEntry{
			TradeID: t.ID, Kind: "submitted", Symbol: t.Symbol, Side: t.Side,
			Price: t.EntryPrice, StopLoss: t.CurrentStopLoss,
			Detail: fmt.Sprintf("%s entry, %d rungs", t.EntryMode, len(t.Levels)),
		}
	case EffectLevelReached:
		t := eff.Trade
		entry = &domain.JournalEntry{
			TradeID: t.ID, Kind: "level", Symbol: t.Symbol, Side: t.Side,
			Price: eff.Level.TargetPrice, StopLoss: t.CurrentStopLoss,
			Detail: fmt.Sprintf("%gR: %s", eff.Level.R, eff.Reason),
		}
	case EffectTradeClosed:
		c := eff.Close
		entry = &domain.JournalEntry{
			TradeID: c.TradeID, Kind: "closed", Symbol: c.Symbol,
			Price: c.ExitPrice, PnL: c.PnL, Detail: c.Reason,
		}
	case EffectSubmitFailed:
		entry = &domain.JournalEntry{Kind: "rejected", Detail: errText(eff.Err)}
	default:
		return
	}
	entry.CreatedAt = now
	if err := s.journal.SaveEntry(ctx, entry); err != nil {
		s.logger.Warn("Failed to save journal entry", zap.String("kind", entry.Kind), zap.Error(err))
	}
}

// Submit validates the draft and hands it to the bot. It returns once the
// monitor has entered Submitting; the outcome arrives as an effect.
func (s *MonitorService) Submit(ctx context.Context, draft domain.TradeDraft) (domain.TradeRequest, error) {
	req, err := ValidateRequest(draft, s.prices.Quote(draft.Symbol))
	if err != nil {
		return domain.TradeRequest{}, err
	}
	if _, err := BuildLadder(req.EntryPrice, req.StopLoss, req.Side, s.cfg.Rungs, s.cfg.PriceTick); err != nil {
		return domain.TradeRequest{}, err
	}

	effects, err := s.dispatch(ctx, SubmitRequested{Request: req})
	if err != nil {
		return domain.TradeRequest{}, err
	}
	if _, ok := findDropped(effects); ok {
		return domain.TradeRequest{}, domain.ErrTradeInFlight
	}

	s.logger.Info("Submitting trade",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("entry_mode", string(req.EntryMode)),
		zap.Float64("entry", req.EntryPrice),
		zap.Float64("stop_loss", req.StopLoss),
		zap.Float64("capital", req.Capital),
		zap.Float64("leverage", req.Leverage))

	go s.startTrade(s.loopContext(), req)
	return req, nil
}

// Stop asks the bot to close the active trade. The monitor stays Active
// until the bot confirms the close.
func (s *MonitorService) Stop(ctx context.Context) error {
	id := s.currentTradeID()
	if id == "" {
		return domain.ErrNoActiveTrade
	}
	effects, err := s.dispatch(ctx, StopRequested{TradeID: id})
	if err != nil {
		return err
	}
	if d, ok := findDropped(effects); ok {
		if d.Reason == "stop already requested" {
			return nil
		}
		return domain.ErrNoActiveTrade
	}
	return nil
}

func findDropped(effects []Effect) (Effect, bool) {
	for _, e := range effects {
		if e.Kind == EffectDropped {
			return e, true
		}
	}
	return Effect{}, false
}

func (s *MonitorService) startTrade(ctx context.Context, req domain.TradeRequest) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	trade, err := s.bot.StartTrade(cctx, req)
	if err != nil {
		s.post(ctx, SubmitFailed{Err: err})
		return
	}
	if trade != nil {
		s.completeTrade(trade, req)
	}
	s.post(ctx, SubmitSucceeded{Trade: trade})
}

// completeTrade fills what the bot left out from the request and keeps the
// ladder anchored on entry and the initial stop.
func (s *MonitorService) completeTrade(t *domain.ActiveTrade, req domain.TradeRequest) {
	if t.Symbol == "" {
		t.Symbol = req.Symbol
	}
	if !t.Side.Valid() {
		t.Side = req.Side
	}
	if t.EntryMode == "" {
		t.EntryMode = req.EntryMode
	}
	if !(t.EntryPrice > 0) {
		t.EntryPrice = req.EntryPrice
	}
	if !(t.Capital > 0) {
		t.Capital = req.Capital
	}
	if !(t.Leverage > 0) {
		t.Leverage = req.Leverage
	}
	if !(t.InitialStopLoss > 0) {
		t.InitialStopLoss = req.StopLoss
	}
	if !(t.CurrentStopLoss > 0) {
		t.CurrentStopLoss = t.InitialStopLoss
	}
	if !(t.Quantity > 0) && t.EntryPrice > 0 {
		t.Quantity = t.Capital * t.Leverage / t.EntryPrice
	}
	if !(t.RiskPerUnit > 0) {
		t.RiskPerUnit = math.Abs(t.EntryPrice - t.InitialStopLoss)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.timeNow()
	}

	if err := ValidateLadder(t.EntryPrice, t.Side, t.Levels); err != nil {
		levels, berr := BuildLadder(t.EntryPrice, t.InitialStopLoss, t.Side, s.cfg.Rungs, s.cfg.PriceTick)
		if berr != nil {
			s.logger.Warn("Cannot build ladder for trade", zap.String("trade_id", t.ID), zap.Error(berr))
		} else {
			s.logger.Debug("Using local ladder", zap.String("trade_id", t.ID), zap.NamedError("bot_ladder", err))
			t.Levels = levels
			t.CurrentLevel = -1
		}
	}
	if t.CurrentLevel < -1 || t.CurrentLevel >= len(t.Levels) {
		t.CurrentLevel = -1
	}
	if t.TakeProfit <= 0 && req.TakeProfit > 0 {
		t.TakeProfit = req.TakeProfit
	}
}

func (s *MonitorService) stopTrade(ctx context.Context, tradeID string) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if err := s.bot.StopTrade(cctx, tradeID); err != nil {
		s.post(ctx, StopFailed{TradeID: tradeID, Err: err})
		if errors.Is(err, domain.ErrTradeNotFound) {
			// the bot no longer has it; let the status decide
			s.syncTrade(ctx, tradeID)
		}
		return
	}
	s.logger.Info("Stop acknowledged by bot", zap.String("trade_id", tradeID))

	// without the stream the close would never arrive
	s.mu.RLock()
	connected := s.state.StreamConnected
	s.mu.RUnlock()
	if !connected {
		s.syncTrade(ctx, tradeID)
	}
}

func (s *MonitorService) syncTrade(ctx context.Context, tradeID string) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	status, err := s.bot.GetTradeStatus(cctx, tradeID)
	s.post(ctx, TradeSynced{TradeID: tradeID, Status: status, Err: err, At: s.timeNow()})
}

func (s *MonitorService) refreshPrices(ctx context.Context) {
	tradeID := s.currentTradeID()

	cctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	tickers, err := s.bot.GetTicker(cctx)
	now := s.timeNow()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("Failed to fetch tickers", zap.Error(err))
		s.post(ctx, PricesFailed{Err: err, At: now})
		return
	}
	s.post(ctx, PricesRefreshed{TradeID: tradeID, Table: BuildPriceTable(tickers, now), At: now})
}

// TradePreview is everything the trade form shows before submission.
type TradePreview struct {
	Quote        PriceQuote              `json:"quote"`
	QuoteText    string                  `json:"quote_text"`
	Risk         domain.RiskSnapshot     `json:"risk"`
	Suggestions  []domain.StopSuggestion `json:"suggestions"`
	Levels       []domain.TrailingLevel  `json:"levels,omitempty"`
	LadderError  string                  `json:"ladder_error,omitempty"`
	AutoTarget2R bool                    `json:"auto_target_2r"`
}

func (s *MonitorService) Preview(draft domain.TradeDraft) TradePreview {
	q := s.prices.Quote(draft.Symbol)
	p := TradePreview{
		Quote:        q,
		QuoteText:    FormatPrice(q.Price, q.Known()),
		Risk:         PreviewRisk(draft, q),
		AutoTarget2R: !(draft.TakeProfit > 0),
	}
	if q.Known() {
		p.Suggestions = SuggestStopLosses(q.Price, draft.Side, s.cfg.SuggestPercents)
	}
	if p.Risk.Complete && draft.StopLoss > 0 {
		levels, err := BuildLadder(p.Risk.EntryPrice, draft.StopLoss, draft.Side, s.cfg.Rungs, s.cfg.PriceTick)
		if err != nil {
			p.LadderError = err.Error()
		} else {
			p.Levels = levels
		}
	}
	return p
}

type PairQuote struct {
	domain.Pair
	Quote PriceQuote `json:"quote"`
	Text  string     `json:"text"`
}

func (s *MonitorService) Quotes(pairs []domain.Pair) []PairQuote {
	out := make([]PairQuote, 0, len(pairs))
	for _, p := range pairs {
		q := s.prices.Quote(p.Symbol)
		out = append(out, PairQuote{Pair: p, Quote: q, Text: FormatPrice(q.Price, q.Known())})
	}
	return out
}

// streamRelay turns push callbacks into monitor events.
type streamRelay struct {
	svc *MonitorService
	ctx context.Context
}

func (r *streamRelay) OnConnect() { r.svc.post(r.ctx, StreamConnected{}) }

func (r *streamRelay) OnDisconnect(err error) {
	r.svc.post(r.ctx, StreamDisconnected{Err: err})
}

func (r *streamRelay) OnPriceUpdate(ev domain.PriceUpdate) {
	r.svc.post(r.ctx, PushPriceUpdated{Update: ev, At: r.svc.timeNow()})
}

func (r *streamRelay) OnLevelReached(ev domain.LevelReached) {
	r.svc.post(r.ctx, PushLevelReached{Level: ev, At: r.svc.timeNow()})
}

func (r *streamRelay) OnTradeClosed(ev domain.TradeClosed) {
	r.svc.post(r.ctx, PushTradeClosed{Close: ev, At: r.svc.timeNow()})
}

func (r *streamRelay) OnLog(ev domain.BotLog) {
	r.svc.logger.Info("Bot log",
		zap.String("trade_id", ev.TradeID),
		zap.String("time", ev.Time),
		zap.String("type", ev.Type),
		zap.String("message", ev.Message))
}
