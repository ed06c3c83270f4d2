package usecase

import (
	"context"
	"sync"
	"time"
)

// PricePoller calls fetch on a fixed cadence. The interval can be changed or
// paused (interval <= 0) while running; a fetch in progress is never cut short.
type PricePoller struct {
	fetch func(ctx context.Context)

	mu       sync.Mutex
	interval time.Duration
	reset    chan time.Duration
}

func NewPricePoller(interval time.Duration, fetch func(ctx context.Context)) *PricePoller {
	return &PricePoller{
		fetch:    fetch,
		interval: interval,
		reset:    make(chan time.Duration, 1),
	}
}

func (p *PricePoller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval reconfigures the cadence. d <= 0 stops polling until set again.
func (p *PricePoller) SetInterval(d time.Duration) {
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()

	// keep only the latest request
	select {
	case <-p.reset:
	default:
	}
	p.reset <- d
}

// Run blocks until ctx is done.
func (p *PricePoller) Run(ctx context.Context) {
	interval := p.Interval()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if interval > 0 {
		p.fetch(ctx)
		ticker = time.NewTicker(interval)
		tick = ticker.C
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			p.fetch(ctx)
		case d := <-p.reset:
			if d <= 0 {
				if ticker != nil {
					ticker.Stop()
				}
				tick = nil
				continue
			}
			if ticker == nil {
				ticker = time.NewTicker(d)
			} else {
				ticker.Reset(d)
			}
			tick = ticker.C
		}
	}
}
