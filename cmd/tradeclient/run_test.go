package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMonitor struct {
	err     error
	linger  time.Duration
	stopped atomic.Bool
}

func (m *fakeMonitor) Run(ctx context.Context) error {
	if m.err != nil {
		m.stopped.Store(true)
		return m.err
	}
	<-ctx.Done()
	// last journal writes after cancellation
	time.Sleep(m.linger)
	m.stopped.Store(true)
	return ctx.Err()
}

type fakeDashboard struct {
	done chan struct{}
}

func newFakeDashboard() *fakeDashboard { return &fakeDashboard{done: make(chan struct{})} }

func (d *fakeDashboard) Start() error {
	<-d.done
	return nil
}

func (d *fakeDashboard) Shutdown(ctx context.Context) error {
	close(d.done)
	return nil
}

func TestServeWaitsForMonitor(t *testing.T) {
	monitor := &fakeMonitor{linger: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() { result <- serve(ctx, monitor, newFakeDashboard(), zap.NewNop()) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
	assert.True(t, monitor.stopped.Load(), "serve returned before the monitor stopped")
}

func TestServeReturnsMonitorFailure(t *testing.T) {
	boom := errors.New("boom")
	monitor := &fakeMonitor{err: boom}

	err := serve(context.Background(), monitor, newFakeDashboard(), zap.NewNop())
	assert.ErrorIs(t, err, boom)
	assert.True(t, monitor.stopped.Load())
}
