package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/storage"
)

// Dispatcher fans classified attempts out to the configured sinks. Writes
// happen in the background; a failing sink is logged and never reaches the
// trade that produced the attempt.
type Dispatcher struct {
	sinks        map[string]storage.AttemptSink
	writeTimeout time.Duration
	logger       *logrus.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherConfig holds configuration for the dispatcher
type DispatcherConfig struct {
	WriteTimeout time.Duration
	Logger       *logrus.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = constants.ActivityWriteTimeout
	}
	return &Dispatcher{
		sinks:        make(map[string]storage.AttemptSink),
		writeTimeout: cfg.WriteTimeout,
		logger:       cfg.Logger,
	}
}

// AddSink registers sink under name. A nil sink is ignored so optional
// backends can be passed through unconditionally.
func (d *Dispatcher) AddSink(name string, sink storage.AttemptSink) *Dispatcher {
	if sink == nil {
		return d
	}
	d.mu.Lock()
	d.sinks[name] = sink
	d.mu.Unlock()
	return d
}

func (d *Dispatcher) Sinks() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sinks)
}

// Report implements swapengine.ActivityReporter.
func (d *Dispatcher) Report(attempt models.TradeAttempt) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	for name, sink := range d.sinks {
		d.wg.Add(1)
		go d.deliver(name, sink, attempt)
	}
}

func (d *Dispatcher) deliver(name string, sink storage.AttemptSink, attempt models.TradeAttempt) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"sink":  name,
				"panic": fmt.Sprint(r),
			}).Error("activity sink panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	if err := sink.RecordAttempt(ctx, &attempt); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"sink":     name,
			"trade_id": attempt.TradeID,
			"attempt":  attempt.AttemptNumber,
		}).Warn("failed to record attempt")
	}
}

// Close stops accepting attempts and waits for pending writes or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
