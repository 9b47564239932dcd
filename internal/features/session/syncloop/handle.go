package syncloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"nebula-miniapp/internal/domain/inventory"
)

// Handle is one running loop instance.
type Handle struct {
	UserID     string
	Generation uint64

	runner *Runner
	ctx    context.Context
	cancel context.CancelFunc

	live     atomic.Bool
	inFlight atomic.Bool
	state    atomic.Int32
	failures atomic.Int32

	trigger  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// held across the liveness check and sink.Apply
	applyMu sync.Mutex

	mu       sync.Mutex
	lastErr  error
	lastSync time.Time
}

func (h *Handle) State() State { return State(h.state.Load()) }

// Alive reports whether the loop still accepts results.
func (h *Handle) Alive() bool { return h.live.Load() }

// LastError is the error of the most recent failed tick, nil after a success.
func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// LastSync is when a tick last reached the sink.
func (h *Handle) LastSync() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSync
}

// Sync runs a tick now in the caller's goroutine. It returns ErrTickInFlight
// when another tick is running and ErrStopped once the loop is terminated.
// A tick abandoned because ctx ended does not count against the loop.
func (h *Handle) Sync(ctx context.Context) error {
	if !h.live.Load() {
		return ErrStopped
	}
	if !h.inFlight.CompareAndSwap(false, true) {
		return ErrTickInFlight
	}
	defer h.inFlight.Store(false)

	tickCtx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := h.tick(tickCtx)
	if err != nil && ctx.Err() != nil && h.ctx.Err() == nil {
		return ctx.Err()
	}
	h.record(err)
	return err
}

// Kick asks the loop goroutine for an early tick without waiting for it.
func (h *Handle) Kick() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

func (h *Handle) run() {
	defer close(h.done)
	r := h.runner
	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-timer.C:
		case <-h.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		delay := r.cfg.Interval
		if h.inFlight.CompareAndSwap(false, true) {
			err := h.tick(h.ctx)
			h.inFlight.Store(false)
			h.record(err)
			delay = Backoff(r.cfg.Interval, r.cfg.MaxBackoff, int(h.failures.Load()))
		}
		timer.Reset(delay)
	}
}

func (h *Handle) tick(ctx context.Context) error {
	r := h.runner
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	acc, err := r.client.GetInventory(ctx, h.UserID)
	if err != nil {
		return err
	}
	next := *acc
	if next.UserID == "" {
		next.UserID = h.UserID
	}

	if accrued, ok := Accrue(next, r.clock.Now(), r.cfg.MinAccrualInterval, r.cfg.AccrualUnit); ok {
		saved, err := r.client.UpsertInventory(ctx, &accrued)
		if err != nil {
			return err
		}
		next = accrued
		if saved != nil {
			next = inventory.Merge(accrued, *saved)
		}
	}

	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	if !h.live.Load() || h.ctx.Err() != nil {
		return ErrStopped
	}
	if !r.sink.Apply(h.UserID, h.Generation, next) {
		r.log.Debug().Str("user_id", h.UserID).Uint64("generation", h.Generation).Msg("Stale tick result dropped")
		return ErrStopped
	}
	return nil
}

func (h *Handle) record(err error) {
	r := h.runner
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case err == nil:
		h.failures.Store(0)
		h.lastErr = nil
		h.lastSync = r.clock.Now()
		h.state.CompareAndSwap(int32(StateIdle), int32(StateActive))
		h.state.CompareAndSwap(int32(StateError), int32(StateActive))
	case errors.Is(err, ErrStopped), errors.Is(err, ErrTickInFlight), !h.live.Load():
		// not a failure of the loop
	default:
		n := h.failures.Add(1)
		h.lastErr = err
		h.state.CompareAndSwap(int32(StateIdle), int32(StateError))
		h.state.CompareAndSwap(int32(StateActive), int32(StateError))
		r.log.Warn().Err(err).
			Str("user_id", h.UserID).
			Int32("failures", n).
			Dur("retry_in", Backoff(r.cfg.Interval, r.cfg.MaxBackoff, int(n))).
			Msg("Sync tick failed")
	}
}
