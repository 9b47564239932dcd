package syncloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"nebula-miniapp/internal/common/logger"
	"nebula-miniapp/internal/domain/inventory"
	"nebula-miniapp/internal/domain/user"
)

var (
	ErrGuestIdentity = errors.New("syncloop: guest identity has no inventory")
	ErrTickInFlight  = errors.New("syncloop: tick already in flight")
	ErrStopped       = errors.New("syncloop: loop stopped")
)

// State of one loop instance.
type State int32

const (
	StateIdle State = iota
	StateActive
	StateError
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Config struct {
	Interval           time.Duration
	MinAccrualInterval time.Duration
	AccrualUnit        int64
	RequestTimeout     time.Duration
	MaxBackoff         time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.MinAccrualInterval <= 0 {
		c.MinAccrualInterval = c.Interval
	}
	if c.AccrualUnit <= 0 {
		c.AccrualUnit = 1
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxBackoff < c.Interval {
		c.MaxBackoff = c.Interval
	}
	return c
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// InventoryClient is the backend surface a loop talks to.
type InventoryClient interface {
	GetInventory(ctx context.Context, userID string) (*inventory.Account, error)
	UpsertInventory(ctx context.Context, acc *inventory.Account) (*inventory.Account, error)
}

// Sink receives tick results. Apply returns false when generation is no
// longer the current one for userID; the result is then dropped.
type Sink interface {
	Apply(userID string, generation uint64, acc inventory.Account) bool
}

// Runner owns at most one loop per user.
type Runner struct {
	cfg    Config
	client InventoryClient
	sink   Sink
	clock  Clock
	log    zerolog.Logger

	generation atomic.Uint64

	mu      sync.Mutex
	handles map[string]*Handle
}

func NewRunner(cfg Config, client InventoryClient, sink Sink) *Runner {
	return &Runner{
		cfg:     cfg.withDefaults(),
		client:  client,
		sink:    sink,
		clock:   systemClock{},
		log:     logger.With("syncloop"),
		handles: make(map[string]*Handle),
	}
}

// WithClock replaces the time source.
func (r *Runner) WithClock(c Clock) *Runner {
	r.clock = c
	return r
}

func (r *Runner) Config() Config { return r.cfg }

// Start launches a loop for userID bound to ctx. A loop already running for
// the same user is stopped first.
func (r *Runner) Start(ctx context.Context, userID string) (*Handle, error) {
	if userID == "" || userID == user.GuestID {
		return nil, ErrGuestIdentity
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		UserID:     userID,
		Generation: r.generation.Add(1),
		runner:     r,
		ctx:        loopCtx,
		cancel:     cancel,
		trigger:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	h.live.Store(true)
	h.state.Store(int32(StateIdle))

	r.mu.Lock()
	prev := r.handles[userID]
	r.handles[userID] = h
	r.mu.Unlock()

	if prev != nil {
		r.stop(prev)
	}

	go h.run()

	r.log.Info().Str("user_id", userID).Uint64("generation", h.Generation).Msg("Sync loop started")
	return h, nil
}

// Stop terminates h. After Stop returns no result of h reaches the sink.
// Stopping twice is a no-op.
func (r *Runner) Stop(h *Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	if r.handles[h.UserID] == h {
		delete(r.handles, h.UserID)
	}
	r.mu.Unlock()
	r.stop(h)
}

func (r *Runner) stop(h *Handle) {
	h.stopOnce.Do(func() {
		h.applyMu.Lock()
		h.live.Store(false)
		h.applyMu.Unlock()
		h.cancel()
		<-h.done
		h.state.Store(int32(StateTerminated))
		r.log.Info().Str("user_id", h.UserID).Uint64("generation", h.Generation).Msg("Sync loop stopped")
	})
}

// Lookup returns the running loop for userID.
func (r *Runner) Lookup(userID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[userID]
	return h, ok
}

// Active returns the number of running loops.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// StopAll terminates every loop.
func (r *Runner) StopAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	for _, h := range handles {
		r.stop(h)
	}
}
