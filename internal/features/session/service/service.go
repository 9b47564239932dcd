package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nebula-miniapp/internal/common/cache"
	apperrors "nebula-miniapp/internal/common/errors"
	"nebula-miniapp/internal/common/logger"
	"nebula-miniapp/internal/domain/catalog"
	"nebula-miniapp/internal/domain/identity"
	"nebula-miniapp/internal/domain/inventory"
	"nebula-miniapp/internal/domain/user"
	"nebula-miniapp/internal/features/session/models"
	"nebula-miniapp/internal/features/session/syncloop"
	"nebula-miniapp/internal/platform/backend"
)

// Backend is the profile and inventory surface of the remote backend.
type Backend interface {
	GetUser(ctx context.Context, userID string) (*user.Profile, error)
	UpsertUser(ctx context.Context, p *user.Profile, platform string) (*user.Profile, error)
	syncloop.InventoryClient
}

// CatalogSource yields the full catalog in display order.
type CatalogSource interface {
	Ranked(ctx context.Context) ([]catalog.Item, error)
}

// Mirror keeps a copy of session balances outside the process.
type Mirror interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateSession(ctx context.Context, userID string) error
}

type Config struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
	MirrorTTL    time.Duration
	Sync         syncloop.Config
}

type Deps struct {
	Backend Backend
	Catalog CatalogSource
	Mirror  Mirror
	Clock   syncloop.Clock
}

type SessionService interface {
	Bootstrap(ctx context.Context, id identity.Identity) models.BootstrapResponse
	Start(ctx context.Context, id identity.Identity) (*models.SessionResponse, error)
	Sync(ctx context.Context, userID string) (*models.SessionResponse, error)
	Stop(ctx context.Context, userID string) error
	Snapshot(ctx context.Context, userID string) (*models.SessionResponse, error)
	Touch(userID string)
}

type session struct {
	userID     string
	platform   string
	profile    user.Profile
	inventory  inventory.Account
	handle     *syncloop.Handle
	generation uint64
	startedAt  time.Time
	lastSeen   time.Time
}

type Service struct {
	cfg     Config
	backend Backend
	catalog CatalogSource
	mirror  Mirror
	clock   syncloop.Clock
	runner  *syncloop.Runner
	log     zerolog.Logger

	// loops outlive the request that started them
	root context.Context

	mu       sync.Mutex
	sessions map[string]*session
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// New wires a session service and its sync runner. Loops are bound to root.
func New(root context.Context, cfg Config, deps Deps) *Service {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 30 * time.Second
	}
	if cfg.MirrorTTL <= 0 {
		cfg.MirrorTTL = 10 * time.Minute
	}
	s := &Service{
		cfg:      cfg,
		backend:  deps.Backend,
		catalog:  deps.Catalog,
		mirror:   deps.Mirror,
		clock:    deps.Clock,
		log:      logger.With("session"),
		root:     root,
		sessions: make(map[string]*session),
	}
	if s.clock == nil {
		s.clock = utcClock{}
	}
	s.runner = syncloop.NewRunner(cfg.Sync, deps.Backend, s).WithClock(s.clock)
	return s
}

// Bootstrap never fails: backend errors come back as defaults plus Error.
func (s *Service) Bootstrap(ctx context.Context, id identity.Identity) models.BootstrapResponse {
	resp := models.BootstrapResponse{
		Guest:     id.IsGuest(),
		Platform:  id.Platform,
		Profile:   profileFromIdentity(id),
		Inventory: inventory.Empty(id.UserID),
		Catalog:   []catalog.Item{},
	}
	if id.IsGuest() {
		resp.Profile = user.Guest()
		return resp
	}

	var (
		profile *user.Profile
		acc     *inventory.Account
		items   []catalog.Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if profile, err = s.loadProfile(gctx, id); err != nil {
			return err
		}
		acc, err = s.loadInventory(gctx, id.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.catalog.Ranked(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.log.Warn().Err(err).Str("user_id", id.UserID).Msg("Bootstrap failed, serving defaults")
		resp.Error = err.Error()
		return resp
	}

	resp.Profile = *profile
	resp.Inventory = *acc
	if items != nil {
		resp.Catalog = items
	}

	snap, err := s.begin(id, *profile, *acc)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Session = snap
	return resp
}

// Start begins a session for id, or refreshes the existing one.
func (s *Service) Start(ctx context.Context, id identity.Identity) (*models.SessionResponse, error) {
	if id.IsGuest() {
		return nil, apperrors.NewGuestIdentityError("start session")
	}
	if snap, h, ok := s.heartbeat(id.UserID); ok {
		if h != nil && h.State() == syncloop.StateError {
			// retry now rather than after the backoff
			h.Kick()
		}
		return snap, nil
	}

	var (
		profile *user.Profile
		acc     *inventory.Account
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.fetchProfile(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		acc, err = s.loadInventory(gctx, id.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, toAppError("start session", err)
	}
	return s.begin(id, *profile, *acc)
}

// Sync runs an immediate tick. A tick already in flight is not an error.
func (s *Service) Sync(ctx context.Context, userID string) (*models.SessionResponse, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	var h *syncloop.Handle
	if ok {
		sess.lastSeen = s.clock.Now()
		h = sess.handle
	}
	s.mu.Unlock()
	if !ok || h == nil {
		return nil, apperrors.New(apperrors.ErrCodeSessionNotFound, "No active session").WithUserID(userID)
	}

	if err := h.Sync(ctx); err != nil && !errors.Is(err, syncloop.ErrTickInFlight) {
		return nil, toAppError("sync inventory", err)
	}
	return s.Snapshot(ctx, userID)
}

// Stop ends the session, marks the profile offline and drops the mirror.
// Stopping a user without a session is a no-op.
func (s *Service) Stop(ctx context.Context, userID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	s.runner.Stop(sess.handle)

	if s.mirror != nil {
		if err := s.mirror.InvalidateSession(ctx, userID); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to drop session mirror")
		}
	}

	offline := sess.profile
	offline.OnlineStatus = user.StatusOffline
	if _, err := s.backend.UpsertUser(ctx, &offline, sess.platform); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to mark user offline")
	}

	s.log.Info().Str("user_id", userID).Msg("Session stopped")
	return nil
}

// Snapshot returns the live session, or the mirrored balance of a
// session that ended in another process.
func (s *Service) Snapshot(ctx context.Context, userID string) (*models.SessionResponse, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	var snap *models.SessionResponse
	if ok {
		snap = s.snapshotLocked(sess)
	}
	s.mu.Unlock()
	if ok {
		return snap, nil
	}

	if s.mirror != nil {
		var acc inventory.Account
		err := s.mirror.Get(ctx, cache.SessionInventoryKey(userID), &acc)
		switch {
		case err == nil:
			return &models.SessionResponse{
				UserID:    userID,
				State:     syncloop.StateTerminated.String(),
				Inventory: acc,
			}, nil
		case !errors.Is(err, cache.ErrMiss):
			return nil, apperrors.NewCacheError("read session mirror", err).WithUserID(userID)
		}
	}
	return nil, apperrors.New(apperrors.ErrCodeSessionNotFound, "No active session").WithUserID(userID)
}

// Touch records activity for userID.
func (s *Service) Touch(userID string) {
	s.heartbeat(userID)
}

// Apply merges a tick result. Results from a superseded loop are refused.
func (s *Service) Apply(userID string, generation uint64, acc inventory.Account) bool {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok || generation < sess.generation {
		s.mu.Unlock()
		return false
	}
	sess.generation = generation
	sess.inventory = inventory.Merge(sess.inventory, acc)
	merged := sess.inventory
	s.mu.Unlock()

	s.writeMirror(userID, merged)
	return true
}

// Active returns the number of live sessions.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunReaper stops idle sessions until ctx is done.
func (s *Service) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdle(ctx)
		}
	}
}

// ReapIdle stops every session not touched within the idle timeout.
func (s *Service) ReapIdle(ctx context.Context) int {
	now := s.clock.Now()
	var idle []string
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) >= s.cfg.IdleTimeout {
			idle = append(idle, id)
		}
	}
	s.mu.Unlock()

	for _, id := range idle {
		stopCtx, cancel := context.WithTimeout(ctx, s.cfg.Sync.RequestTimeout+time.Second)
		_ = s.Stop(stopCtx, id)
		cancel()
	}
	if len(idle) > 0 {
		s.log.Info().Int("reaped", len(idle)).Msg("Idle sessions stopped")
	}
	return len(idle)
}

// Shutdown stops every session.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.Stop(ctx, id)
	}
	s.runner.StopAll()
}

func (s *Service) begin(id identity.Identity, profile user.Profile, acc inventory.Account) (*models.SessionResponse, error) {
	now := s.clock.Now()

	s.mu.Lock()
	sess, exists := s.sessions[id.UserID]
	if !exists {
		sess = &session{userID: id.UserID, startedAt: now}
		s.sessions[id.UserID] = sess
	}
	sess.platform = id.Platform
	sess.profile = profile
	sess.inventory = inventory.Merge(sess.inventory, acc)
	sess.lastSeen = now
	prev := sess.handle
	s.mu.Unlock()

	// the runner replaces prev itself; no lock may be held while it waits
	h, err := s.runner.Start(s.root, id.UserID)
	if err != nil {
		s.mu.Lock()
		if s.sessions[id.UserID] == sess && sess.handle == prev {
			delete(s.sessions, id.UserID)
		}
		s.mu.Unlock()
		return nil, toAppError("start sync loop", err)
	}

	s.mu.Lock()
	if s.sessions[id.UserID] != sess {
		// stopped while the loop was starting
		s.mu.Unlock()
		s.runner.Stop(h)
		return nil, apperrors.New(apperrors.ErrCodeSessionNotFound, "Session ended while starting").WithUserID(id.UserID)
	}
	if h.Generation > sess.generation {
		sess.generation = h.Generation
	}
	sess.handle = h
	snap := s.snapshotLocked(sess)
	s.mu.Unlock()

	s.writeMirror(id.UserID, snap.Inventory)
	return snap, nil
}

func (s *Service) heartbeat(userID string) (*models.SessionResponse, *syncloop.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil, false
	}
	sess.lastSeen = s.clock.Now()
	return s.snapshotLocked(sess), sess.handle, true
}

func (s *Service) snapshotLocked(sess *session) *models.SessionResponse {
	snap := &models.SessionResponse{
		UserID:     sess.userID,
		Generation: sess.generation,
		Inventory:  sess.inventory,
		StartedAt:  sess.startedAt,
		LastSeen:   sess.lastSeen,
		State:      syncloop.StateIdle.String(),
	}
	if h := sess.handle; h != nil {
		snap.Active = h.Alive()
		snap.State = h.State().String()
		if t := h.LastSync(); !t.IsZero() {
			snap.LastSync = &t
		}
		if err := h.LastError(); err != nil {
			snap.LastError = err.Error()
		}
	}
	return snap
}

// fetchProfile returns the stored profile, registering a login only for
// users the backend does not know yet.
func (s *Service) fetchProfile(ctx context.Context, id identity.Identity) (*user.Profile, error) {
	p, err := s.backend.GetUser(ctx, id.UserID)
	if errors.Is(err, backend.ErrNotFound) {
		fresh := profileFromIdentity(id)
		return s.recordLogin(ctx, id, &fresh)
	}
	return p, err
}

func (s *Service) loadProfile(ctx context.Context, id identity.Identity) (*user.Profile, error) {
	p, err := s.backend.GetUser(ctx, id.UserID)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		fresh := profileFromIdentity(id)
		p = &fresh
	case err != nil:
		return nil, err
	}
	return s.recordLogin(ctx, id, p)
}

// recordLogin refreshes p from the identity, counts the login and upserts it.
func (s *Service) recordLogin(ctx context.Context, id identity.Identity, p *user.Profile) (*user.Profile, error) {
	if id.Username != "" {
		p.Username = id.Username
	}
	if id.PhotoURL != "" {
		p.PhotoURL = id.PhotoURL
	}
	p.IsPremium = id.IsPremium
	p.RecordLogin(id.Platform, s.clock.Now())

	return s.backend.UpsertUser(ctx, p, id.Platform)
}

func (s *Service) loadInventory(ctx context.Context, userID string) (*inventory.Account, error) {
	acc, err := s.backend.GetInventory(ctx, userID)
	if errors.Is(err, backend.ErrNotFound) {
		empty := inventory.Empty(userID)
		return s.backend.UpsertInventory(ctx, &empty)
	}
	return acc, err
}

func (s *Service) writeMirror(userID string, acc inventory.Account) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.mirror.Set(ctx, cache.SessionInventoryKey(userID), acc, s.cfg.MirrorTTL); err != nil {
		s.log.Debug().Err(err).Str("user_id", userID).Msg("Session mirror write failed")
	}
}

func profileFromIdentity(id identity.Identity) user.Profile {
	return user.Profile{
		ID:            id.UserID,
		Username:      id.Username,
		PhotoURL:      id.PhotoURL,
		IsPremium:     id.IsPremium,
		PlatformsSeen: []string{},
		OnlineStatus:  user.StatusOffline,
		Referrals:     []user.Referral{},
	}
}

func toAppError(operation string, err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	if wait, ok := backend.RetryAfter(err); ok {
		return apperrors.NewRateLimitError("backend", wait)
	}
	switch {
	case errors.Is(err, syncloop.ErrGuestIdentity):
		return apperrors.NewGuestIdentityError(operation)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeBackendTimeout, "Backend timed out: "+operation)
	}
	return apperrors.NewBackendError(operation, err)
}
