package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"nebula-miniapp/internal/common/cache"
	apperrors "nebula-miniapp/internal/common/errors"
	"nebula-miniapp/internal/common/logger"
	"nebula-miniapp/internal/common/validation"
	"nebula-miniapp/internal/domain/catalog"
	"nebula-miniapp/internal/domain/user"
	"nebula-miniapp/internal/features/catalog/models"
	"nebula-miniapp/internal/features/catalog/ranker"
	"nebula-miniapp/internal/platform/backend"
)

// Backend is the catalog surface of the remote backend.
type Backend interface {
	ListCatalog(ctx context.Context) ([]catalog.Item, error)
	RateItem(ctx context.Context, itemID string, rating int) (*catalog.Item, error)
	ComplainItem(ctx context.Context, itemID string) (*catalog.Item, error)
	Donate(ctx context.Context, itemID, userID string, stars int) (*backend.DonationResult, error)
	RegisterClick(ctx context.Context, itemID string) (int64, error)
}

type Cache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, setter func() (interface{}, error)) error
	InvalidateCatalog(ctx context.Context) error
}

type CatalogService interface {
	List(ctx context.Context, filter models.Filter) (*models.ListResponse, error)
	Ranked(ctx context.Context) ([]catalog.Item, error)
	Categories(ctx context.Context, kind string) (*models.CategoriesResponse, error)
	Detail(ctx context.Context, id string) (*models.DetailResponse, error)
	Rate(ctx context.Context, id string, rating int) (*catalog.Item, error)
	Complain(ctx context.Context, id string) (*catalog.Item, error)
	Donate(ctx context.Context, id, userID string, stars int) (*models.DonateResponse, error)
	Click(ctx context.Context, id string) (*models.ClickResponse, error)
}

type Config struct {
	CacheTTL     time.Duration
	SimilarLimit int
}

type catalogService struct {
	cfg     Config
	backend Backend
	cache   Cache
	now     func() time.Time
	log     zerolog.Logger
}

// NewCatalogService builds the service. cache may be nil.
func NewCatalogService(cfg Config, client Backend, store Cache) CatalogService {
	if cfg.SimilarLimit <= 0 {
		cfg.SimilarLimit = 3
	}
	return &catalogService{
		cfg:     cfg,
		backend: client,
		cache:   store,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.With("catalog"),
	}
}

func (s *catalogService) List(ctx context.Context, filter models.Filter) (*models.ListResponse, error) {
	if !validation.IsValidKind(filter.Kind) {
		return nil, apperrors.NewValidationError("kind", "must be one of all, games, apps")
	}
	if err := validation.ValidateCategory(filter.Category); err != nil {
		return nil, apperrors.NewValidationError("category", err.Error())
	}

	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]catalog.Item, 0, len(items))
	for i := range items {
		if matches(&items[i], filter) {
			filtered = append(filtered, items[i])
		}
	}
	ranked := ranker.Rank(filtered, filter.Category, s.now())

	return &models.ListResponse{
		Items:    ranked,
		Total:    len(ranked),
		Kind:     orDefault(filter.Kind, "all"),
		Category: sentinelOr(filter.Category),
		Geo:      sentinelOr(filter.Geo),
	}, nil
}

// Ranked returns the whole catalog in display order with no filter applied.
func (s *catalogService) Ranked(ctx context.Context) ([]catalog.Item, error) {
	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ranker.Rank(items, ranker.AllCategories, s.now()), nil
}

func (s *catalogService) Categories(ctx context.Context, kind string) (*models.CategoriesResponse, error) {
	if !validation.IsValidKind(kind) {
		return nil, apperrors.NewValidationError("kind", "must be one of all, games, apps")
	}
	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.CategoriesResponse{
		Categories: []string{ranker.AllCategories},
		Geos:       []string{ranker.AllCategories},
	}
	seenCat := map[string]struct{}{}
	seenGeo := map[string]struct{}{}
	for i := range items {
		if !matchesKind(&items[i], kind) {
			continue
		}
		for _, c := range items[i].Categories() {
			if _, ok := seenCat[c]; !ok {
				seenCat[c] = struct{}{}
				resp.Categories = append(resp.Categories, c)
			}
		}
		if g := items[i].Geo; g != "" {
			if _, ok := seenGeo[g]; !ok {
				seenGeo[g] = struct{}{}
				resp.Geos = append(resp.Geos, g)
			}
		}
	}
	return resp, nil
}

func (s *catalogService) Detail(ctx context.Context, id string) (*models.DetailResponse, error) {
	if err := validation.ValidateItemID(id); err != nil {
		return nil, apperrors.NewValidationError("id", err.Error())
	}
	ranked, err := s.Ranked(ctx)
	if err != nil {
		return nil, err
	}

	position := ranker.Position(ranked, id)
	if position == 0 {
		return nil, apperrors.NewItemNotFoundError(id)
	}
	item := ranked[position-1]

	similar := make([]catalog.Item, 0, s.cfg.SimilarLimit)
	for i := range ranked {
		if len(similar) == s.cfg.SimilarLimit {
			break
		}
		if ranked[i].ID != id && item.SharesCategory(&ranked[i]) {
			similar = append(similar, ranked[i])
		}
	}

	return &models.DetailResponse{Item: item, Position: position, Similar: similar}, nil
}

func (s *catalogService) Rate(ctx context.Context, id string, rating int) (*catalog.Item, error) {
	if err := validation.ValidateItemID(id); err != nil {
		return nil, apperrors.NewValidationError("id", err.Error())
	}
	if err := validation.ValidateRating(rating); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRating, err.Error()).WithDetail("rating", rating)
	}
	item, err := s.backend.RateItem(ctx, id, rating)
	if err != nil {
		return nil, s.backendError("rate item", id, err)
	}
	s.invalidate(ctx)
	return item, nil
}

func (s *catalogService) Complain(ctx context.Context, id string) (*catalog.Item, error) {
	if err := validation.ValidateItemID(id); err != nil {
		return nil, apperrors.NewValidationError("id", err.Error())
	}
	item, err := s.backend.ComplainItem(ctx, id)
	if err != nil {
		return nil, s.backendError("complain item", id, err)
	}
	s.invalidate(ctx)
	return item, nil
}

func (s *catalogService) Donate(ctx context.Context, id, userID string, stars int) (*models.DonateResponse, error) {
	if userID == "" || userID == user.GuestID {
		return nil, apperrors.NewGuestIdentityError("donate")
	}
	if err := validation.ValidateItemID(id); err != nil {
		return nil, apperrors.NewValidationError("id", err.Error())
	}
	if err := validation.ValidateDonation(stars); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidDonation, err.Error()).WithDetail("stars", stars)
	}
	res, err := s.backend.Donate(ctx, id, userID, stars)
	if err != nil {
		return nil, s.backendError("donate", id, err)
	}
	s.invalidate(ctx)
	s.log.Info().Str("item_id", id).Str("user_id", userID).Int("stars", stars).Msg("Donation forwarded")
	return &models.DonateResponse{Message: res.Message, UpdatedStars: res.UpdatedStars}, nil
}

func (s *catalogService) Click(ctx context.Context, id string) (*models.ClickResponse, error) {
	if err := validation.ValidateItemID(id); err != nil {
		return nil, apperrors.NewValidationError("id", err.Error())
	}
	clicks, err := s.backend.RegisterClick(ctx, id)
	if err != nil {
		return nil, s.backendError("register click", id, err)
	}
	// opens catch up when the cached snapshot expires
	return &models.ClickResponse{Clicks: clicks}, nil
}

func (s *catalogService) fetch(ctx context.Context) ([]catalog.Item, error) {
	var items []catalog.Item
	load := func() (interface{}, error) { return s.backend.ListCatalog(ctx) }

	var err error
	if s.cache != nil {
		err = s.cache.GetOrSet(ctx, cache.CatalogKey, &items, s.cfg.CacheTTL, load)
	} else {
		var v interface{}
		if v, err = load(); err == nil {
			items = v.([]catalog.Item)
		}
	}
	if err != nil {
		return nil, s.backendError("list catalog", "", err)
	}
	if items == nil {
		items = []catalog.Item{}
	}
	return items, nil
}

func (s *catalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCatalog(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate catalog cache")
	}
}

func (s *catalogService) backendError(operation, id string, err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if wait, ok := backend.RetryAfter(err); ok {
		return apperrors.NewRateLimitError("backend", wait)
	}
	switch {
	case errors.Is(err, backend.ErrNotFound) && id != "":
		return apperrors.NewItemNotFoundError(id)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeBackendTimeout, "Backend timed out: "+operation)
	}
	return apperrors.NewBackendError(operation, err)
}

func matches(item *catalog.Item, f models.Filter) bool {
	if !matchesKind(item, f.Kind) {
		return false
	}
	if !ranker.IsAllCategory(f.Category) && !item.InCategory(f.Category) {
		return false
	}
	if !ranker.IsAllCategory(f.Geo) && item.Geo != f.Geo {
		return false
	}
	return true
}

func matchesKind(item *catalog.Item, kind string) bool {
	switch kind {
	case "games":
		return item.Kind == catalog.KindGame
	case "apps":
		return item.Kind == catalog.KindApp
	}
	return true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func sentinelOr(v string) string {
	if ranker.IsAllCategory(v) {
		return ranker.AllCategories
	}
	return v
}
