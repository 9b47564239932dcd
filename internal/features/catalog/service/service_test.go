package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nebula-miniapp/internal/common/errors"
	"nebula-miniapp/internal/domain/catalog"
	"nebula-miniapp/internal/features/catalog/models"
	"nebula-miniapp/internal/platform/backend"
)

type fakeBackend struct {
	items   []catalog.Item
	listErr error
	lists   int
	actions []string
}

func (f *fakeBackend) ListCatalog(context.Context) ([]catalog.Item, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]catalog.Item, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeBackend) RateItem(_ context.Context, id string, rating int) (*catalog.Item, error) {
	f.actions = append(f.actions, "rate:"+id)
	if id == "missing" {
		return nil, backend.ErrNotFound
	}
	return &catalog.Item{ID: id, UserRating: float64(rating)}, nil
}

func (f *fakeBackend) ComplainItem(_ context.Context, id string) (*catalog.Item, error) {
	f.actions = append(f.actions, "complain:"+id)
	return &catalog.Item{ID: id, Complaints: 1}, nil
}

func (f *fakeBackend) Donate(_ context.Context, id, userID string, stars int) (*backend.DonationResult, error) {
	f.actions = append(f.actions, "donate:"+id+":"+userID)
	return &backend.DonationResult{Message: "ok", UpdatedStars: int64(stars) + 100}, nil
}

func (f *fakeBackend) RegisterClick(_ context.Context, id string) (int64, error) {
	f.actions = append(f.actions, "click:"+id)
	return 11, nil
}

type countingCache struct {
	stored      interface{}
	invalidated int
}

func (c *countingCache) GetOrSet(_ context.Context, _ string, dest interface{}, _ time.Duration, setter func() (interface{}, error)) error {
	if c.stored == nil {
		v, err := setter()
		if err != nil {
			return err
		}
		c.stored = v
	}
	*(dest.(*[]catalog.Item)) = c.stored.([]catalog.Item)
	return nil
}

func (c *countingCache) InvalidateCatalog(context.Context) error {
	c.stored = nil
	c.invalidated++
	return nil
}

func sampleItems() []catalog.Item {
	return []catalog.Item{
		{ID: "g1", Kind: catalog.KindGame, Category: "Arcade", Geo: "US", UserRating: 4},
		{ID: "g2", Kind: catalog.KindGame, Category: "Puzzle", AdditionalCategories: []string{"Arcade"}, DonatedStars: 10},
		{ID: "a1", Kind: catalog.KindApp, Category: "Tools", Geo: "DE", CatalogRating: 5},
		{ID: "a2", Kind: catalog.KindApp, Category: "Tools", IsPromotedInCatalog: true},
		{ID: "g3", Kind: catalog.KindGame, Category: "Arcade", Geo: "US", IsPromotedInCategory: true},
	}
}

func newService(b *fakeBackend, c Cache) CatalogService {
	return NewCatalogService(Config{CacheTTL: time.Minute, SimilarLimit: 3}, b, c)
}

func ids(items []catalog.Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ID
	}
	return out
}

func TestListRanksAll(t *testing.T) {
	svc := newService(&fakeBackend{items: sampleItems()}, nil)

	resp, err := svc.List(context.Background(), models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "g2", "a1", "g1", "g3"}, ids(resp.Items))
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, "all", resp.Kind)
	assert.Equal(t, "All", resp.Category)
}

func TestListFilters(t *testing.T) {
	svc := newService(&fakeBackend{items: sampleItems()}, nil)
	ctx := context.Background()

	resp, err := svc.List(ctx, models.Filter{Kind: "games", Category: "Arcade"})
	require.NoError(t, err)
	assert.Equal(t, []string{"g3", "g2", "g1"}, ids(resp.Items))

	resp, err = svc.List(ctx, models.Filter{Kind: "apps"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1"}, ids(resp.Items))

	resp, err = svc.List(ctx, models.Filter{Geo: "US", Category: "Все"})
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g3"}, ids(resp.Items))
	assert.Equal(t, "All", resp.Category)

	_, err = svc.List(ctx, models.Filter{Kind: "movies"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestListUsesCache(t *testing.T) {
	b := &fakeBackend{items: sampleItems()}
	c := &countingCache{}
	svc := newService(b, c)

	for i := 0; i < 3; i++ {
		_, err := svc.List(context.Background(), models.Filter{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, b.lists)

	_, err := svc.Click(context.Background(), "g1")
	require.NoError(t, err)
	assert.Zero(t, c.invalidated)

	_, err = svc.List(context.Background(), models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, b.lists)

	_, err = svc.Rate(context.Background(), "g1", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, c.invalidated)

	_, err = svc.List(context.Background(), models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, b.lists)
}

func TestListBackendFailure(t *testing.T) {
	svc := newService(&fakeBackend{listErr: errors.New("down")}, nil)

	_, err := svc.List(context.Background(), models.Filter{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBackendAPI))
}

func TestListBackendThrottled(t *testing.T) {
	throttled := &backend.StatusError{Code: http.StatusTooManyRequests, RetryAfter: 5 * time.Second}
	svc := newService(&fakeBackend{listErr: throttled}, nil)

	_, err := svc.List(context.Background(), models.Filter{})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeRateLimit, appErr.Code)
	assert.Equal(t, "5s", appErr.Details["retry_after"])
}

func TestCategories(t *testing.T) {
	svc := newService(&fakeBackend{items: sampleItems()}, nil)

	resp, err := svc.Categories(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Arcade", "Puzzle", "Tools"}, resp.Categories)
	assert.Equal(t, []string{"All", "US", "DE"}, resp.Geos)

	resp, err = svc.Categories(context.Background(), "apps")
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Tools"}, resp.Categories)
}

func TestDetail(t *testing.T) {
	svc := newService(&fakeBackend{items: sampleItems()}, nil)

	resp, err := svc.Detail(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", resp.Item.ID)
	assert.Equal(t, 4, resp.Position)
	assert.Equal(t, []string{"g2", "g3"}, ids(resp.Similar))

	_, err = svc.Detail(context.Background(), "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeItemNotFound))
}

func TestDetailSimilarLimit(t *testing.T) {
	items := []catalog.Item{{ID: "x", Category: "C"}}
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		items = append(items, catalog.Item{ID: id, Category: "C"})
	}
	svc := newService(&fakeBackend{items: items}, nil)

	resp, err := svc.Detail(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, resp.Similar, 3)
	assert.NotContains(t, ids(resp.Similar), "x")
}

func TestRate(t *testing.T) {
	b := &fakeBackend{}
	svc := newService(b, nil)

	item, err := svc.Rate(context.Background(), "g1", 5)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, item.UserRating, 1e-9)

	_, err = svc.Rate(context.Background(), "g1", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRating))

	_, err = svc.Rate(context.Background(), "missing", 3)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeItemNotFound))

	assert.Equal(t, []string{"rate:g1", "rate:missing"}, b.actions)
}

func TestDonate(t *testing.T) {
	b := &fakeBackend{}
	svc := newService(b, nil)

	_, err := svc.Donate(context.Background(), "g1", "guest", 5)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGuestIdentity))

	_, err = svc.Donate(context.Background(), "g1", "7", 11)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidDonation))
	assert.Empty(t, b.actions)

	resp, err := svc.Donate(context.Background(), "g1", "7", 10)
	require.NoError(t, err)
	assert.EqualValues(t, 110, resp.UpdatedStars)
	assert.Equal(t, []string{"donate:g1:7"}, b.actions)
}

func TestComplainRejectsBadID(t *testing.T) {
	b := &fakeBackend{}
	svc := newService(b, nil)

	_, err := svc.Complain(context.Background(), "../etc")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	item, err := svc.Complain(context.Background(), "a1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, item.Complaints)
}
