package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"nebula-miniapp/internal/common/logger"
	"nebula-miniapp/internal/domain/catalog"
	"nebula-miniapp/internal/domain/inventory"
	"nebula-miniapp/internal/domain/user"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("backend: not found")

// StatusError carries a non-2xx backend answer.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
	// RetryAfter is the Retry-After hint of a 429, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// RetryAfter reports whether err is a throttled backend answer and how long
// the backend asked callers to wait.
func RetryAfter(err error) (time.Duration, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
		return se.RetryAfter, true
	}
	return 0, false
}

// Client talks to the Nebula content and profile backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	validate   *validator.Validate
	log        zerolog.Logger
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		validate:   validator.New(),
		log:        logger.With("backend"),
	}
}

// GetUser fetches a profile. Returns ErrNotFound for unknown users.
func (c *Client) GetUser(ctx context.Context, userID string) (*user.Profile, error) {
	body, err := c.makeRequest(ctx, http.MethodGet, "/api/user/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var w wireUser
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	p := w.toDomain()
	if p.ID == "" {
		p.ID = userID
	}
	return &p, nil
}

// UpsertUser creates or updates a profile, tagging the request with the current platform.
func (c *Client) UpsertUser(ctx context.Context, p *user.Profile, platform string) (*user.Profile, error) {
	req := newUserUpdateRequest(p, platform)
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	body, err := c.makeRequest(ctx, http.MethodPost, "/api/user/update", req)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	var w wireUser
	if err := json.Unmarshal(body, &w); err != nil || firstString(w.UserID, w.ID) == "" {
		// some revisions answer with a bare acknowledgement
		out := *p
		return &out, nil
	}
	out := w.toDomain()
	return &out, nil
}

// GetInventory fetches an account. Returns ErrNotFound when none exists yet.
func (c *Client) GetInventory(ctx context.Context, userID string) (*inventory.Account, error) {
	body, err := c.makeRequest(ctx, http.MethodGet, "/api/inventory/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	var w wireInventory
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	acc := w.toDomain()
	if acc.UserID == "" {
		acc.UserID = userID
	}
	return &acc, nil
}

// UpsertInventory writes an account and returns the server's copy.
func (c *Client) UpsertInventory(ctx context.Context, acc *inventory.Account) (*inventory.Account, error) {
	req := newInventoryUpdateRequest(acc)
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("upsert inventory: %w", err)
	}
	body, err := c.makeRequest(ctx, http.MethodPost, "/api/inventory/update", req)
	if err != nil {
		return nil, fmt.Errorf("upsert inventory: %w", err)
	}
	var w wireInventory
	if err := json.Unmarshal(body, &w); err != nil || !w.Coins.Set {
		out := *acc
		return &out, nil
	}
	out := w.toDomain()
	if out.UserID == "" {
		out.UserID = acc.UserID
	}
	return &out, nil
}

// ListCatalog fetches every catalog item, normalized.
func (c *Client) ListCatalog(ctx context.Context) ([]catalog.Item, error) {
	body, err := c.makeRequest(ctx, http.MethodGet, "/api/apps", nil)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	items, err := decodeItems(body)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.log.Debug().Int("items", len(items)).Msg("Catalog fetched")
	return items, nil
}

// RateItem submits a 1 to 5 star rating.
func (c *Client) RateItem(ctx context.Context, itemID string, rating int) (*catalog.Item, error) {
	req := rateRequest{Rating: rating}
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("rate item: %w", err)
	}
	return c.itemAction(ctx, itemID, "rate", req)
}

// ComplainItem files a report against an item.
func (c *Client) ComplainItem(ctx context.Context, itemID string) (*catalog.Item, error) {
	return c.itemAction(ctx, itemID, "complain", nil)
}

// Donate sends 1 to 10 stars from userID to an item.
func (c *Client) Donate(ctx context.Context, itemID, userID string, stars int) (*DonationResult, error) {
	req := donateRequest{UserID: userID, Stars: stars}
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("donate: %w", err)
	}
	body, err := c.makeRequest(ctx, http.MethodPost, itemPath(itemID, "donate"), req)
	if err != nil {
		return nil, fmt.Errorf("donate: %w", err)
	}
	var w wireDonation
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode donation: %w", err)
	}
	return &DonationResult{
		Message:      w.Message,
		UpdatedStars: nonNegative(firstInt(w.UpdatedStars, w.Stars)),
	}, nil
}

// RegisterClick records an open and returns the new click count.
func (c *Client) RegisterClick(ctx context.Context, itemID string) (int64, error) {
	body, err := c.makeRequest(ctx, http.MethodPost, itemPath(itemID, "click"), nil)
	if err != nil {
		return 0, fmt.Errorf("register click: %w", err)
	}
	var w wireClicks
	if err := json.Unmarshal(body, &w); err != nil {
		return 0, fmt.Errorf("decode clicks: %w", err)
	}
	return nonNegative(firstInt(w.Clicks, w.Opens)), nil
}

func (c *Client) itemAction(ctx context.Context, itemID, action string, payload any) (*catalog.Item, error) {
	body, err := c.makeRequest(ctx, http.MethodPost, itemPath(itemID, action), payload)
	if err != nil {
		return nil, fmt.Errorf("%s item: %w", action, err)
	}
	item, err := decodeItem(body)
	if err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if item.ID == "" {
		item.ID = itemID
	}
	return &item, nil
}

func itemPath(itemID, action string) string {
	return "/api/apps/" + url.PathEscape(itemID) + "/" + action
}

func (c *Client) makeRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Backend request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: snippet}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, se
	}
	return body, nil
}
