// internal/adapters/channex/client.go
package channex

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"channex_sync/internal/adapters/observability"
	"channex_sync/internal/domain"
)

const (
	pageLimit = 100
	maxPages  = 20
)

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

var (
	ErrUnauthorized = errors.New("channex: unauthorized")
	ErrForbidden    = errors.New("channex: forbidden")
)

// APIError is a non-retryable Channex failure with the best message we could extract.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("channex %d: %s", e.Status, e.Message)
}

// ---- Public API ----

func (c *Client) Get(ctx context.Context, t domain.EntityType, id string) (domain.ExternalEntity, error) {
	p, err := resourcePath(t)
	if err != nil {
		return domain.ExternalEntity{}, err
	}
	var out single
	if err := c.do(ctx, http.MethodGet, p, fmt.Sprintf("%s/%s/%s", c.base, p, url.PathEscape(id)), nil, &out); err != nil {
		return domain.ExternalEntity{}, err
	}
	return out.Data.entity(t), nil
}

// Search pages through the filtered listing and keeps only exact (case-insensitive) title matches.
func (c *Client) Search(ctx context.Context, t domain.EntityType, title, parentID string) ([]domain.ExternalEntity, error) {
	p, err := resourcePath(t)
	if err != nil {
		return nil, err
	}
	want := normTitle(title)
	var found []domain.ExternalEntity
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("filter[title]", title)
		if parentID != "" && t.Scoped() {
			q.Set("filter[property_id]", parentID)
		}
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[limit]", strconv.Itoa(pageLimit))

		var out list
		if err := c.do(ctx, http.MethodGet, p, fmt.Sprintf("%s/%s?%s", c.base, p, q.Encode()), nil, &out); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return found, nil
			}
			return nil, err
		}
		for _, r := range out.Data {
			e := r.entity(t)
			if normTitle(e.Title) != want {
				continue
			}
			if parentID != "" && t.Scoped() && e.PropertyID != "" && e.PropertyID != parentID {
				continue
			}
			found = append(found, e)
		}
		if len(out.Data) < pageLimit {
			break
		}
	}
	return found, nil
}

func (c *Client) Create(ctx context.Context, t domain.EntityType, payload any) (domain.ExternalEntity, error) {
	p, err := resourcePath(t)
	if err != nil {
		return domain.ExternalEntity{}, err
	}
	var out single
	body := map[string]any{string(t): payload}
	if err := c.do(ctx, http.MethodPost, p, fmt.Sprintf("%s/%s", c.base, p), body, &out); err != nil {
		return domain.ExternalEntity{}, err
	}
	return out.Data.entity(t), nil
}

func (c *Client) Update(ctx context.Context, t domain.EntityType, id string, payload any) (domain.ExternalEntity, error) {
	p, err := resourcePath(t)
	if err != nil {
		return domain.ExternalEntity{}, err
	}
	var out single
	body := map[string]any{string(t): payload}
	if err := c.do(ctx, http.MethodPut, p, fmt.Sprintf("%s/%s/%s", c.base, p, url.PathEscape(id)), body, &out); err != nil {
		return domain.ExternalEntity{}, err
	}
	if out.Data.ID == "" {
		out.Data.ID = id
	}
	return out.Data.entity(t), nil
}

func (c *Client) PushAvailability(ctx context.Context, values []domain.AvailabilityValue) error {
	if len(values) == 0 {
		return nil
	}
	body := map[string]any{"values": values}
	return c.do(ctx, http.MethodPost, "availability", c.base+"/availability", body, nil)
}

// ---- Wire shapes ----

type resource struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type single struct {
	Data resource `json:"data"`
}

type list struct {
	Data []resource `json:"data"`
}

func (r resource) entity(t domain.EntityType) domain.ExternalEntity {
	e := domain.ExternalEntity{Type: t, ID: r.ID, Attributes: r.Attributes}
	if s, ok := r.Attributes["title"].(string); ok {
		e.Title = s
	}
	if s, ok := r.Attributes["property_id"].(string); ok {
		e.PropertyID = s
	}
	if e.ID == "" {
		if s, ok := r.Attributes["id"].(string); ok {
			e.ID = s
		}
	}
	return e
}

func resourcePath(t domain.EntityType) (string, error) {
	switch t {
	case domain.EntityGroup:
		return "groups", nil
	case domain.EntityRoomType:
		return "room_types", nil
	case domain.EntityTax:
		return "taxes", nil
	case domain.EntityRatePlan:
		return "rate_plans", nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownEntity, t)
}

func normTitle(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ---- Internals ----

// do performs one call with client-side rate limiting, retries, and JSON decode into out.
// GET and PUT retry on 429 and transient 5xx; POST only on 429 since the server
// may already have created the entity.
func (c *Client) do(ctx context.Context, method, endpoint, u string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		payload = b
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return err
		}
		req.Header.Set("user-api-key", c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "channex-sync/1.0")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("channex", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if method != http.MethodPost && i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("channex", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			defer resp.Body.Close()
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = &APIError{Status: resp.StatusCode, Message: extractMessage(b)}
			if method == http.MethodPost && resp.StatusCode != http.StatusTooManyRequests {
				return lastErr
			}
			if wait == 0 {
				wait = backoff(i)
			}
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &APIError{Status: resp.StatusCode, Message: extractMessage(b)}
		}
	}

	return lastErr
}

// extractMessage prefers Channex's structured error fields and falls back to generic text.
func extractMessage(b []byte) string {
	var e struct {
		Errors struct {
			Title   string                     `json:"title"`
			Details map[string]json.RawMessage `json:"details"`
		} `json:"errors"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil {
		if e.Errors.Title != "" {
			var parts []string
			for field, raw := range e.Errors.Details {
				var msgs []string
				if json.Unmarshal(raw, &msgs) == nil && len(msgs) > 0 {
					parts = append(parts, field+": "+strings.Join(msgs, ", "))
				}
			}
			if len(parts) > 0 {
				sort.Strings(parts)
				return e.Errors.Title + " (" + strings.Join(parts, "; ") + ")"
			}
			return e.Errors.Title
		}
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return "channex request failed"
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
