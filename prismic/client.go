// Package prismic is a small client for a Prismic-compatible headless CMS
// Content API: master ref lookup, predicate search, cursor pagination and
// lookup by UID.
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("prismic: document not found")
	// ErrForeignCursor is returned when a pagination cursor does not point
	// at the configured API host.
	ErrForeignCursor = errors.New("prismic: cursor does not belong to this API")
)

// APIError is a non-2xx response from the Content API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prismic: api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("prismic: api returned %d: %s", e.StatusCode, e.Message)
}

// QueryOptions tune a search. Zero values are left to the API defaults.
type QueryOptions struct {
	PageSize  int
	Page      int
	Fetch     []string // e.g. "posts.title"
	Orderings []string // e.g. "document.first_publication_date desc"
}

// Client talks to one Content API repository. It is safe for concurrent use.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	metrics  *Metrics

	fixedRef string
	refTTL   time.Duration

	mu         sync.Mutex
	masterRef  string
	refFetched time.Time

	lookups singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken sets the token sent as access_token on every request.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outbound requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithMetrics records request metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRef pins every query to ref instead of the master ref.
func WithRef(ref string) Option {
	return func(c *Client) { c.fixedRef = ref }
}

// WithRefTTL sets how long the master ref is reused before it is fetched
// again (default 1 minute).
func WithRefTTL(d time.Duration) Option {
	return func(c *Client) { c.refTTL = d }
}

// New creates a Client for endpoint, e.g. https://repo.cdn.prismic.io/api/v2.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("prismic: parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("prismic: endpoint %q must be an absolute http(s) URL", endpoint)
	}
	c := &Client{
		endpoint: u,
		http:     &http.Client{Timeout: 10 * time.Second},
		refTTL:   time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ref returns the ref queries run against: the pinned ref if one was
// configured, otherwise the repository's master ref.
func (c *Client) Ref(ctx context.Context) (string, error) {
	if c.fixedRef != "" {
		return c.fixedRef, nil
	}
	c.mu.Lock()
	if c.masterRef != "" && time.Since(c.refFetched) < c.refTTL {
		ref := c.masterRef
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	u := *c.endpoint
	u.RawQuery = c.tokenQuery().Encode()
	var root apiRoot
	if err := c.get(ctx, "ref", u.String(), &root); err != nil {
		return "", err
	}
	for _, r := range root.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.masterRef = r.Ref
			c.refFetched = time.Now()
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", errors.New("prismic: api root has no master ref")
}

// ResetRef drops the cached master ref so the next query fetches it again.
func (c *Client) ResetRef() {
	c.mu.Lock()
	c.masterRef = ""
	c.mu.Unlock()
}

// Query searches documents matching all predicates.
func (c *Client) Query(ctx context.Context, preds []Predicate, opts QueryOptions) (Response, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := c.get(ctx, "query", c.searchURL(ref, preds, opts), &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// FetchPage follows a next_page cursor returned by a previous search.
func (c *Client) FetchPage(ctx context.Context, cursor string) (Response, error) {
	u, err := url.Parse(cursor)
	if err != nil {
		return Response{}, fmt.Errorf("prismic: parse cursor: %w", err)
	}
	if !strings.EqualFold(u.Scheme, c.endpoint.Scheme) || !strings.EqualFold(u.Host, c.endpoint.Host) {
		return Response{}, ErrForeignCursor
	}
	if c.token != "" {
		q := u.Query()
		if q.Get("access_token") == "" {
			q.Set("access_token", c.token)
			u.RawQuery = q.Encode()
		}
	}
	var resp Response
	if err := c.get(ctx, "page", u.String(), &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// GetByUID returns the document of docType with the given uid.
// Concurrent lookups of the same document share one request. The shared
// request outlives any single caller; each caller stops waiting when its
// own ctx is done.
func (c *Client) GetByUID(ctx context.Context, docType, uid string) (Document, error) {
	ch := c.lookups.DoChan(docType+"/"+uid, func() (any, error) {
		lctx, cancel := c.detach(ctx)
		defer cancel()
		start := time.Now()
		resp, err := c.Query(lctx, []Predicate{At("my."+docType+".uid", uid)}, QueryOptions{PageSize: 1})
		if err == nil && len(resp.Results) == 0 {
			err = ErrNotFound
		}
		c.metrics.observe("get_by_uid", start, err)
		if err != nil {
			return Document{}, err
		}
		return resp.Results[0], nil
	})
	select {
	case <-ctx.Done():
		return Document{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Document{}, r.Err
		}
		return r.Val.(Document), nil
	}
}

// detach returns a context that keeps ctx's values but not its
// cancellation, bounded by twice the HTTP timeout (ref lookup plus search).
func (c *Client) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.http.Timeout > 0 {
		return context.WithTimeout(ctx, 2*c.http.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) searchURL(ref string, preds []Predicate, opts QueryOptions) string {
	u := *c.endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/documents/search"
	q := c.tokenQuery()
	q.Set("ref", ref)
	if len(preds) > 0 {
		q.Set("q", encodePredicates(preds))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if len(opts.Fetch) > 0 {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if len(opts.Orderings) > 0 {
		q.Set("orderings", "["+strings.Join(opts.Orderings, ",")+"]")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) tokenQuery() url.Values {
	q := url.Values{}
	if c.token != "" {
		q.Set("access_token", c.token)
	}
	return q
}

func (c *Client) get(ctx context.Context, op, rawURL string, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.observe(op, start, err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("prismic: %s: %w", op, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("prismic: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("prismic: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("prismic: %s: decode response: %w", op, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
