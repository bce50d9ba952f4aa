package pubfront

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eringen/pubfront/prismic"
)

var (
	// ErrNoMorePages is returned by LoadMore when the listing is exhausted.
	ErrNoMorePages = errors.New("pubfront: no more pages")
	// ErrStaleCursor is returned by LoadMore when the cursor is not the
	// listing's current next page, e.g. because it was already consumed.
	ErrStaleCursor = errors.New("pubfront: stale pagination cursor")
)

// PageFetcher follows a pagination cursor.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string) (prismic.Response, error)
}

type listingSnapshot struct {
	Posts    []PostSummary
	NextPage string
}

// Listing is the accumulated state of the listing page: the posts shown
// so far, in order, and the cursor of the next page. It is safe for
// concurrent use; LoadMore calls are serialized.
type Listing struct {
	mu       sync.Mutex
	posts    []PostSummary
	seen     map[string]struct{}
	nextPage string
}

// NewListing starts a listing from an initial page.
func NewListing(posts []PostSummary, nextPage string) *Listing {
	l := &Listing{
		posts:    append([]PostSummary(nil), posts...),
		seen:     make(map[string]struct{}, len(posts)),
		nextPage: nextPage,
	}
	for _, p := range posts {
		l.seen[p.UID] = struct{}{}
	}
	return l
}

// Posts returns a copy of the posts loaded so far.
func (l *Listing) Posts() []PostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]PostSummary(nil), l.posts...)
}

// NextPage returns the cursor of the next page, or "" when exhausted.
func (l *Listing) NextPage() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextPage
}

// HasMore reports whether another page can be loaded.
func (l *Listing) HasMore() bool {
	return l.NextPage() != ""
}

// LoadMore fetches the page at cursor, appends its posts and advances the
// cursor. cursor must equal NextPage. Posts already in the listing are
// skipped. On error the listing is left unchanged. It returns the posts
// that were appended.
func (l *Listing) LoadMore(ctx context.Context, f PageFetcher, cursor string) ([]PostSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.nextPage == "" {
		return nil, ErrNoMorePages
	}
	if cursor != l.nextPage {
		return nil, ErrStaleCursor
	}
	resp, err := f.FetchPage(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("load more: %w", err)
	}
	page, err := summariesFromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("load more: %w", err)
	}

	added := make([]PostSummary, 0, len(page))
	for _, p := range page {
		if _, dup := l.seen[p.UID]; dup {
			continue
		}
		l.seen[p.UID] = struct{}{}
		added = append(added, p)
	}
	l.posts = append(l.posts, added...)
	l.nextPage = resp.NextPage
	return added, nil
}
