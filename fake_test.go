package pubfront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubfront/prismic"
)

const fakeAPI = "https://blog.cdn.prismic.io/api/v2"

// fakeSource serves a fixed list of posts, newest first, paginated the
// way the Content API does it.
type fakeSource struct {
	mu       sync.Mutex
	docs     []prismic.Document
	pageErr  error
	queryErr error
	getErr   error
	queries  int
	fetches  int
	gets     int
	resets   int
}

func newFakeSource(n int) *fakeSource {
	f := &fakeSource{}
	base := time.Date(2021, 3, 25, 19, 25, 28, 0, time.UTC)
	for i := 1; i <= n; i++ {
		data := fmt.Sprintf(`{
			"title": "Post %[1]d",
			"subtitle": "Subtitle %[1]d",
			"author": "Author %[1]d",
			"banner": {"url": "https://images.prismic.io/blog/banner-%[1]d.png"},
			"content": [
				{"heading": "Heading %[1]d", "body": [{"type": "paragraph", "text": "one two three", "spans": []}]}
			]
		}`, i)
		f.docs = append(f.docs, prismic.Document{
			ID:                   "id-" + strconv.Itoa(i),
			UID:                  "post-" + strconv.Itoa(i),
			Type:                 "posts",
			FirstPublicationDate: prismic.Timestamp{Time: base.AddDate(0, 0, -i)},
			LastPublicationDate:  prismic.Timestamp{Time: base},
			Data:                 json.RawMessage(data),
		})
	}
	return f
}

func (f *fakeSource) page(page, size int) prismic.Response {
	start := (page - 1) * size
	end := min(start+size, len(f.docs))
	resp := prismic.Response{
		Page:             page,
		ResultsPerPage:   size,
		TotalResultsSize: len(f.docs),
		TotalPages:       (len(f.docs) + size - 1) / size,
	}
	if start < len(f.docs) {
		resp.Results = append(resp.Results, f.docs[start:end]...)
		resp.ResultsSize = len(resp.Results)
	}
	if end < len(f.docs) {
		resp.NextPage = fakeAPI + "/documents/search?" + url.Values{
			"page":     {strconv.Itoa(page + 1)},
			"pageSize": {strconv.Itoa(size)},
		}.Encode()
	}
	return resp
}

func (f *fakeSource) Query(_ context.Context, _ []prismic.Predicate, opts prismic.QueryOptions) (prismic.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return prismic.Response{}, f.queryErr
	}
	size := opts.PageSize
	if size == 0 {
		size = 20
	}
	return f.page(max(opts.Page, 1), size), nil
}

func (f *fakeSource) FetchPage(_ context.Context, cursor string) (prismic.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if !strings.HasPrefix(cursor, fakeAPI+"/") {
		return prismic.Response{}, prismic.ErrForeignCursor
	}
	if f.pageErr != nil {
		return prismic.Response{}, f.pageErr
	}
	u, err := url.Parse(cursor)
	if err != nil {
		return prismic.Response{}, err
	}
	page, _ := strconv.Atoi(u.Query().Get("page"))
	size, _ := strconv.Atoi(u.Query().Get("pageSize"))
	return f.page(page, size), nil
}

func (f *fakeSource) GetByUID(_ context.Context, _ string, uid string) (prismic.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return prismic.Document{}, f.getErr
	}
	for _, d := range f.docs {
		if d.UID == uid {
			return d, nil
		}
	}
	return prismic.Document{}, prismic.ErrNotFound
}

func (f *fakeSource) setPageErr(err error) {
	f.mu.Lock()
	f.pageErr = err
	f.mu.Unlock()
}

func (f *fakeSource) ResetRef() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeSource) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func textComponent(format string, args ...any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	})
}

func cardUIDs(cards []PostCard) string {
	uids := make([]string, len(cards))
	for i, c := range cards {
		uids[i] = c.UID
	}
	return strings.Join(uids, ",")
}

// testViews renders every page as one line of text that tests can match.
func testViews() ViewFuncs {
	return ViewFuncs{
		Home: func(_ SiteConfig, p ListingPage) templ.Component {
			return textComponent("home [%s] more=%q static=%t", cardUIDs(p.Posts), p.MoreURL, p.Static)
		},
		MorePosts: func(_ SiteConfig, p ListingPage) templ.Component {
			return textComponent("more [%s] more=%q", cardUIDs(p.Posts), p.MoreURL)
		},
		MoreError: func(_ SiteConfig, retryURL string) templ.Component {
			return textComponent("more-error retry=%q", retryURL)
		},
		Post: func(_ SiteConfig, p PostPage) templ.Component {
			return textComponent("post %s date=%q minutes=%d groups=%d", p.Post.UID, p.Date, p.ReadingTime, len(p.Groups))
		},
		PostPartial: func(_ SiteConfig, p PostPage) templ.Component {
			return textComponent("partial %s", p.Post.UID)
		},
		PostLoading: func(_ SiteConfig, slug, resolveURL string) templ.Component {
			return textComponent("loading %s resolve=%q", slug, resolveURL)
		},
		NotFound: func(SiteConfig) templ.Component {
			return textComponent("not found")
		},
		ServerError: func(SiteConfig) templ.Component {
			return textComponent("server error")
		},
	}
}

func newTestApp(t *testing.T, src *fakeSource, configure ...func(*SiteConfig)) *App {
	t.Helper()
	cfg := SiteConfig{
		URL:                 "https://blog.example.com",
		APIEndpoint:         fakeAPI,
		ListingPageSize:     2,
		StaticPathsPageSize: 2,
		DisplayTimezone:     "UTC",
		StaticDir:           t.TempDir(),
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	app := New(cfg, testViews(), WithContentSource(src), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, app.Setup())
	t.Cleanup(func() {
		app.moreLimiter.Stop()
		app.listings.Wait()
		app.posts.Wait()
		app.archive.Wait()
	})
	return app
}
