package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	*httptest.Server
	rootHits   atomic.Int32
	searchHits atomic.Int32
	lastQuery  atomic.Value
	docs       map[string]string // uid -> raw document JSON
	blocked    atomic.Bool
	release    chan struct{}
}

func newFakeAPI(t *testing.T, docs map[string]string) *fakeAPI {
	t.Helper()
	f := &fakeAPI{docs: docs, release: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) {
		f.rootHits.Add(1)
		_, _ = w.Write([]byte(`{"refs":[{"id":"preview","ref":"P1","label":"Preview","isMasterRef":false},{"id":"master","ref":"M1","label":"Master","isMasterRef":true}]}`))
	})
	mux.HandleFunc("/api/v2/documents/search", func(w http.ResponseWriter, r *http.Request) {
		f.searchHits.Add(1)
		f.lastQuery.Store(r.URL.Query())
		if f.blocked.Load() {
			<-f.release
		}
		q := r.URL.Query()
		if q.Get("ref") != "M1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"ref expired"}`))
			return
		}
		if strings.Contains(q.Get("q"), "my.posts.uid") {
			for uid, doc := range f.docs {
				if strings.Contains(q.Get("q"), `"`+uid+`"`) {
					_, _ = w.Write([]byte(`{"page":1,"results":[` + doc + `]}`))
					return
				}
			}
			_, _ = w.Write([]byte(`{"page":1,"results":[],"next_page":null}`))
			return
		}
		page := q.Get("page")
		if page == "" || page == "1" {
			next := f.URL + "/api/v2/documents/search?ref=M1&page=2&pageSize=1"
			_, _ = w.Write([]byte(`{"page":1,"total_pages":2,"next_page":"` + next + `","results":[{"uid":"first","type":"posts","first_publication_date":"2021-03-15T19:25:28+0000","data":{"title":"First"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"page":2,"total_pages":2,"next_page":null,"results":[{"uid":"second","type":"posts","first_publication_date":null,"data":{"title":"Second"}}]}`))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestClient(t *testing.T, f *fakeAPI, opts ...Option) *Client {
	t.Helper()
	c, err := New(f.URL+"/api/v2", opts...)
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeEndpoint(t *testing.T) {
	_, err := New("/api/v2")
	assert.Error(t, err)
	_, err = New("ftp://example.com/api")
	assert.Error(t, err)
}

func TestRefUsesMasterAndCaches(t *testing.T) {
	f := newFakeAPI(t, nil)
	c := newTestClient(t, f)

	ref, err := c.Ref(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "M1", ref)

	_, err = c.Ref(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.rootHits.Load())
}

func TestResetRefRefetches(t *testing.T) {
	f := newFakeAPI(t, nil)
	c := newTestClient(t, f)

	_, err := c.Ref(context.Background())
	require.NoError(t, err)
	c.ResetRef()
	_, err = c.Ref(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.rootHits.Load())
}

func TestRefPinned(t *testing.T) {
	f := newFakeAPI(t, nil)
	c := newTestClient(t, f, WithRef("P1"))

	ref, err := c.Ref(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "P1", ref)
	assert.EqualValues(t, 0, f.rootHits.Load())
}

func TestQueryEncodesParameters(t *testing.T) {
	f := newFakeAPI(t, nil)
	c := newTestClient(t, f, WithAccessToken("secret"))

	resp, err := c.Query(context.Background(), []Predicate{DocumentType("posts")}, QueryOptions{
		PageSize:  1,
		Fetch:     []string{"posts.title", "posts.author"},
		Orderings: []string{"document.first_publication_date desc"},
	})
	require.NoError(t, err)

	q := f.lastQuery.Load().(url.Values)
	assert.Equal(t, `[[at(document.type, "posts")]]`, q.Get("q"))
	assert.Equal(t, "1", q.Get("pageSize"))
	assert.Equal(t, "posts.title,posts.author", q.Get("fetch"))
	assert.Equal(t, "[document.first_publication_date desc]", q.Get("orderings"))
	assert.Equal(t, "secret", q.Get("access_token"))

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "first", resp.Results[0].UID)
	assert.Equal(t, time.Date(2021, 3, 15, 19, 25, 28, 0, time.UTC), resp.Results[0].FirstPublicationDate.UTC())
	assert.NotEmpty(t, resp.NextPage)

	var data struct {
		Title string `json:"title"`
	}
	require.NoError(t, resp.Results[0].DecodeData(&data))
	assert.Equal(t, "First", data.Title)
}

func TestFetchPageFollowsCursor(t *testing.T) {
	f := newFakeAPI(t, nil)
	c := newTestClient(t, f)

	first, err := c.Query(context.Background(), []Predicate{DocumentType("posts")}, QueryOptions{PageSize: 1})
	require.NoError(t, err)

	second, err := c.FetchPage(context.Background(), first.NextPage)
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.Equal(t, "second", second.Results[0].UID)
	assert.Empty(t, second.NextPage)
	assert.True(t, second.Results[0].FirstPublicationDate.IsZero())
}

func TestFetchPageRejectsForeignHost(t *testing.T) {
	f := newFakeAPI(t, nil)
	c := newTestClient(t, f)

	_, err := c.FetchPage(context.Background(), "http://169.254.169.254/latest/meta-data")
	assert.ErrorIs(t, err, ErrForeignCursor)
	assert.EqualValues(t, 0, f.searchHits.Load())
}

func TestGetByUID(t *testing.T) {
	f := newFakeAPI(t, map[string]string{
		"hello": `{"uid":"hello","type":"posts","data":{"title":"Hello"}}`,
	})
	c := newTestClient(t, f)

	doc, err := c.GetByUID(context.Background(), "posts", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.UID)

	_, err = c.GetByUID(context.Background(), "posts", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByUIDSharesConcurrentLookups(t *testing.T) {
	f := newFakeAPI(t, map[string]string{
		"hello": `{"uid":"hello","type":"posts","data":{}}`,
	})
	c := newTestClient(t, f)
	_, err := c.Ref(context.Background())
	require.NoError(t, err)

	f.blocked.Store(true)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetByUID(context.Background(), "posts", "hello")
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.EqualValues(t, 1, f.searchHits.Load())
}

func TestGetByUIDSurvivesCancelledCaller(t *testing.T) {
	f := newFakeAPI(t, map[string]string{
		"hello": `{"uid":"hello","type":"posts","data":{}}`,
	})
	c := newTestClient(t, f)
	_, err := c.Ref(context.Background())
	require.NoError(t, err)

	f.blocked.Store(true)
	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetByUID(first, "posts", "hello")
		firstErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.GetByUID(context.Background(), "posts", "hello")
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(f.release)
	assert.NoError(t, <-secondErr)
	assert.EqualValues(t, 1, f.searchHits.Load())
}

func TestAPIErrorCarriesMessage(t *testing.T) {
	f := newFakeAPI(t, nil)
	c := newTestClient(t, f, WithRef("stale"))

	_, err := c.Query(context.Background(), nil, QueryOptions{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "ref expired", apiErr.Message)
}

func TestMetricsCountOutcomes(t *testing.T) {
	f := newFakeAPI(t, nil)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newTestClient(t, f, WithMetrics(m))

	_, err := c.GetByUID(context.Background(), "posts", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("get_by_uid", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("ref", "ok")))
}

func TestTimestampRoundTrip(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2021-03-25T19:25:28+0000"`), &ts))
	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2021-03-25T19:25:28+0000"`, string(b))

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
}

func TestPredicates(t *testing.T) {
	assert.Equal(t, Predicate(`[at(my.posts.uid, "a \"b\"")]`), At("my.posts.uid", `a "b"`))
	assert.Equal(t, Predicate(`[any(document.tags, ["go", "web"])]`), Any("document.tags", "go", "web"))
	assert.Equal(t, `[[at(document.type, "posts")][at(document.tags, "go")]]`,
		encodePredicates([]Predicate{DocumentType("posts"), At("document.tags", "go")}))
}
