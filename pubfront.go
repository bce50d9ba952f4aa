// Package pubfront is a server-rendered blog front-end built with Go, Echo,
// and templ. It reads posts from a headless CMS Content API and serves a
// paginated listing page and individual post pages, revalidating rendered
// data in the background. The same pages can be exported as static files.
//
// Users may provide their own templ templates via the ViewFuncs struct;
// pubfront handles fetching, caching, pagination, and routing.
package pubfront

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/eringen/pubfront/prismic"
)

// ViewFuncs holds the templ components the framework calls when rendering
// pages. This is the inversion-of-control mechanism that lets users own
// and customize all templates.
type ViewFuncs struct {
	Home        func(site SiteConfig, page ListingPage) templ.Component
	MorePosts   func(site SiteConfig, page ListingPage) templ.Component
	MoreError   func(site SiteConfig, retryURL string) templ.Component
	Post        func(site SiteConfig, page PostPage) templ.Component
	PostPartial func(site SiteConfig, page PostPage) templ.Component
	PostLoading func(site SiteConfig, slug, resolveURL string) templ.Component
	NotFound    func(site SiteConfig) templ.Component
	ServerError func(site SiteConfig) templ.Component
}

// App is the central pubfront application. It wires together the content
// source, page caches, handlers, middleware, and templates.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Content  ContentSource
	Views    ViewFuncs
	Registry *prometheus.Registry

	listings     *PageCache[listingSnapshot]
	posts        *PageCache[PostDetail]
	archive      *PageCache[[]PostSummary]
	loc          *time.Location
	moreLimiter  *IPLimiter
	metrics      *appMetrics
	customRoutes []func(*App)
	ready        bool
}

// New creates a new pubfront App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup validates the configuration and builds the content client, caches,
// middleware, and routes. Start and Export call it; it is idempotent.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}
	loc, err := time.LoadLocation(a.Config.DisplayTimezone)
	if err != nil {
		return fmt.Errorf("pubfront: %w", err)
	}
	a.loc = loc

	if a.Registry == nil {
		a.Registry = newRegistry()
	}
	a.metrics = newAppMetrics(a.Registry)

	if a.Content == nil {
		client, err := prismic.New(a.Config.APIEndpoint,
			prismic.WithAccessToken(a.Config.AccessToken),
			prismic.WithHTTPClient(&http.Client{Timeout: a.Config.APITimeout}),
			prismic.WithRateLimit(rate.Limit(a.Config.APIRateLimit), a.Config.APIRateBurst),
			prismic.WithMetrics(prismic.NewMetrics(a.Registry)),
		)
		if err != nil {
			return fmt.Errorf("pubfront: init content client: %w", err)
		}
		a.Content = client
	}

	// A listing or post load is a ref lookup plus one search.
	loadTimeout := 2 * a.Config.APITimeout
	a.listings = NewPageCache[listingSnapshot](a.Config.RevalidateInterval, loadTimeout,
		a.metrics.cacheResults.MustCurryWith(prometheus.Labels{"cache": "listing"}))
	a.posts = NewPageCache[PostDetail](a.Config.RevalidateInterval, loadTimeout,
		a.metrics.cacheResults.MustCurryWith(prometheus.Labels{"cache": "post"}))
	// The archive walks every listing page; each fetch is bounded by the
	// HTTP client timeout instead.
	a.archive = NewPageCache[[]PostSummary](a.Config.RevalidateInterval, 0,
		a.metrics.cacheResults.MustCurryWith(prometheus.Labels{"cache": "archive"}))
	onError := func(key string, err error) {
		a.Echo.Logger.Warnf("revalidate %s: %v", key, err)
	}
	a.listings.onError = onError
	a.posts.onError = onError
	a.archive.onError = onError

	a.moreLimiter = NewIPLimiter(a.Config.LoadMoreLimit, a.Config.LoadMoreWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Start sets the app up, renders the static paths ahead of time, and
// serves HTTP until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}

	if n, err := a.Prerender(ctx); err != nil {
		a.Echo.Logger.Warnf("prerender: %v", err)
	} else {
		a.Echo.Logger.Infof("prerendered listing and %d posts", n)
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Prerender loads the first listing page and every static path into the
// page caches. It returns the number of posts loaded.
func (a *App) Prerender(ctx context.Context) (int, error) {
	if _, err := a.firstPage(ctx); err != nil {
		return 0, err
	}
	slugs, err := a.StaticPaths(ctx)
	if err != nil {
		return 0, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, slug := range slugs {
		g.Go(func() error {
			_, err := a.postDetail(gctx, slug)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(slugs), nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/style.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/favicon.svg", echo.WrapHandler(embeddedHandler))

	e.Static("/public", a.Config.StaticDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/metrics", a.handleMetrics())
	e.GET("/healthz", handleHealth)
	if a.Config.RevalidateSecret != "" {
		e.POST("/api/revalidate", a.handleRevalidate)
	}

	e.GET("/", a.handleHome)
	e.GET("/posts/more/", a.handleMorePosts)
	e.GET("/post", handlePostIndexRedirect)
	e.GET("/post/:slug/", a.handlePost)
}

// Shutdown stops the HTTP server and waits for background revalidation.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if a.moreLimiter != nil {
		a.moreLimiter.Stop()
	}
	if a.listings != nil {
		a.listings.Wait()
		a.posts.Wait()
		a.archive.Wait()
	}
	return err
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
