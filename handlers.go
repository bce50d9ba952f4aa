package pubfront

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubfront/prismic"
)

func isHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}

func (a *App) handleHome(c echo.Context) error {
	first, err := a.firstPage(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.Home(a.Config, a.listingPage(first.Posts, first.NextPage)))
}

// handleMorePosts serves the page behind a pagination cursor. htmx requests
// get a fragment that replaces the load-more control; plain requests get a
// full listing page of just that page.
func (a *App) handleMorePosts(c echo.Context) error {
	if !a.moreLimiter.Allow(c.RealIP()) {
		a.metrics.loadMore.WithLabelValues("rate_limited").Inc()
		return c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
	}
	cursor := c.QueryParam("cursor")
	if cursor == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing cursor")
	}

	listing := NewListing(nil, cursor)
	posts, err := listing.LoadMore(c.Request().Context(), a.Content, cursor)
	if err != nil {
		if errors.Is(err, prismic.ErrForeignCursor) {
			a.metrics.loadMore.WithLabelValues("rejected").Inc()
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
		}
		a.metrics.loadMore.WithLabelValues("error").Inc()
		c.Logger().Warnf("load more: %v", err)
		if isHTMX(c) {
			// htmx does not swap error responses, so the retry fragment goes out as 200.
			return Render(c, a.Views.MoreError(a.Config, MoreURL(cursor)))
		}
		return echo.NewHTTPError(http.StatusBadGateway).SetInternal(err)
	}
	a.metrics.loadMore.WithLabelValues("ok").Inc()

	page := a.listingPage(posts, listing.NextPage())
	if isHTMX(c) {
		return Render(c, a.Views.MorePosts(a.Config, page))
	}
	return Render(c, a.Views.Home(a.Config, page))
}

// handlePost serves a post page. Slugs that are neither rendered ahead of
// time nor cached get the fallback treatment: a loading placeholder that
// resolves the post with a second request, or inline resolution in
// blocking mode.
func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	partial := isHTMX(c) && c.QueryParam("partial") == "post"
	resolve := partial || c.QueryParam("resolve") == "1"

	if !resolve && a.Config.FallbackMode == FallbackPlaceholder && !a.posts.Has(slug) {
		resolveURL := PostURL(slug) + "?resolve=1"
		c.Response().Header().Set("Cache-Control", "no-store")
		return Render(c, a.Views.PostLoading(a.Config, slug, resolveURL))
	}

	post, err := a.postDetail(c.Request().Context(), slug)
	if err != nil && partial {
		// htmx only swaps 2xx responses. Send the browser to the resolving
		// page instead, which renders the not-found or error page itself.
		if !errors.Is(err, prismic.ErrNotFound) {
			c.Logger().Warnf("resolve post %s: %v", slug, err)
		}
		c.Response().Header().Set("HX-Redirect", PostURL(slug)+"?resolve=1")
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.NoContent(http.StatusOK)
	}
	if err != nil {
		if errors.Is(err, prismic.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
		}
		return err
	}
	page := a.postPage(post)
	if partial {
		return Render(c, a.Views.PostPartial(a.Config, page))
	}
	return Render(c, a.Views.Post(a.Config, page))
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.allPosts(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return a.writeSitemap(c.Response(), posts)
}

func (a *App) handleFeed(c echo.Context) error {
	first, err := a.firstPage(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return a.writeRSS(c.Response(), first.Posts)
}

func (a *App) handleRobots(c echo.Context) error {
	return c.String(http.StatusOK, a.robotsTxt())
}

func (a *App) robotsTxt() string {
	return fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /posts/more/\n\nSitemap: %s/sitemap.xml\n", a.Config.URL)
}

func handlePostIndexRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

type revalidateRequest struct {
	Secret string `json:"secret"`
}

// handleRevalidate marks every cached listing and post stale, so the next
// request for each reloads it from the Content API while the old page is
// still served. It is the target of the repository's publish webhook.
func (a *App) handleRevalidate(c echo.Context) error {
	var req revalidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(a.Config.RevalidateSecret)) != 1 {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid secret")
	}
	if r, ok := a.Content.(refResetter); ok {
		r.ResetRef()
	}
	a.listings.ExpireAll()
	a.posts.ExpireAll()
	a.archive.ExpireAll()
	a.metrics.revalidations.Inc()
	c.Logger().Infof("revalidate: caches expired")
	return c.NoContent(http.StatusNoContent)
}

// refResetter is implemented by sources that cache the repository ref.
type refResetter interface {
	ResetRef()
}

func handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.Config))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
