package pubfront

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ExportResult summarizes a static export.
type ExportResult struct {
	ListingPages int
	Posts        int
}

// Export renders the site as static files under outDir: every listing
// page (following the pagination cursors), every post those pages link
// to, the feed, the sitemap, robots.txt and the embedded assets.
func (a *App) Export(ctx context.Context, outDir string) (ExportResult, error) {
	var res ExportResult
	if err := a.Setup(); err != nil {
		return res, err
	}

	n, posts, err := a.exportListing(ctx, outDir)
	if err != nil {
		return res, err
	}
	res.ListingPages = n

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range posts {
		g.Go(func() error {
			post, err := a.postDetail(gctx, p.UID)
			if err != nil {
				return err
			}
			path := filepath.Join(outDir, "post", p.UID, "index.html")
			return renderFile(gctx, path, a.Views.Post(a.Config, a.postPage(post)))
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("export posts: %w", err)
	}
	res.Posts = len(posts)

	first, err := a.firstPage(ctx)
	if err != nil {
		return res, err
	}
	if err := writeFile(filepath.Join(outDir, "feed.xml"), func(w io.Writer) error {
		return a.writeRSS(w, first.Posts)
	}); err != nil {
		return res, err
	}
	if err := writeFile(filepath.Join(outDir, "sitemap.xml"), func(w io.Writer) error {
		return a.writeSitemap(w, posts)
	}); err != nil {
		return res, err
	}
	if err := writeFile(filepath.Join(outDir, "robots.txt"), func(w io.Writer) error {
		_, err := io.WriteString(w, a.robotsTxt())
		return err
	}); err != nil {
		return res, err
	}
	if err := renderFile(ctx, filepath.Join(outDir, "404.html"), a.Views.NotFound(a.Config)); err != nil {
		return res, err
	}
	return res, a.exportAssets(outDir)
}

// exportListing writes index.html and page/N/index.html for every page
// reachable from the first one and returns the posts it listed.
func (a *App) exportListing(ctx context.Context, outDir string) (int, []PostSummary, error) {
	first, err := a.firstPage(ctx)
	if err != nil {
		return 0, nil, err
	}
	listing := NewListing(first.Posts, first.NextPage)
	posts := first.Posts
	for n := 1; ; n++ {
		page := a.listingPage(posts, "")
		page.Static = true
		if listing.HasMore() {
			page.MoreURL = "/page/" + strconv.Itoa(n+1) + "/"
		}
		path := filepath.Join(outDir, "index.html")
		if n > 1 {
			path = filepath.Join(outDir, "page", strconv.Itoa(n), "index.html")
		}
		if err := renderFile(ctx, path, a.Views.Home(a.Config, page)); err != nil {
			return n - 1, nil, err
		}
		if !listing.HasMore() {
			return n, listing.Posts(), nil
		}
		posts, err = listing.LoadMore(ctx, a.Content, listing.NextPage())
		if err != nil {
			return n, nil, err
		}
	}
}

func (a *App) exportAssets(outDir string) error {
	return fs.WalkDir(EmbeddedAssets, "embedded", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := EmbeddedAssets.ReadFile(path)
		if err != nil {
			return err
		}
		name := filepath.Base(path)
		dst := filepath.Join(outDir, "public", name)
		if name == "favicon.svg" {
			dst = filepath.Join(outDir, name)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dst, b, 0o644)
	})
}
