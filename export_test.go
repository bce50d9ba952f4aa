package pubfront

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestExportWritesSite(t *testing.T) {
	app := newTestApp(t, newFakeSource(5))
	out := t.TempDir()

	res, err := app.Export(t.Context(), out)
	require.NoError(t, err)
	assert.Equal(t, ExportResult{ListingPages: 3, Posts: 5}, res)

	assert.Equal(t, `home [post-1,post-2] more="/page/2/" static=true`, readFile(t, filepath.Join(out, "index.html")))
	assert.Equal(t, `home [post-3,post-4] more="/page/3/" static=true`, readFile(t, filepath.Join(out, "page", "2", "index.html")))
	assert.Equal(t, `home [post-5] more="" static=true`, readFile(t, filepath.Join(out, "page", "3", "index.html")))

	for _, uid := range []string{"post-1", "post-3", "post-5"} {
		assert.Contains(t, readFile(t, filepath.Join(out, "post", uid, "index.html")), "post "+uid)
	}
	assert.Contains(t, readFile(t, filepath.Join(out, "sitemap.xml")), "/post/post-5/")
	assert.Contains(t, readFile(t, filepath.Join(out, "feed.xml")), "<rss")
	assert.Contains(t, readFile(t, filepath.Join(out, "robots.txt")), "Sitemap:")
	assert.Equal(t, "not found", readFile(t, filepath.Join(out, "404.html")))
	assert.FileExists(t, filepath.Join(out, "public", "style.css"))
	assert.FileExists(t, filepath.Join(out, "favicon.svg"))
}

func TestExportSinglePage(t *testing.T) {
	app := newTestApp(t, newFakeSource(2))
	out := t.TempDir()

	res, err := app.Export(t.Context(), out)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ListingPages)
	assert.NoDirExists(t, filepath.Join(out, "page"))
}

func TestExportFailsOnUpstreamError(t *testing.T) {
	src := newFakeSource(5)
	src.setPageErr(errors.New("upstream down"))
	app := newTestApp(t, src)

	_, err := app.Export(t.Context(), t.TempDir())
	assert.Error(t, err)
}
