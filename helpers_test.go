package pubfront

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		want     string
	}{
		{"https://blog.example.com", nil, "https://blog.example.com/"},
		{"https://blog.example.com", []string{"post", "como-utilizar-hooks"}, "https://blog.example.com/post/como-utilizar-hooks/"},
		{"https://blog.example.com/base/", []string{"post", "a"}, "https://blog.example.com/base/post/a/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildURL(tt.base, tt.segments...))
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	cfg := SiteConfig{Name: "spacetraveling", URL: "https://blog.example.com", Author: "Site Author"}
	post := PostDetail{
		UID:                  "como-utilizar-hooks",
		Title:                "Como utilizar Hooks",
		Subtitle:             "Pensando em sincronização",
		Author:               "Joseph Oliveira",
		FirstPublicationDate: time.Date(2021, 3, 15, 19, 25, 28, 0, time.UTC),
	}

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(BlogPostingJsonLD(post, cfg)), &got))
	assert.Equal(t, "BlogPosting", got["@type"])
	assert.Equal(t, "Como utilizar Hooks", got["headline"])
	assert.Equal(t, "https://blog.example.com/post/como-utilizar-hooks/", got["url"])
	assert.Equal(t, "2021-03-15T19:25:28Z", got["datePublished"])
	assert.NotContains(t, got, "dateModified")
	assert.Equal(t, map[string]any{"@type": "Person", "name": "Joseph Oliveira"}, got["author"])
}

func TestWebsiteJsonLD(t *testing.T) {
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(WebsiteJsonLD(SiteConfig{Name: "spacetraveling", URL: "https://blog.example.com"})), &got))
	assert.Equal(t, "WebSite", got["@type"])
	assert.Equal(t, "https://blog.example.com/", got["url"])
	assert.NotContains(t, got, "author")
}

func TestPostPageRendersGroups(t *testing.T) {
	app := newTestApp(t, newFakeSource(1))
	post, err := app.postDetail(t.Context(), "post-1")
	require.NoError(t, err)

	page := app.postPage(post)
	assert.Equal(t, "Post 1 | spacetraveling", page.Meta.Title)
	assert.Equal(t, "article", page.Meta.OGType)
	assert.Equal(t, "24 MAR 2021", page.Date)
	require.Len(t, page.Groups, 1)
	assert.Equal(t, "Heading 1", page.Groups[0].Heading)
	assert.Equal(t, "<p>one two three</p>", page.Groups[0].HTML)
}
