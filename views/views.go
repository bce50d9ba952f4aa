// Package views provides the default pages for a pubfront site. They are
// html/template files embedded in the binary and adapted to templ
// components, so a site can replace any of them with its own templ views.
package views

import (
	"embed"
	"html/template"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/pubfront"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	// trusted marks HTML that pubfront has already sanitized.
	"trusted": func(s string) template.HTML { return template.HTML(s) },
	"iso": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	},
}

var (
	homeTmpl      = page("home.html", "posts.html")
	postTmpl      = page("post.html")
	loadingTmpl   = page("loading.html")
	notFoundTmpl  = page("notfound.html")
	errorTmpl     = page("error.html")
	postsTmpl     = homeTmpl.Lookup("posts")
	postFragTmpl  = postTmpl.Lookup("post")
	moreErrorTmpl = template.Must(template.New("more_error.html").Funcs(funcs).
			ParseFS(templateFS, "templates/more_error.html")).Lookup("more-error")
)

// page parses the layout together with the files that fill its content
// block and returns the layout template.
func page(files ...string) *template.Template {
	patterns := []string{"templates/layout.html"}
	for _, f := range files {
		patterns = append(patterns, "templates/"+f)
	}
	t := template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS, patterns...))
	return t.Lookup("layout")
}

// layoutData is what the layout template sees.
type layoutData struct {
	Site       pubfront.SiteConfig
	Meta       pubfront.PageMeta
	JsonLD     template.JS
	Listing    pubfront.ListingPage
	Post       pubfront.PostPage
	ResolveURL string
}

// Default returns the built-in views.
func Default() pubfront.ViewFuncs {
	return pubfront.ViewFuncs{
		Home:        Home,
		MorePosts:   MorePosts,
		MoreError:   MoreError,
		Post:        Post,
		PostPartial: PostPartial,
		PostLoading: PostLoading,
		NotFound:    NotFound,
		ServerError: ServerError,
	}
}

// Home renders the listing page.
func Home(site pubfront.SiteConfig, p pubfront.ListingPage) templ.Component {
	return templ.FromGoHTML(homeTmpl, layoutData{
		Site:    site,
		Meta:    p.Meta,
		JsonLD:  template.JS(p.JsonLD),
		Listing: p,
	})
}

// MorePosts renders the cards of one more page and the control that loads
// the page after it.
func MorePosts(_ pubfront.SiteConfig, p pubfront.ListingPage) templ.Component {
	return templ.FromGoHTML(postsTmpl, p)
}

// MoreError renders the inline retry control shown when loading more
// posts fails.
func MoreError(_ pubfront.SiteConfig, retryURL string) templ.Component {
	return templ.FromGoHTML(moreErrorTmpl, retryURL)
}

func Post(site pubfront.SiteConfig, p pubfront.PostPage) templ.Component {
	return templ.FromGoHTML(postTmpl, layoutData{
		Site:   site,
		Meta:   p.Meta,
		JsonLD: template.JS(p.JsonLD),
		Post:   p,
	})
}

// PostPartial renders the post body alone. It replaces the loading
// placeholder once the post has been resolved.
func PostPartial(_ pubfront.SiteConfig, p pubfront.PostPage) templ.Component {
	return templ.FromGoHTML(postFragTmpl, p)
}

// PostLoading renders the placeholder served for posts that were not
// rendered ahead of time.
func PostLoading(site pubfront.SiteConfig, _ string, resolveURL string) templ.Component {
	return templ.FromGoHTML(loadingTmpl, layoutData{
		Site:       site,
		Meta:       pubfront.PageMeta{Title: "Carregando... | " + site.Name},
		ResolveURL: resolveURL,
	})
}

func NotFound(site pubfront.SiteConfig) templ.Component {
	return templ.FromGoHTML(notFoundTmpl, layoutData{
		Site: site,
		Meta: pubfront.PageMeta{Title: "Página não encontrada | " + site.Name},
	})
}

func ServerError(site pubfront.SiteConfig) templ.Component {
	return templ.FromGoHTML(errorTmpl, layoutData{
		Site: site,
		Meta: pubfront.PageMeta{Title: "Erro | " + site.Name},
	})
}
