package richtext

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[\w\- ]+$`)).OnElements("p", "pre", "li", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("loading").Matching(regexp.MustCompile(`^(lazy|eager)$`)).OnElements("img")
	p.AllowAttrs("data-oembed", "data-oembed-type", "data-oembed-provider").OnElements("div")
	p.AllowElements("iframe")
	p.AllowAttrs("src", "width", "height", "title", "frameborder", "allow", "allowfullscreen").OnElements("iframe")
	return p
}

// Sanitize strips scripts, event handlers and disallowed URLs from s while
// keeping the markup AsHTML produces.
func Sanitize(s string) string {
	return policy.Sanitize(s)
}
