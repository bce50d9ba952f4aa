package pubfront

import (
	"net/url"

	"github.com/eringen/pubfront/richtext"
)

// PostURL returns the site-relative URL of a post page.
func PostURL(slug string) string {
	return "/post/" + url.PathEscape(slug) + "/"
}

// MoreURL returns the load-more URL for a pagination cursor, or "" when
// there is no next page.
func MoreURL(cursor string) string {
	if cursor == "" {
		return ""
	}
	return "/posts/more/?" + url.Values{"cursor": {cursor}}.Encode()
}

// resolveLink maps CMS document links to post pages.
func (a *App) resolveLink(l richtext.Link) string {
	if l.Type == a.Config.PostType && l.UID != "" {
		return PostURL(l.UID)
	}
	return ""
}

func (a *App) postCards(posts []PostSummary) []PostCard {
	cards := make([]PostCard, len(posts))
	for i, p := range posts {
		cards[i] = PostCard{
			PostSummary: p,
			Date:        a.formatDate(p.FirstPublicationDate),
			URL:         PostURL(p.UID),
		}
	}
	return cards
}

func (a *App) listingPage(posts []PostSummary, nextPage string) ListingPage {
	return ListingPage{
		Meta: PageMeta{
			Title:       a.Config.Name,
			Description: a.Config.Description,
			URL:         BuildURL(a.Config.URL),
			OGType:      "website",
		},
		Posts:   a.postCards(posts),
		MoreURL: MoreURL(nextPage),
		JsonLD:  WebsiteJsonLD(a.Config),
	}
}

func (a *App) postPage(post PostDetail) PostPage {
	groups := make([]RenderedGroup, len(post.Content))
	for i, g := range post.Content {
		groups[i] = RenderedGroup{
			Heading: g.Heading,
			HTML:    richtext.AsHTML(g.Body, a.resolveLink),
		}
	}
	return PostPage{
		Meta: PageMeta{
			Title:       post.Title + " | " + a.Config.Name,
			Description: post.Subtitle,
			URL:         BuildURL(a.Config.URL, "post", post.UID),
			OGType:      "article",
			Image:       post.BannerURL,
		},
		Post:        post,
		Date:        a.formatDate(post.FirstPublicationDate),
		ReadingTime: ReadingTime(post.Content),
		Groups:      groups,
		JsonLD:      BlogPostingJsonLD(post, a.Config),
	}
}
