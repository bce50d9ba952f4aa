package pubfront

import (
	"time"

	"github.com/eringen/pubfront/richtext"
)

// PostSummary is a post as shown on the listing page.
type PostSummary struct {
	UID                  string
	FirstPublicationDate time.Time
	Title                string
	Subtitle             string
	Author               string
}

// ContentGroup is one headed section of a post body.
type ContentGroup struct {
	Heading string
	Body    richtext.Document
}

// PostDetail is a full post as shown on the post page.
type PostDetail struct {
	UID                  string
	FirstPublicationDate time.Time
	LastPublicationDate  time.Time
	Title                string
	Subtitle             string
	BannerURL            string
	Author               string
	Content              []ContentGroup
}

// PostCard is a PostSummary prepared for display.
type PostCard struct {
	PostSummary
	Date string
	URL  string
}

// ListingPage is the data behind the listing page and its "load more"
// fragments. MoreURL is empty when there are no further pages. Static
// pages link to the next page instead of loading it in place.
type ListingPage struct {
	Meta    PageMeta
	Posts   []PostCard
	MoreURL string
	Static  bool
	JsonLD  string
}

// RenderedGroup is a ContentGroup whose body has been rendered to
// sanitized HTML.
type RenderedGroup struct {
	Heading string
	HTML    string
}

// PostPage is the data behind the post page.
type PostPage struct {
	Meta        PageMeta
	Post        PostDetail
	Date        string
	ReadingTime int
	Groups      []RenderedGroup
	JsonLD      string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}
