package pubfront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/eringen/pubfront/prismic"
	"github.com/eringen/pubfront/richtext"
)

// ContentSource is the subset of the Content API the site reads from.
// *prismic.Client implements it.
type ContentSource interface {
	Query(ctx context.Context, preds []prismic.Predicate, opts prismic.QueryOptions) (prismic.Response, error)
	FetchPage(ctx context.Context, cursor string) (prismic.Response, error)
	GetByUID(ctx context.Context, docType, uid string) (prismic.Document, error)
}

// textField decodes a field that is either plain key text or a
// structured text array, keeping only its text.
type textField string

func (t *textField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '[' {
		var doc richtext.Document
		if err := json.Unmarshal(b, &doc); err != nil {
			return err
		}
		*t = textField(richtext.AsText(doc, " "))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = textField(s)
	return nil
}

type postData struct {
	Title    textField `json:"title"`
	Subtitle textField `json:"subtitle"`
	Author   textField `json:"author"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []struct {
		Heading textField         `json:"heading"`
		Body    richtext.Document `json:"body"`
	} `json:"content"`
}

func summaryFromDocument(doc prismic.Document) (PostSummary, error) {
	var data postData
	if err := doc.DecodeData(&data); err != nil {
		return PostSummary{}, err
	}
	return PostSummary{
		UID:                  doc.UID,
		FirstPublicationDate: doc.FirstPublicationDate.Time,
		Title:                string(data.Title),
		Subtitle:             string(data.Subtitle),
		Author:               string(data.Author),
	}, nil
}

func summariesFromResponse(resp prismic.Response) ([]PostSummary, error) {
	posts := make([]PostSummary, 0, len(resp.Results))
	for _, doc := range resp.Results {
		p, err := summaryFromDocument(doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func detailFromDocument(doc prismic.Document) (PostDetail, error) {
	var data postData
	if err := doc.DecodeData(&data); err != nil {
		return PostDetail{}, err
	}
	post := PostDetail{
		UID:                  doc.UID,
		FirstPublicationDate: doc.FirstPublicationDate.Time,
		LastPublicationDate:  doc.LastPublicationDate.Time,
		Title:                string(data.Title),
		Subtitle:             string(data.Subtitle),
		BannerURL:            data.Banner.URL,
		Author:               string(data.Author),
		Content:              make([]ContentGroup, 0, len(data.Content)),
	}
	for _, c := range data.Content {
		post.Content = append(post.Content, ContentGroup{
			Heading: string(c.Heading),
			Body:    c.Body,
		})
	}
	return post, nil
}

// listingQuery is the search behind the first listing page.
func (a *App) listingQuery() ([]prismic.Predicate, prismic.QueryOptions) {
	t := a.Config.PostType
	return []prismic.Predicate{prismic.DocumentType(t)}, prismic.QueryOptions{
		PageSize:  a.Config.ListingPageSize,
		Fetch:     []string{t + ".title", t + ".subtitle", t + ".author"},
		Orderings: []string{"document.first_publication_date desc"},
	}
}

// firstPage loads the first listing page through the revalidating cache.
func (a *App) firstPage(ctx context.Context) (listingSnapshot, error) {
	return a.listings.Get(ctx, "first", func(ctx context.Context) (listingSnapshot, error) {
		preds, opts := a.listingQuery()
		resp, err := a.Content.Query(ctx, preds, opts)
		if err != nil {
			return listingSnapshot{}, fmt.Errorf("query listing: %w", err)
		}
		posts, err := summariesFromResponse(resp)
		if err != nil {
			return listingSnapshot{}, err
		}
		return listingSnapshot{Posts: posts, NextPage: resp.NextPage}, nil
	})
}

// postDetail resolves slug through the revalidating cache.
func (a *App) postDetail(ctx context.Context, slug string) (PostDetail, error) {
	return a.posts.Get(ctx, slug, func(ctx context.Context) (PostDetail, error) {
		doc, err := a.Content.GetByUID(ctx, a.Config.PostType, slug)
		if err != nil {
			return PostDetail{}, fmt.Errorf("get post %q: %w", slug, err)
		}
		return detailFromDocument(doc)
	})
}

// allPosts walks every listing page from the first one and returns the
// posts in listing order, through the revalidating cache.
func (a *App) allPosts(ctx context.Context) ([]PostSummary, error) {
	return a.archive.Get(ctx, "all", func(ctx context.Context) ([]PostSummary, error) {
		first, err := a.firstPage(ctx)
		if err != nil {
			return nil, err
		}
		listing := NewListing(first.Posts, first.NextPage)
		for listing.HasMore() {
			if _, err := listing.LoadMore(ctx, a.Content, listing.NextPage()); err != nil {
				return nil, fmt.Errorf("walk listing: %w", err)
			}
		}
		return listing.Posts(), nil
	})
}

// StaticPosts returns the posts whose pages are rendered ahead of time.
func (a *App) StaticPosts(ctx context.Context) ([]PostSummary, error) {
	resp, err := a.Content.Query(ctx,
		[]prismic.Predicate{prismic.DocumentType(a.Config.PostType)},
		prismic.QueryOptions{PageSize: a.Config.StaticPathsPageSize})
	if err != nil {
		return nil, fmt.Errorf("query static paths: %w", err)
	}
	return summariesFromResponse(resp)
}

// StaticPaths returns the slugs whose pages are rendered ahead of time.
// Other slugs are resolved on demand.
func (a *App) StaticPaths(ctx context.Context) ([]string, error) {
	posts, err := a.StaticPosts(ctx)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.UID != "" {
			slugs = append(slugs, p.UID)
		}
	}
	return slugs, nil
}
