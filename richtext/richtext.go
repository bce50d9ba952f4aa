// Package richtext renders CMS structured text (a list of styled text
// blocks) as sanitized HTML or plain text.
package richtext

import (
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/a-h/templ"
)

// Block types.
const (
	TypeParagraph    = "paragraph"
	TypePreformatted = "preformatted"
	TypeListItem     = "list-item"
	TypeOListItem    = "o-list-item"
	TypeImage        = "image"
	TypeEmbed        = "embed"
)

// Span types.
const (
	SpanStrong    = "strong"
	SpanEm        = "em"
	SpanHyperlink = "hyperlink"
	SpanLabel     = "label"
)

// Link types.
const (
	LinkWeb      = "Web"
	LinkDocument = "Document"
	LinkMedia    = "Media"
)

// Link is the target of a hyperlink span or a linked image.
type Link struct {
	LinkType string `json:"link_type"`
	URL      string `json:"url"`
	Target   string `json:"target"`
	ID       string `json:"id"`
	UID      string `json:"uid"`
	Type     string `json:"type"`
	Label    string `json:"label"` // set on label spans
}

// Span styles Text[Start:End] of its block. Offsets count UTF-16 code
// units, as the content API produces them.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
	Data  *Link  `json:"data,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OEmbed is the provider payload of an embed block.
type OEmbed struct {
	EmbedURL     string `json:"embed_url"`
	Type         string `json:"type"`
	ProviderName string `json:"provider_name"`
	HTML         string `json:"html"`
}

// Block is one element of a structured text document.
type Block struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	Spans      []Span      `json:"spans"`
	Label      string      `json:"label,omitempty"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	LinkTo     *Link       `json:"linkTo,omitempty"`
	OEmbed     *OEmbed     `json:"oembed,omitempty"`
}

// Document is an ordered sequence of blocks.
type Document []Block

// LinkResolver maps a document link to a site URL. It returns "" when
// the link cannot be resolved.
type LinkResolver func(Link) string

// AsText joins the text of every block with sep.
func AsText(doc Document, sep string) string {
	parts := make([]string, 0, len(doc))
	for _, b := range doc {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, sep)
}

// WordCount returns the number of whitespace-separated words in doc.
func WordCount(doc Document) int {
	n := 0
	for _, b := range doc {
		n += len(strings.Fields(b.Text))
	}
	return n
}

// Component returns a templ.Component that renders doc as sanitized HTML.
func Component(doc Document, resolve LinkResolver) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, AsHTML(doc, resolve))
		return err
	})
}

// AsHTML serializes doc to HTML and sanitizes the result.
func AsHTML(doc Document, resolve LinkResolver) string {
	return Sanitize(serialize(doc, resolve))
}

func serialize(doc Document, resolve LinkResolver) string {
	var b strings.Builder
	list := ""
	for _, blk := range doc {
		want := ""
		switch blk.Type {
		case TypeListItem:
			want = "ul"
		case TypeOListItem:
			want = "ol"
		}
		if list != want {
			if list != "" {
				b.WriteString("</" + list + ">")
			}
			if want != "" {
				b.WriteString("<" + want + ">")
			}
			list = want
		}

		switch blk.Type {
		case TypeParagraph:
			writeElement(&b, "p", blk, resolve)
		case "heading1", "heading2", "heading3", "heading4", "heading5", "heading6":
			writeElement(&b, "h"+blk.Type[len("heading"):], blk, resolve)
		case TypePreformatted:
			writeElement(&b, "pre", blk, resolve)
		case TypeListItem, TypeOListItem:
			writeElement(&b, "li", blk, resolve)
		case TypeImage:
			writeImage(&b, blk, resolve)
		case TypeEmbed:
			writeEmbed(&b, blk)
		}
	}
	if list != "" {
		b.WriteString("</" + list + ">")
	}
	return b.String()
}

func writeElement(b *strings.Builder, tag string, blk Block, resolve LinkResolver) {
	b.WriteString("<" + tag)
	if blk.Label != "" {
		b.WriteString(` class="` + html.EscapeString(blk.Label) + `"`)
	}
	b.WriteString(">")
	b.WriteString(serializeSpans(blk.Text, blk.Spans, resolve))
	b.WriteString("</" + tag + ">")
}

func writeImage(b *strings.Builder, blk Block, resolve LinkResolver) {
	src := safeURL(blk.URL)
	if src == "" {
		return
	}
	img := `<img src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(blk.Alt) + `"`
	if blk.Dimensions != nil && blk.Dimensions.Width > 0 && blk.Dimensions.Height > 0 {
		img += ` width="` + strconv.Itoa(blk.Dimensions.Width) + `" height="` + strconv.Itoa(blk.Dimensions.Height) + `"`
	}
	img += ` loading="lazy"/>`

	b.WriteString(`<p class="block-img">`)
	if blk.LinkTo != nil {
		if href := resolveLink(*blk.LinkTo, resolve); href != "" {
			b.WriteString(`<a href="` + html.EscapeString(href) + `">` + img + `</a></p>`)
			return
		}
	}
	b.WriteString(img + "</p>")
}

func writeEmbed(b *strings.Builder, blk Block) {
	if blk.OEmbed == nil {
		return
	}
	b.WriteString(`<div data-oembed="` + html.EscapeString(blk.OEmbed.EmbedURL) +
		`" data-oembed-type="` + html.EscapeString(blk.OEmbed.Type) +
		`" data-oembed-provider="` + html.EscapeString(blk.OEmbed.ProviderName) + `">`)
	b.WriteString(blk.OEmbed.HTML)
	b.WriteString("</div>")
}

type spanTags struct {
	open, close string
}

// serializeSpans writes text with its spans as properly nested inline
// elements. Crossing spans are closed and reopened at the boundary.
func serializeSpans(text string, spans []Span, resolve LinkResolver) string {
	units := utf16.Encode([]rune(text))
	n := len(units)

	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		s.Start = max(s.Start, 0)
		s.End = min(s.End, n)
		if s.Start < s.End {
			valid = append(valid, s)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End > valid[j].End
	})
	tags := make([]spanTags, len(valid))
	points := []int{0, n}
	for i, s := range valid {
		tags[i] = tagsFor(s, resolve)
		points = append(points, s.Start, s.End)
	}
	sort.Ints(points)

	var b strings.Builder
	var stack []int
	for i := 0; i+1 < len(points); i++ {
		from, to := points[i], points[i+1]
		if from == to {
			continue
		}
		var active []int
		for k, s := range valid {
			if s.Start <= from && s.End >= to {
				active = append(active, k)
			}
		}
		p := 0
		for p < len(stack) && p < len(active) && stack[p] == active[p] {
			p++
		}
		for j := len(stack) - 1; j >= p; j-- {
			b.WriteString(tags[stack[j]].close)
		}
		stack = stack[:p]
		for _, k := range active[p:] {
			b.WriteString(tags[k].open)
			stack = append(stack, k)
		}
		b.WriteString(escapeText(string(utf16.Decode(units[from:to]))))
	}
	for j := len(stack) - 1; j >= 0; j-- {
		b.WriteString(tags[stack[j]].close)
	}
	return b.String()
}

func tagsFor(s Span, resolve LinkResolver) spanTags {
	switch s.Type {
	case SpanStrong:
		return spanTags{"<strong>", "</strong>"}
	case SpanEm:
		return spanTags{"<em>", "</em>"}
	case SpanLabel:
		if s.Data != nil && s.Data.Label != "" {
			return spanTags{`<span class="` + html.EscapeString(s.Data.Label) + `">`, "</span>"}
		}
		return spanTags{"<span>", "</span>"}
	case SpanHyperlink:
		if s.Data == nil {
			return spanTags{}
		}
		href := resolveLink(*s.Data, resolve)
		if href == "" {
			return spanTags{}
		}
		open := `<a href="` + html.EscapeString(href) + `"`
		if s.Data.Target == "_blank" {
			open += ` target="_blank"`
		}
		return spanTags{open + ">", "</a>"}
	}
	return spanTags{}
}

func resolveLink(l Link, resolve LinkResolver) string {
	if l.LinkType == LinkDocument {
		if resolve == nil {
			return ""
		}
		return safeURL(resolve(l))
	}
	return safeURL(l.URL)
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br />")
}

// safeURL returns raw if it is a relative path, a fragment, or uses an
// allowed scheme, and "" otherwise.
func safeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return val
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return val
	default:
		return ""
	}
}
