package feed

import (
	"strings"

	"github.com/mmcdole/gofeed"
)

// maxContentLen bounds article body text to keep memory and downstream
// prompt sizes predictable.
const maxContentLen = 500

// Normalize converts one raw feed item into an Article. It returns nil
// for malformed items (no usable link or empty title); callers skip
// those without failing the source.
func Normalize(item *gofeed.Item, source string) *Article {
	if item == nil {
		return nil
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	a := &Article{
		Title:  title,
		Link:   link,
		Source: source,
	}

	// Prefer the explicit publication time, fall back to the update
	// time, otherwise leave the timestamp unknown.
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		a.Published = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		a.Published = &t
	}

	// Full content beats the summary/description excerpt. gofeed folds
	// Atom <summary> into Description.
	content := item.Content
	if content == "" {
		content = item.Description
	}
	a.Content = truncate(stripHTML(content), maxContentLen)

	return a
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// stripHTML removes markup without a full HTML parser; downstream
// rendering re-escapes, so tag-stripping is sufficient.
func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
