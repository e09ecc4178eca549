package pta

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxTitleLen          = 200
	maxExcerptLen        = 500
	autoExcerptLen       = 200
	maxSEOTitleLen       = 60
	maxSEODescriptionLen = 160
	maxSlugLen           = 80
)

var (
	slugRegex       = regexp.MustCompile(`[^a-z0-9-]+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
	whitespace      = regexp.MustCompile(`\s+`)

	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	ugcPolicy   = bluemonday.UGCPolicy()
	stripPolicy = bluemonday.StrictPolicy()
)

// Slugify converts a title to a URL-friendly slug.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	result = strings.ToLower(result)
	result = whitespace.ReplaceAllString(result, "-")
	result = slugRegex.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	if len(result) > maxSlugLen {
		result = strings.TrimRight(result[:maxSlugLen], "-")
	}
	return result
}

// RenderContent turns Markdown (raw HTML allowed) into sanitized HTML.
func RenderContent(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return ugcPolicy.Sanitize(buf.String()), nil
}

// Excerpt strips markup from rendered HTML and cuts it to the excerpt length.
func Excerpt(renderedHTML string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(renderedHTML))
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if utf8.RuneCountInString(text) <= autoExcerptLen {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:autoExcerptLen])) + "..."
}

// NormalizeTags lower-cases, trims and dedupes tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
