package fakestore

import (
	"html"
	"net/url"
	"strings"

	"catalog/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

const maxRating = 5

var (
	textPolicy = bluemonday.StrictPolicy()
	richPolicy = bluemonday.UGCPolicy()
)

// TransformProduct converts an upstream payload to our canonical Product.
// It never fails: unknown or missing fields become zero values.
func TransformProduct(raw RawProduct) *models.Product {
	rating := raw.rating()

	return &models.Product{
		ID:          raw.intField("id"),
		Title:       SanitizeText(raw.stringField("title")),
		Description: SanitizeRichText(raw.stringField("description")),
		Price:       clamp(raw.floatField("price"), 0, -1),
		Category:    SanitizeText(raw.stringField("category")),
		Image:       SanitizeImageURL(raw.stringField("image")),
		RatingRate:  clamp(rating.floatField("rate"), 0, maxRating),
		RatingCount: rating.intField("count"),
	}
}

// SanitizeText strips all markup and collapses whitespace. The result is
// plain text, unescaped; escaping happens at render time.
func SanitizeText(s string) string {
	stripped := html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(stripped), " ")
}

// SanitizeRichText keeps a safe subset of markup.
func SanitizeRichText(s string) string {
	return strings.TrimSpace(richPolicy.Sanitize(s))
}

// SanitizeImageURL returns s if it is an absolute http(s) URL, else "".
func SanitizeImageURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !IsHTTPURL(s) {
		return ""
	}
	return s
}

// IsHTTPURL reports whether s parses as an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// clamp bounds v to [lo, hi]; a negative hi means no upper bound.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi >= 0 && v > hi {
		return hi
	}
	return v
}
