// Package render turns products into the HTML fragments served by the embed
// and on-demand endpoints.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"catalog/internal/models"
)

var (
	paragraphBreak = regexp.MustCompile(`\r?\n\s*\r?\n`)
	paragraphTag   = regexp.MustCompile(`(?i)<p[\s>/]`)
)

const cardTemplate = `<div class="{{.Class}}">
{{- if .Image}}
<div class="catalog-card-image"><img src="{{.Image}}" alt="{{.Title}}" /></div>
{{- end}}
<div class="catalog-card-content">
<h3 class="catalog-card-title">{{.Title}}</h3>
<div class="catalog-card-meta">
{{- if .Category}}
<div class="catalog-card-category"><strong>Category:</strong> {{.Category}}</div>
{{- end}}
{{- if .Rating}}
<div class="catalog-card-rating"><strong>Rating:</strong> &#11088; {{.Rating}}</div>
{{- end}}
</div>
<div class="catalog-card-price"><strong>Price:</strong> {{.Price}}</div>
<div class="catalog-card-description">{{.Description}}</div>
{{- if .Link}}
<div class="catalog-card-link"><a href="{{.Link}}" class="catalog-view-post">View Product Post &rarr;</a></div>
{{- end}}
</div>
</div>`

const randomTemplate = `<div class="catalog-random-container" data-nonce="{{.Nonce}}" data-endpoint="{{.Endpoint}}" data-action="{{.Action}}">
<button class="catalog-random-button" type="button">Load Random Product</button>
<div class="catalog-random-result"></div>
<div class="catalog-loading" style="display: none;">Loading...</div>
</div>`

const errorTemplate = `<div class="catalog-error">{{.}}</div>`

type cardView struct {
	Class       string
	Image       string
	Title       string
	Category    string
	Rating      string
	Price       string
	Description template.HTML
	Link        string
}

type randomView struct {
	Nonce    string
	Endpoint string
	Action   string
}

// Renderer is safe for concurrent use.
type Renderer struct {
	baseURL  string
	enhanced bool
	card     *template.Template
	random   *template.Template
	errorTpl *template.Template
}

// New builds a renderer. baseURL is used to build record links.
func New(baseURL string) *Renderer {
	return &Renderer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		card:     template.Must(template.New("card").Parse(cardTemplate)),
		random:   template.Must(template.New("random").Parse(randomTemplate)),
		errorTpl: template.Must(template.New("error").Parse(errorTemplate)),
	}
}

// WithEnhancedStyles returns a copy that marks cards for the enhanced stylesheet.
func (r *Renderer) WithEnhancedStyles(enabled bool) *Renderer {
	cp := *r
	cp.enhanced = enabled
	return &cp
}

// RecordURL is the public URL of a content record.
func (r *Renderer) RecordURL(recordID uint) string {
	return fmt.Sprintf("%s/products/%d", r.baseURL, recordID)
}

// RenderCard renders a product card. The link block is only included when
// showLink is set and recordID is positive.
func (r *Renderer) RenderCard(p *models.Product, showLink bool, recordID uint) (string, error) {
	view := cardView{
		Class:       "catalog-card",
		Image:       p.Image,
		Title:       p.Title,
		Category:    upperFirst(p.Category),
		Price:       FormatPrice(p.Price),
		Description: paragraphs(p.Description),
	}
	if r.enhanced {
		view.Class += " catalog-card--enhanced"
	}
	if p.RatingRate != 0 {
		view.Rating = FormatRating(p.RatingRate, p.RatingCount)
	}
	if showLink && recordID > 0 {
		view.Link = r.RecordURL(recordID)
	}

	var buf bytes.Buffer
	if err := r.card.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render product card: %w", err)
	}
	return buf.String(), nil
}

// RenderRandomWidget renders the button shell for the on-demand widget.
func (r *Renderer) RenderRandomWidget(nonce, endpoint, action string) (string, error) {
	var buf bytes.Buffer
	if err := r.random.Execute(&buf, randomView{Nonce: nonce, Endpoint: endpoint, Action: action}); err != nil {
		return "", fmt.Errorf("failed to render random widget: %w", err)
	}
	return buf.String(), nil
}

// RenderError renders an escaped error message.
func (r *Renderer) RenderError(message string) string {
	var buf bytes.Buffer
	if err := r.errorTpl.Execute(&buf, message); err != nil {
		return `<div class="catalog-error"></div>`
	}
	return buf.String()
}

// FormatPrice formats a price with two decimals.
func FormatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}

// FormatRating renders e.g. "4.2/5 (10 reviews)".
func FormatRating(rate float64, count int) string {
	return fmt.Sprintf("%s/5 (%d reviews)", strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", rate), "0"), "."), count)
}

// paragraphs wraps blank-line separated blocks in <p> unless the text already
// carries block markup. Input must already be sanitized.
func paragraphs(desc string) template.HTML {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return ""
	}
	if paragraphTag.MatchString(desc) {
		return template.HTML(desc)
	}

	var b strings.Builder
	for _, block := range paragraphBreak.Split(desc, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(block, "\n", "<br />\n"))
		b.WriteString("</p>\n")
	}
	return template.HTML(strings.TrimSuffix(b.String(), "\n"))
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
