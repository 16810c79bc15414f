// Package showcase serves the on-demand random product action: it checks the
// caller, fetches a random product, persists it and renders the card.
package showcase

import (
	"context"

	"catalog/internal/apperr"
	"catalog/internal/logger"
	"catalog/internal/metrics"
	"catalog/internal/models"
)

const rateLimitedMessage = "Too many requests. Please try again later."

type NonceVerifier interface {
	Verify(token string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

type ProductSource interface {
	GetRandomProduct(ctx context.Context) (*models.Product, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) (uint, error)
}

type CardRenderer interface {
	RenderCard(p *models.Product, showLink bool, recordID uint) (string, error)
}

// StyleSource reports whether cards get the enhanced stylesheet class.
type StyleSource interface {
	EnhancedStyles(ctx context.Context) bool
}

type Request struct {
	Nonce    string
	ClientIP string
}

type Result struct {
	HTML      string `json:"html"`
	PostID    uint   `json:"post_id"`
	ProductID int    `json:"product_id"`
}

type Service struct {
	nonces   NonceVerifier
	limiter  RateLimiter
	products ProductSource
	records  ProductStore
	renderer func(enhanced bool) CardRenderer
	styles   StyleSource
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

type Deps struct {
	Nonces   NonceVerifier
	Limiter  RateLimiter
	Products ProductSource
	Records  ProductStore
	// Renderer returns a card renderer for the given style flag.
	Renderer func(enhanced bool) CardRenderer
	// Styles may be nil, in which case plain cards are rendered.
	Styles  StyleSource
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

func NewService(d Deps) *Service {
	return &Service{
		nonces:   d.Nonces,
		limiter:  d.Limiter,
		products: d.Products,
		records:  d.Records,
		renderer: d.Renderer,
		styles:   d.Styles,
		logger:   d.Logger,
		metrics:  d.Metrics,
	}
}

// Random runs the on-demand pipeline. Each step short-circuits on failure and
// nothing is retried.
func (s *Service) Random(ctx context.Context, req Request) (*Result, error) {
	if err := s.nonces.Verify(req.Nonce); err != nil {
		s.logger.Warn("Rejected on-demand request from %s: %v", req.ClientIP, err)
		return nil, err
	}

	allowed, err := s.limiter.Allow(ctx, req.ClientIP)
	if err != nil {
		s.metrics.RateLimitDecision.WithLabelValues("error").Inc()
		s.logger.Error("Rate limiter unavailable, rejecting %s: %v", req.ClientIP, err)
		return nil, apperr.Wrap(apperr.KindRateLimited, rateLimitedMessage, err)
	}
	if !allowed {
		s.metrics.RateLimitDecision.WithLabelValues("rejected").Inc()
		return nil, apperr.New(apperr.KindRateLimited, rateLimitedMessage)
	}
	s.metrics.RateLimitDecision.WithLabelValues("allowed").Inc()

	product, err := s.products.GetRandomProduct(ctx)
	if err != nil {
		return nil, err
	}

	recordID, err := s.records.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	enhanced := s.styles != nil && s.styles.EnhancedStyles(ctx)
	html, err := s.renderer(enhanced).RenderCard(product, true, recordID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to render product.", err)
	}

	return &Result{HTML: html, PostID: recordID, ProductID: product.ID}, nil
}
