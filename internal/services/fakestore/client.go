package fakestore

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"catalog/internal/apperr"
	"catalog/internal/cache"
	"catalog/internal/logger"
	"catalog/internal/metrics"
	"catalog/internal/models"
)

const (
	MinProductID = 1
	MaxProductID = 20

	CacheTTL       = time.Hour
	RequestTimeout = 15 * time.Second

	cacheKeyPrefix = "product:"
	maxBodyBytes   = 1 << 20
)

// CacheKey returns the cache key for a product id.
func CacheKey(productID int) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, productID)
}

// CacheKeyPrefix is the prefix shared by every product cache key.
func CacheKeyPrefix() string {
	return cacheKeyPrefix
}

// ValidProductID reports whether id is inside the catalog's id range.
func ValidProductID(id int) bool {
	return id >= MinProductID && id <= MaxProductID
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Store
	logger     *logger.Logger
	metrics    *metrics.Metrics
	intN       func(n int) int
}

func NewClient(baseURL string, store cache.Store, logger *logger.Logger, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
		cache:   store,
		logger:  logger,
		metrics: m,
		intN:    rand.Intn,
	}
}

// GetProduct returns the product with the given id, from cache when possible.
func (c *Client) GetProduct(ctx context.Context, productID int) (*models.Product, error) {
	if !ValidProductID(productID) {
		return nil, apperr.New(apperr.KindInvalidArgument,
			fmt.Sprintf("Product ID must be between %d and %d.", MinProductID, MaxProductID))
	}

	key := CacheKey(productID)
	if product, ok := c.fromCache(ctx, key); ok {
		return product, nil
	}

	body, err := c.fetch(ctx, productID)
	if err != nil {
		return nil, err
	}

	raw, err := decodeRawProduct(body)
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("decode_error").Inc()
		return nil, apperr.Wrap(apperr.KindDecode, "Failed to decode API response.", err)
	}
	if !raw.valid() {
		c.metrics.UpstreamRequests.WithLabelValues("invalid_data").Inc()
		return nil, apperr.New(apperr.KindInvalidData, "Invalid product data received from API.")
	}
	c.metrics.UpstreamRequests.WithLabelValues("ok").Inc()

	// Cache the raw payload; normalization runs again on every read.
	if err := c.cache.Set(ctx, key, body, CacheTTL); err != nil {
		c.logger.Warn("Failed to cache product %d: %v", productID, err)
	}

	return TransformProduct(raw), nil
}

// GetRandomProduct fetches a uniformly random product from the id range.
func (c *Client) GetRandomProduct(ctx context.Context) (*models.Product, error) {
	id := MinProductID + c.intN(MaxProductID-MinProductID+1)
	return c.GetProduct(ctx, id)
}

// ClearCache drops one cached product, or every product when productID is nil.
// The full sweep walks the id range, which only works because it is small.
func (c *Client) ClearCache(ctx context.Context, productID *int) error {
	if productID != nil {
		return c.cache.Delete(ctx, CacheKey(*productID))
	}
	for id := MinProductID; id <= MaxProductID; id++ {
		if err := c.cache.Delete(ctx, CacheKey(id)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) fromCache(ctx context.Context, key string) (*models.Product, bool) {
	body, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache lookup failed for %s: %v", key, err)
		c.metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	if !ok {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	raw, err := decodeRawProduct(body)
	if err != nil || !raw.valid() {
		c.logger.Warn("Discarding invalid cache entry %s", key)
		c.metrics.CacheLookups.WithLabelValues("invalid").Inc()
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("Failed to delete cache entry %s: %v", key, err)
		}
		return nil, false
	}

	c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return TransformProduct(raw), true
}

func (c *Client) fetch(ctx context.Context, productID int) ([]byte, error) {
	url := fmt.Sprintf("%s/products/%d", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransport, fmt.Sprintf("API request failed: %v", err), err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("transport_error").Inc()
		return nil, apperr.Wrap(apperr.KindTransport, fmt.Sprintf("API request failed: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamRequests.WithLabelValues("status_error").Inc()
		return nil, apperr.New(apperr.KindUpstream, fmt.Sprintf("API returned error code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("transport_error").Inc()
		return nil, apperr.Wrap(apperr.KindTransport, fmt.Sprintf("API request failed: %v", err), err)
	}

	c.logger.Debug("Fetched product %d from %s", productID, url)
	return body, nil
}
