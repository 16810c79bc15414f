package fakestore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"catalog/internal/apperr"
	"catalog/internal/cache"
	"catalog/internal/logger"
	"catalog/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shirtPayload = `{"id":3,"title":"Shirt","price":19.99,"rating":{"rate":4.2,"count":10}}`

type upstream struct {
	server *httptest.Server
	calls  atomic.Int32
	paths  chan string
}

func newUpstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *upstream {
	t.Helper()

	u := &upstream{paths: make(chan string, 64)}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		select {
		case u.paths <- r.URL.Path:
		default:
		}
		handler(w, r)
	}))
	t.Cleanup(u.server.Close)
	return u
}

// catalogHandler serves {"id":N,"title":"Product N",...} for /products/N.
func catalogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/products/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":%d,"title":"Product %d","price":%d.5,"category":"misc","image":"https://img.example/%d.png","rating":{"rate":3.9,"count":120}}`, id, id, id, id)
}

func newTestClient(t *testing.T, baseURL string) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := NewClient(baseURL, cache.NewRedisStore(rdb), logger.NewNop(), metrics.New(prometheus.NewRegistry()))
	return client, mr
}

func TestGetProduct_OutOfRangeMakesNoCall(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, mr := newTestClient(t, up.server.URL)

	for _, id := range []int{-5, 0, 21, 1000} {
		_, err := client.GetProduct(context.Background(), id)
		require.Error(t, err)
		assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err), "id %d", id)
		assert.Equal(t, "Product ID must be between 1 and 20.", err.Error())
	}

	assert.Zero(t, up.calls.Load())
	assert.Empty(t, mr.Keys())
}

func TestGetProduct_SecondCallIsCacheHit(t *testing.T) {
	var accept atomic.Value
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		accept.Store(r.Header.Get("Accept"))
		catalogHandler(w, r)
	})
	client, mr := newTestClient(t, up.server.URL)
	ctx := context.Background()

	first, err := client.GetProduct(ctx, 7)
	require.NoError(t, err)
	second, err := client.GetProduct(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, int32(1), up.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, "application/json", accept.Load())
	assert.Equal(t, "/products/7", <-up.paths)
	assert.True(t, mr.Exists("product:7"))
	assert.Equal(t, CacheTTL, mr.TTL("product:7"))
}

func TestGetProduct_RefetchesAfterTTL(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, mr := newTestClient(t, up.server.URL)
	ctx := context.Background()

	_, err := client.GetProduct(ctx, 2)
	require.NoError(t, err)
	mr.FastForward(CacheTTL + time.Second)
	_, err = client.GetProduct(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, int32(2), up.calls.Load())
}

func TestClearCache_SingleForcesRefetch(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, _ := newTestClient(t, up.server.URL)
	ctx := context.Background()

	_, err := client.GetProduct(ctx, 5)
	require.NoError(t, err)

	id := 5
	require.NoError(t, client.ClearCache(ctx, &id))

	_, err = client.GetProduct(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), up.calls.Load())
}

func TestClearCache_AllSweepsRange(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, mr := newTestClient(t, up.server.URL)
	ctx := context.Background()

	for _, id := range []int{1, 10, 20} {
		_, err := client.GetProduct(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, client.ClearCache(ctx, nil))

	assert.Equal(t, []string{"unrelated"}, mr.Keys())
}

func TestGetProduct_MissingTitleIsInvalidDataAndNotCached(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":3,"price":19.99}`)
	})
	client, mr := newTestClient(t, up.server.URL)

	_, err := client.GetProduct(context.Background(), 3)

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidData, apperr.KindOf(err))
	assert.Equal(t, "Invalid product data received from API.", err.Error())
	assert.False(t, mr.Exists("product:3"))
}

func TestGetProduct_MarkupOnlyTitleIsInvalidData(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":3,"title":"<script>x</script>","price":19.99}`)
	})
	client, mr := newTestClient(t, up.server.URL)

	product, err := client.GetProduct(context.Background(), 3)

	require.Error(t, err)
	assert.Nil(t, product)
	assert.Equal(t, apperr.KindInvalidData, apperr.KindOf(err))
	assert.False(t, mr.Exists("product:3"))
}

func TestGetProduct_UpstreamStatusError(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client, mr := newTestClient(t, up.server.URL)

	_, err := client.GetProduct(context.Background(), 4)

	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, "API returned error code: 503", err.Error())
	assert.Empty(t, mr.Keys())
}

func TestGetProduct_MalformedJSON(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":3,"title":`)
	})
	client, mr := newTestClient(t, up.server.URL)

	_, err := client.GetProduct(context.Background(), 3)

	assert.Equal(t, apperr.KindDecode, apperr.KindOf(err))
	assert.Equal(t, "Failed to decode API response.", apperr.Message(err))
	assert.Empty(t, mr.Keys())
}

func TestGetProduct_TransportError(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	baseURL := up.server.URL
	up.server.Close()

	client, _ := newTestClient(t, baseURL)
	_, err := client.GetProduct(context.Background(), 3)

	require.Error(t, err)
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "API request failed: "))
}

func TestGetProduct_InvalidCacheEntryIsRefetched(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, mr := newTestClient(t, up.server.URL)

	require.NoError(t, mr.Set("product:9", `{"id":9}`))

	product, err := client.GetProduct(context.Background(), 9)
	require.NoError(t, err)

	assert.Equal(t, "Product 9", product.Title)
	assert.Equal(t, int32(1), up.calls.Load())
}

func TestGetProduct_CacheHitIsRenormalized(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, mr := newTestClient(t, up.server.URL)

	require.NoError(t, mr.Set("product:11", `{"id":11,"title":"<b>Bold</b>  name","image":"file:///etc/passwd","rating":{"rate":9}}`))

	product, err := client.GetProduct(context.Background(), 11)
	require.NoError(t, err)

	assert.Zero(t, up.calls.Load())
	assert.Equal(t, "Bold name", product.Title)
	assert.Empty(t, product.Image)
	assert.InDelta(t, 5.0, product.RatingRate, 0)
}

func TestGetProduct_CacheDownStillServes(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, mr := newTestClient(t, up.server.URL)
	mr.Close()

	product, err := client.GetProduct(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, 6, product.ID)
}

func TestGetRandomProduct_StaysInRange(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, _ := newTestClient(t, up.server.URL)

	for i := 0; i < 30; i++ {
		product, err := client.GetRandomProduct(context.Background())
		require.NoError(t, err)
		assert.True(t, ValidProductID(product.ID), "id %d out of range", product.ID)
	}
}

func TestGetRandomProduct_CoversBounds(t *testing.T) {
	up := newUpstream(t, catalogHandler)
	client, _ := newTestClient(t, up.server.URL)

	var bounds []int
	client.intN = func(n int) int {
		bounds = append(bounds, n)
		if len(bounds) == 1 {
			return 0
		}
		return n - 1
	}

	first, err := client.GetRandomProduct(context.Background())
	require.NoError(t, err)
	last, err := client.GetRandomProduct(context.Background())
	require.NoError(t, err)

	assert.Equal(t, MinProductID, first.ID)
	assert.Equal(t, MaxProductID, last.ID)
	assert.Equal(t, []int{20, 20}, bounds)
}
