package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"catalog/internal/app/apptest"
	"catalog/internal/auth"
	"catalog/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type ajaxResponse struct {
	Success bool `json:"success"`
	Data    struct {
		HTML      string `json:"html"`
		PostID    uint   `json:"post_id"`
		ProductID int    `json:"product_id"`
		Message   string `json:"message"`
	} `json:"data"`
}

func newTestServer(t *testing.T, opts ...apptest.Option) (*apptest.Env, *gin.Engine) {
	t.Helper()
	env := apptest.New(t, opts...)
	return env, New(env.App).Router()
}

func newRequest(method, target string, body string, contentType string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, target, nil)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func do(r http.Handler, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	return serve(r, newRequest(method, target, body, contentType))
}

// doAdmin sends the request with a valid admin bearer token.
func doAdmin(t *testing.T, env *apptest.Env, r http.Handler, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.IssueAdminToken(env.App.Config.JWTSecret, "ops", time.Hour, time.Now())
	require.NoError(t, err)

	req := newRequest(method, target, body, contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	return serve(r, req)
}

func postAjax(r http.Handler, action, nonce string) *httptest.ResponseRecorder {
	return postAjaxFrom(r, action, nonce, nil)
}

func postAjaxFrom(r http.Handler, action, nonce string, header http.Header) *httptest.ResponseRecorder {
	form := url.Values{"action": {action}, "nonce": {nonce}}
	req := newRequest(http.MethodPost, "/api/v1/ajax", form.Encode(), "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header[k] = v
	}
	return serve(r, req)
}

func issueNonce(t *testing.T, r http.Handler) string {
	t.Helper()
	w := do(r, http.MethodGet, "/api/v1/nonce", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Nonce)
	return body.Nonce
}

func decodeAjax(t *testing.T, w *httptest.ResponseRecorder) ajaxResponse {
	t.Helper()
	var resp ajaxResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestEmbedProduct_UsesConfiguredProduct(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodGet, "/api/v1/embed/product", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Product 1")
	assert.Contains(t, w.Body.String(), "$1.99")
	assert.NotContains(t, w.Body.String(), "catalog-card-link")
}

func TestEmbedProduct_IDAttribute(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodGet, "/api/v1/embed/product?id=-3", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Product 3")
}

func TestEmbedProduct_OutOfRangeRendersError(t *testing.T) {
	env, r := newTestServer(t)

	w := do(r, http.MethodGet, "/api/v1/embed/product?id=99", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<div class="catalog-error">Product ID must be between 1 and 20.</div>`, w.Body.String())
	assert.Zero(t, env.Calls.Load())
}

func TestEmbedRandom_CarriesValidNonce(t *testing.T) {
	env, r := newTestServer(t)

	w := do(r, http.MethodGet, "/api/v1/embed/random", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	m := regexp.MustCompile(`data-nonce="([^"]+)"`).FindStringSubmatch(w.Body.String())
	require.Len(t, m, 2)
	assert.NoError(t, env.App.Nonces.Verify(m[1]))
	assert.Contains(t, w.Body.String(), `data-action="catalog_get_random"`)
}

func TestAjax_RandomProduct(t *testing.T) {
	env, r := newTestServer(t)
	token := issueNonce(t, r)

	w := postAjax(r, "catalog_get_random", token)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeAjax(t, w)
	assert.True(t, resp.Success)
	assert.Positive(t, resp.Data.PostID)
	assert.GreaterOrEqual(t, resp.Data.ProductID, 1)
	assert.LessOrEqual(t, resp.Data.ProductID, 20)
	assert.Contains(t, resp.Data.HTML, fmt.Sprintf(`href="https://shop.example/products/%d"`, resp.Data.PostID))
	assert.Equal(t, int32(1), env.Calls.Load())

	// The linked record page renders the persisted product.
	page := do(r, http.MethodGet, fmt.Sprintf("/products/%d", resp.Data.PostID), "", "")
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), fmt.Sprintf("Product %d", resp.Data.ProductID))
}

func TestAjax_BadNonceIsRejectedBeforeAnyWork(t *testing.T) {
	env, r := newTestServer(t)

	for _, token := range []string{"", "forged.token.value"} {
		w := postAjax(r, "catalog_get_random", token)

		assert.Equal(t, http.StatusForbidden, w.Code)
		resp := decodeAjax(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, "Security check failed.", resp.Data.Message)
	}

	assert.Zero(t, env.Calls.Load())
	assert.Empty(t, env.Redis.Keys())
}

func TestAjax_RateLimited(t *testing.T) {
	_, r := newTestServer(t, func(c *config.Config) { c.RateLimitRequests = 2 })
	token := issueNonce(t, r)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, postAjax(r, "catalog_get_random", token).Code)
	}

	w := postAjax(r, "catalog_get_random", token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	resp := decodeAjax(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Too many requests. Please try again later.", resp.Data.Message)
}

func TestAjax_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	_, r := newTestServer(t, func(c *config.Config) { c.RateLimitRequests = 2 })
	token := issueNonce(t, r)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		header := http.Header{"X-Forwarded-For": {fmt.Sprintf("10.9.9.%d", i)}}
		codes = append(codes, postAjaxFrom(r, "catalog_get_random", token, header).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestAjax_RateLimitHonorsTrustedProxy(t *testing.T) {
	// httptest requests arrive from 192.0.2.1.
	env, r := newTestServer(t, func(c *config.Config) {
		c.RateLimitRequests = 1
		c.TrustedProxies = []string{"192.0.2.1"}
	})
	token := issueNonce(t, r)

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		w := postAjaxFrom(r, "catalog_get_random", token, http.Header{"X-Forwarded-For": {client}})
		assert.Equal(t, http.StatusOK, w.Code, client)
	}
	w := postAjaxFrom(r, "catalog_get_random", token, http.Header{"X-Forwarded-For": {"198.51.100.1"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	assert.True(t, env.Redis.Exists("ratelimit:198.51.100.1"))
	assert.False(t, env.Redis.Exists("ratelimit:192.0.2.1"))
}

func TestAjax_UpstreamErrorMessage(t *testing.T) {
	env, r := newTestServer(t)
	token := issueNonce(t, r)
	env.Upstream.Close()

	w := postAjax(r, "catalog_get_random", token)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeAjax(t, w)
	assert.False(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Data.Message, "API request failed: "))
}

func TestAjax_UnknownAction(t *testing.T) {
	_, r := newTestServer(t)

	w := postAjax(r, "delete_everything", "x")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decodeAjax(t, w).Success)
}

func TestSettings_GetAndUpdate(t *testing.T) {
	env, r := newTestServer(t)

	w := doAdmin(t, env, r, http.MethodGet, "/api/v1/settings", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"product_id":1,"enable_enhanced_styles":false,"last_created_at":null}`, w.Body.String())

	w = doAdmin(t, env, r, http.MethodPut, "/api/v1/settings", `{"product_id":7,"enable_enhanced_styles":true}`, "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"product_id":7,"enable_enhanced_styles":true,"last_created_at":null}`, w.Body.String())

	embed := do(r, http.MethodGet, "/api/v1/embed/product", "", "")
	assert.Contains(t, embed.Body.String(), "Product 7")
	assert.Contains(t, embed.Body.String(), "catalog-card--enhanced")
}

func TestSettings_InvalidProductIDKeepsStoredValue(t *testing.T) {
	env, r := newTestServer(t)

	doAdmin(t, env, r, http.MethodPut, "/api/v1/settings", `{"product_id":5}`, "application/json")
	w := doAdmin(t, env, r, http.MethodPut, "/api/v1/settings", `{"product_id":0,"enable_enhanced_styles":true,"last_created_at":"2020-01-01T00:00:00Z"}`, "application/json")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{
		"error": "Product ID must be between 1 and 20.",
		"settings": {"product_id":5,"enable_enhanced_styles":true,"last_created_at":null}
	}`, w.Body.String())
}

func TestSettings_ReportsLastCreated(t *testing.T) {
	env, r := newTestServer(t)
	require.Equal(t, http.StatusOK, postAjax(r, "catalog_get_random", issueNonce(t, r)).Code)

	w := doAdmin(t, env, r, http.MethodGet, "/api/v1/settings", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotNil(t, body["last_created_at"])
	assert.Contains(t, body["last_created_ago"], " ago")
}

func TestAdminRoutes_RequireBearerToken(t *testing.T) {
	env, r := newTestServer(t)
	widgetNonce := issueNonce(t, r)
	forged, err := auth.IssueAdminToken("not-the-secret", "ops", time.Hour, time.Now())
	require.NoError(t, err)

	routes := []struct{ method, target, body string }{
		{http.MethodGet, "/api/v1/settings", ""},
		{http.MethodPut, "/api/v1/settings", `{"product_id":9}`},
		{http.MethodDelete, "/api/v1/cache", ""},
		{http.MethodDelete, "/api/v1/cache/4", ""},
	}
	for _, rt := range routes {
		for _, header := range []string{"", "Bearer " + widgetNonce, "Bearer " + forged} {
			req := newRequest(rt.method, rt.target, rt.body, "application/json")
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := serve(r, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s %q", rt.method, rt.target, header)
		}
	}

	st, err := env.App.Settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.ProductID)
}

func TestCache_Clear(t *testing.T) {
	env, r := newTestServer(t)

	do(r, http.MethodGet, "/api/v1/embed/product?id=4", "", "")
	do(r, http.MethodGet, "/api/v1/embed/product?id=5", "", "")
	require.True(t, env.Redis.Exists("product:4"))

	w := doAdmin(t, env, r, http.MethodDelete, "/api/v1/cache/4", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.Redis.Exists("product:4"))
	assert.True(t, env.Redis.Exists("product:5"))

	w = doAdmin(t, env, r, http.MethodDelete, "/api/v1/cache", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.Redis.Exists("product:5"))

	w = doAdmin(t, env, r, http.MethodDelete, "/api/v1/cache/21", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordView_NotFound(t *testing.T) {
	_, r := newTestServer(t)

	for _, target := range []string{"/products/999", "/products/abc"} {
		w := do(r, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.Contains(t, w.Body.String(), "catalog-error")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catalog_http_requests_total")
}
