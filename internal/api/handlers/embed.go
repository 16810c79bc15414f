package handlers

import (
	"net/http"
	"strconv"

	"catalog/internal/app"
	"catalog/internal/apperr"
	"catalog/internal/nonce"

	"github.com/gin-gonic/gin"
)

// AjaxPath is where the random widget posts its action.
const AjaxPath = "/api/v1/ajax"

// EmbedHandler serves HTML fragments meant to be dropped into third-party pages.
type EmbedHandler struct {
	app *app.App
}

func NewEmbedHandler(a *app.App) *EmbedHandler {
	return &EmbedHandler{app: a}
}

// Product renders a fixed product. Without ?id the configured product is used.
func (h *EmbedHandler) Product(c *gin.Context) {
	ctx := c.Request.Context()

	st, err := h.app.Settings.Get(ctx)
	if err != nil {
		h.app.Logger.Error("Failed to load settings: %v", err)
		h.html(c, h.app.Renderer.RenderError(apperr.Message(err)))
		return
	}

	productID := st.ProductID
	if raw, ok := c.GetQuery("id"); ok {
		productID = absInt(raw)
	}

	product, err := h.app.Products.GetProduct(ctx, productID)
	if err != nil {
		h.html(c, h.app.Renderer.RenderError(apperr.Message(err)))
		return
	}

	card, err := h.app.Renderer.WithEnhancedStyles(st.EnableEnhancedStyles).RenderCard(product, false, 0)
	if err != nil {
		h.app.Logger.Error("Failed to render product %d: %v", productID, err)
		h.html(c, h.app.Renderer.RenderError(apperr.Message(err)))
		return
	}
	h.html(c, card)
}

// Random renders the on-demand widget shell with a fresh nonce.
func (h *EmbedHandler) Random(c *gin.Context) {
	token, err := h.app.Nonces.Issue()
	if err != nil {
		h.app.Logger.Error("Failed to issue nonce: %v", err)
		h.html(c, h.app.Renderer.RenderError(apperr.Message(err)))
		return
	}

	widget, err := h.app.Renderer.RenderRandomWidget(token, AjaxPath, nonce.Action)
	if err != nil {
		h.app.Logger.Error("Failed to render random widget: %v", err)
		h.html(c, h.app.Renderer.RenderError(apperr.Message(err)))
		return
	}
	h.html(c, widget)
}

func (h *EmbedHandler) html(c *gin.Context, body string) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}

// absInt parses an integer attribute the lenient way embeds expect: signs are
// dropped and anything unparsable becomes 0.
func absInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if n < 0 {
		return -n
	}
	return n
}
