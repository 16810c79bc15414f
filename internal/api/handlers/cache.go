package handlers

import (
	"net/http"
	"strconv"

	"catalog/internal/app"
	"catalog/internal/apperr"
	"catalog/internal/services/fakestore"

	"github.com/gin-gonic/gin"
)

type CacheHandler struct {
	app *app.App
}

func NewCacheHandler(a *app.App) *CacheHandler {
	return &CacheHandler{app: a}
}

// ClearAll drops every cached product.
func (h *CacheHandler) ClearAll(c *gin.Context) {
	if err := h.app.Products.ClearCache(c.Request.Context(), nil); err != nil {
		h.app.Logger.Error("Failed to clear product cache: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product cache cleared"})
}

// ClearOne drops a single cached product.
func (h *CacheHandler) ClearOne(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || !fakestore.ValidProductID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product ID must be between 1 and 20."})
		return
	}

	if err := h.app.Products.ClearCache(c.Request.Context(), &id); err != nil {
		h.app.Logger.Error("Failed to clear cache for product %d: %v", id, err)
		c.JSON(apperr.HTTPStatus(apperr.KindOf(err)), gin.H{"error": "Failed to clear cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product cache cleared", "product_id": id})
}
