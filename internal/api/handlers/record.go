package handlers

import (
	"net/http"
	"strconv"

	"catalog/internal/app"
	"catalog/internal/apperr"

	"github.com/gin-gonic/gin"
)

// RecordHandler shows persisted content records. It is the target of the
// "View Product Post" link.
type RecordHandler struct {
	app *app.App
}

func NewRecordHandler(a *app.App) *RecordHandler {
	return &RecordHandler{app: a}
}

func (h *RecordHandler) View(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.notFound(c)
		return
	}

	ctx := c.Request.Context()
	record, err := h.app.Records.Get(ctx, uint(id))
	if err != nil {
		h.app.Logger.Error("Failed to load record %d: %v", id, err)
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(h.app.Renderer.RenderError(apperr.Message(err))))
		return
	}
	if record == nil {
		h.notFound(c)
		return
	}

	card, err := h.app.Renderer.WithEnhancedStyles(h.app.Settings.EnhancedStyles(ctx)).RenderCard(record.Product(), false, 0)
	if err != nil {
		h.app.Logger.Error("Failed to render record %d: %v", id, err)
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(h.app.Renderer.RenderError(apperr.Message(err))))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(card))
}

func (h *RecordHandler) notFound(c *gin.Context) {
	c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(h.app.Renderer.RenderError("Product not found.")))
}
