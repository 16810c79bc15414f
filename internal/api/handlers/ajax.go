package handlers

import (
	"html"
	"net/http"

	"catalog/internal/app"
	"catalog/internal/apperr"
	"catalog/internal/nonce"
	"catalog/internal/services/showcase"

	"github.com/gin-gonic/gin"
)

// AjaxHandler answers the browser side of the random product widget.
type AjaxHandler struct {
	app *app.App
}

func NewAjaxHandler(a *app.App) *AjaxHandler {
	return &AjaxHandler{app: a}
}

// Handle dispatches on the form field "action".
func (h *AjaxHandler) Handle(c *gin.Context) {
	switch c.PostForm("action") {
	case nonce.Action:
		h.random(c)
	default:
		h.fail(c, http.StatusBadRequest, "Unknown action.")
	}
}

// Nonce issues a token for the widget action.
func (h *AjaxHandler) Nonce(c *gin.Context) {
	token, err := h.app.Nonces.Issue()
	if err != nil {
		h.app.Logger.Error("Failed to issue nonce: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": token})
}

func (h *AjaxHandler) random(c *gin.Context) {
	res, err := h.app.Showcase.Random(c.Request.Context(), showcase.Request{
		Nonce:    c.PostForm("nonce"),
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.fail(c, apperr.HTTPStatus(apperr.KindOf(err)), apperr.Message(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    res,
	})
}

func (h *AjaxHandler) fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"data":    gin.H{"message": html.EscapeString(message)},
	})
}
