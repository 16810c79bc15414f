package handlers

import (
	"fmt"
	"net/http"
	"time"

	"catalog/internal/app"
	"catalog/internal/apperr"
	"catalog/internal/models"
	"catalog/internal/settings"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	app *app.App
	now func() time.Time
}

func NewSettingsHandler(a *app.App) *SettingsHandler {
	return &SettingsHandler{app: a, now: time.Now}
}

type settingsResponse struct {
	ProductID            int        `json:"product_id"`
	EnableEnhancedStyles bool       `json:"enable_enhanced_styles"`
	LastCreatedAt        *time.Time `json:"last_created_at"`
	LastCreatedAgo       string     `json:"last_created_ago,omitempty"`
}

func (h *SettingsHandler) Get(c *gin.Context) {
	st, err := h.app.Settings.Get(c.Request.Context())
	if err != nil {
		h.app.Logger.Error("Failed to load settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, h.response(st))
}

// Update saves the form. An invalid product id answers 422 with the message
// and the settings as stored.
func (h *SettingsHandler) Update(c *gin.Context) {
	var in settings.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	st, err := h.app.Settings.Save(c.Request.Context(), in)
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidArgument) && st != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":    apperr.Message(err),
				"settings": h.response(st),
			})
			return
		}
		h.app.Logger.Error("Failed to save settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, h.response(st))
}

func (h *SettingsHandler) response(st *models.Settings) settingsResponse {
	resp := settingsResponse{
		ProductID:            st.ProductID,
		EnableEnhancedStyles: st.EnableEnhancedStyles,
		LastCreatedAt:        st.LastCreatedAt,
	}
	if st.LastCreatedAt != nil {
		resp.LastCreatedAgo = humanSince(*st.LastCreatedAt, h.now()) + " ago"
	}
	return resp
}

// humanSince renders the distance between two times in the largest whole unit.
func humanSince(from, to time.Time) string {
	d := to.Sub(from)
	if d < 0 {
		d = -d
	}

	switch {
	case d < time.Minute:
		return plural(int(d/time.Second), "sec")
	case d < time.Hour:
		return plural(int(d/time.Minute), "min")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d < 7*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d < 30*24*time.Hour:
		return plural(int(d/(7*24*time.Hour)), "week")
	case d < 365*24*time.Hour:
		return plural(int(d/(30*24*time.Hour)), "month")
	default:
		return plural(int(d/(365*24*time.Hour)), "year")
	}
}

func plural(n int, unit string) string {
	if n < 1 {
		n = 1
	}
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
