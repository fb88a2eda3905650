package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/proactivedb/fleetmon/internal/middleware"
	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
)

// GetSettings returns the live alerting configuration. Admin only: recipient
// lists are not for customer eyes.
func (api *Api) GetSettings(c *gin.Context) {
	if !middleware.GetSession(c).IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	cfg, err := api.settings.Load()
	if err != nil {
		log.Error().Err(err).Msg("load settings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PutSettings replaces the alerting configuration. Takes effect on the next
// alert evaluation without a restart.
func (api *Api) PutSettings(c *gin.Context) {
	if !middleware.GetSession(c).IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	var cfg settings.Settings
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed settings payload"})
		return
	}
	if err := api.settings.Save(cfg); err != nil {
		log.Error().Err(err).Msg("save settings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}
