package handlers

import (
	"net/http"

	"github.com/cretee/creteebot/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StatsHandler handles the service-wide counters endpoint.
type StatsHandler struct {
	db *gorm.DB
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(db *gorm.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// Stats returns service-wide record counts.
func (h *StatsHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	counts := gin.H{}
	for name, model := range map[string]interface{}{
		"users":    &models.User{},
		"accounts": &models.Account{},
		"groups":   &models.Group{},
		"runs":     &models.BulkRun{},
	} {
		var total int64
		if errCount := h.db.WithContext(ctx).Model(model).Count(&total).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "count " + name + " failed"})
			return
		}
		counts[name] = total
	}
	c.JSON(http.StatusOK, counts)
}
