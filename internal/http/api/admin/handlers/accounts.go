package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cretee/creteebot/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AccountHandler handles admin account listing endpoints. Encrypted session
// blobs are never included in responses.
type AccountHandler struct {
	db *gorm.DB
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(db *gorm.DB) *AccountHandler {
	return &AccountHandler{db: db}
}

// accountListQuery defines filters for the account list view.
type accountListQuery struct {
	listQuery
	Owner  string `form:"owner_id"` // Owner filter.
	Active string `form:"active"`   // "true"/"false" filter, empty for all.
}

// List returns accounts with paging and filters.
func (h *AccountHandler) List(c *gin.Context) {
	var q accountListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.clamp()

	base := h.db.WithContext(c.Request.Context()).Model(&models.Account{})
	if owner := strings.TrimSpace(q.Owner); owner != "" {
		ownerID, errParse := strconv.ParseInt(owner, 10, 64)
		if errParse != nil || ownerID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner_id"})
			return
		}
		base = base.Where("owner_id = ?", ownerID)
	}
	switch strings.TrimSpace(q.Active) {
	case "":
	case "true":
		base = base.Where("active = ?", true)
	case "false":
		base = base.Where("active = ?", false)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid active filter"})
		return
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count accounts failed"})
		return
	}

	var rows []models.Account
	if errFind := base.
		Order("created_at DESC").
		Offset(q.offset()).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list accounts failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"owner_id":     row.OwnerID,
			"phone":        row.Phone,
			"active":       row.Active,
			"created_at":   row.CreatedAt,
			"last_used_at": row.LastUsedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// Deactivate clears an account's active flag. Accounts are never hard-deleted,
// so the row and its groups remain queryable.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.Account{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate account failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found or already inactive"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": false})
}
