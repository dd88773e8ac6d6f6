package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cretee/creteebot/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GroupHandler handles admin group and bulk-run listing endpoints.
type GroupHandler struct {
	db *gorm.DB
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(db *gorm.DB) *GroupHandler {
	return &GroupHandler{db: db}
}

// groupListQuery defines filters for the group list view.
type groupListQuery struct {
	listQuery
	Owner string `form:"owner_id"` // Owner filter.
}

func (h *GroupHandler) ownerFilter(c *gin.Context, raw string, base *gorm.DB) (*gorm.DB, bool) {
	owner := strings.TrimSpace(raw)
	if owner == "" {
		return base, true
	}
	ownerID, errParse := strconv.ParseInt(owner, 10, 64)
	if errParse != nil || ownerID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner_id"})
		return nil, false
	}
	return base.Where("owner_id = ?", ownerID), true
}

// List returns created groups with paging.
func (h *GroupHandler) List(c *gin.Context) {
	var q groupListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.clamp()

	base := h.db.WithContext(c.Request.Context()).Model(&models.Group{})
	base, ok := h.ownerFilter(c, q.Owner, base)
	if !ok {
		return
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count groups failed"})
		return
	}

	var rows []models.Group
	if errFind := base.
		Order("created_at DESC").
		Offset(q.offset()).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list groups failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"name":         row.Name,
			"remote_id":    row.RemoteID,
			"invite_link":  row.InviteLink,
			"account_id":   row.AccountID,
			"owner_id":     row.OwnerID,
			"member_count": row.MemberCount,
			"created_at":   row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"groups": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// ListRuns returns bulk run records with paging.
func (h *GroupHandler) ListRuns(c *gin.Context) {
	var q groupListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.clamp()

	base := h.db.WithContext(c.Request.Context()).Model(&models.BulkRun{})
	base, ok := h.ownerFilter(c, q.Owner, base)
	if !ok {
		return
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count runs failed"})
		return
	}

	var rows []models.BulkRun
	if errFind := base.
		Order("started_at DESC").
		Offset(q.offset()).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list runs failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":          row.ID,
			"run_id":      row.RunID,
			"owner_id":    row.OwnerID,
			"account_id":  row.AccountID,
			"requested":   row.Requested,
			"succeeded":   row.Succeeded,
			"failed":      row.Failed,
			"item_errors": row.ItemErrors,
			"started_at":  row.StartedAt,
			"finished_at": row.FinishedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": out, "total": total, "page": q.Page, "limit": q.Limit})
}
