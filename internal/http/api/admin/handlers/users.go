package handlers

import (
	"net/http"
	"strconv"
	"strings"

	dbutil "github.com/cretee/creteebot/internal/db"
	"github.com/cretee/creteebot/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler handles admin user listing endpoints.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// listQuery defines paging shared by the listing endpoints.
type listQuery struct {
	Page  int `form:"page,default=1"`   // Page number.
	Limit int `form:"limit,default=20"` // Page size.
}

func (q *listQuery) clamp() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}
}

func (q *listQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

// userListQuery defines filters for the user list view.
type userListQuery struct {
	listQuery
	Name string `form:"name"` // Display name / username filter.
}

// List returns users with paging and an optional name filter.
func (h *UserHandler) List(c *gin.Context) {
	var q userListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.clamp()

	base := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if name := strings.TrimSpace(q.Name); name != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+name+"%")
		base = base.Where(
			h.db.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "first_name"), pattern).
				Or(dbutil.CaseInsensitiveLikeExpr(h.db, "username"), pattern),
		)
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}

	var rows []models.User
	if errFind := base.
		Order("created_at DESC").
		Offset(q.offset()).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":            row.ID,
			"telegram_id":   row.TelegramID,
			"first_name":    row.FirstName,
			"username":      row.Username,
			"premium":       row.Premium,
			"account_quota": row.AccountQuota,
			"created_at":    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// Get returns one user by chat identity, with account and group counts.
func (h *UserHandler) Get(c *gin.Context) {
	telegramID, errParse := strconv.ParseInt(c.Param("id"), 10, 64)
	if errParse != nil || telegramID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if errFind := h.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var accounts int64
	h.db.WithContext(ctx).Model(&models.Account{}).Where("owner_id = ? AND active = ?", telegramID, true).Count(&accounts)
	var groups int64
	h.db.WithContext(ctx).Model(&models.Group{}).Where("owner_id = ?", telegramID).Count(&groups)

	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID,
		"telegram_id":   user.TelegramID,
		"first_name":    user.FirstName,
		"username":      user.Username,
		"premium":       user.Premium,
		"account_quota": user.AccountQuota,
		"accounts":      accounts,
		"groups":        groups,
		"created_at":    user.CreatedAt,
	})
}
