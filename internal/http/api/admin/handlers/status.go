package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cretee/creteebot/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const statusPageTemplate = `<!DOCTYPE html>
<html>
<head>
<title>creteebot</title>
<style>
body { font-family: sans-serif; padding: 40px; background: #f5f5f5; }
.card { max-width: 640px; margin: 0 auto; background: #fff; padding: 24px; border-radius: 8px; }
.ok { background: #d4edda; color: #155724; padding: 12px; border-radius: 4px; }
</style>
</head>
<body>
<div class="card">
<h1>creteebot</h1>
<div class="ok">
<p>Service is running</p>
<p>Accounts stored: %d</p>
<p>Users: %d</p>
<p>Groups created: %d</p>
</div>
<p>Updated: %s</p>
</div>
</body>
</html>
`

const statusDegradedTemplate = `<!DOCTYPE html>
<html>
<head><title>creteebot</title></head>
<body>
<h1>creteebot</h1>
<p>Service is running</p>
<p>Database statistics temporarily unavailable</p>
<p>Updated: %s</p>
</body>
</html>
`

// StatusHandler renders the public HTML status page.
type StatusHandler struct {
	db *gorm.DB
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(db *gorm.DB) *StatusHandler {
	return &StatusHandler{db: db}
}

// Root renders service totals as HTML. A broken database degrades the page,
// not the response code; liveness stays with /healthz.
func (h *StatusHandler) Root(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC().Format(time.RFC1123)

	var accounts, users, groups int64
	errAccounts := h.db.WithContext(ctx).Model(&models.Account{}).Count(&accounts).Error
	errUsers := h.db.WithContext(ctx).Model(&models.User{}).Count(&users).Error
	errGroups := h.db.WithContext(ctx).Model(&models.Group{}).Count(&groups).Error
	if errAccounts != nil || errUsers != nil || errGroups != nil {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(statusDegradedTemplate, now)))
		return
	}

	body := fmt.Sprintf(statusPageTemplate, accounts, users, groups, now)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}
