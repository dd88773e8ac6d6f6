package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cretee/creteebot/internal/config"
	"github.com/cretee/creteebot/internal/db"
	"github.com/cretee/creteebot/internal/models"
	"github.com/cretee/creteebot/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open(filepath.Join(t.TempDir(), "admin_test.db"))
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	hashed, errHash := security.HashPassword("secret-pw")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if errCreate := conn.Create(&models.Admin{Username: "root", Password: hashed}).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}

	r := gin.New()
	RegisterAdminRoutes(r, conn, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	return r, conn
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStatusPage(t *testing.T) {
	r, conn := newTestRouter(t)

	if errCreate := conn.Create(&models.Account{OwnerID: 7, Phone: "+15550001", SessionEnc: "aa:bb:cc", Active: true}).Error; errCreate != nil {
		t.Fatalf("seed account: %v", errCreate)
	}

	w := doJSON(t, r, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "Accounts stored: 1") {
		t.Fatalf("status page missing account count: %s", body)
	}
}

func TestDeactivateAccount(t *testing.T) {
	r, conn := newTestRouter(t)

	account := models.Account{OwnerID: 7, Phone: "+15550002", SessionEnc: "aa:bb:cc", Active: true}
	if errCreate := conn.Create(&account).Error; errCreate != nil {
		t.Fatalf("seed account: %v", errCreate)
	}

	w := doJSON(t, r, http.MethodPost, "/v0/admin/login", "", gin.H{"username": "root", "password": "secret-pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d", w.Code)
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &loginResp); errDecode != nil || loginResp.Token == "" {
		t.Fatalf("no token: %s", w.Body.String())
	}

	path := fmt.Sprintf("/v0/admin/accounts/%d/deactivate", account.ID)
	if w = doJSON(t, r, http.MethodPost, path, "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	if w = doJSON(t, r, http.MethodPost, path, loginResp.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("deactivate failed: %d %s", w.Code, w.Body.String())
	}
	var stored models.Account
	if errFind := conn.First(&stored, account.ID).Error; errFind != nil {
		t.Fatalf("reload account: %v", errFind)
	}
	if stored.Active {
		t.Fatal("expected account to be inactive")
	}

	// Repeating the call finds nothing active.
	if w = doJSON(t, r, http.MethodPost, path, loginResp.Token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second deactivate, got %d", w.Code)
	}
}

func TestLoginAndAuthedAccess(t *testing.T) {
	r, conn := newTestRouter(t)

	// Wrong password is rejected.
	w := doJSON(t, r, http.MethodPost, "/v0/admin/login", "", gin.H{"username": "root", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v0/admin/login", "", gin.H{"username": "root", "password": "secret-pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &loginResp); errDecode != nil || loginResp.Token == "" {
		t.Fatalf("no token in response: %s", w.Body.String())
	}

	// Listings require the token.
	if w = doJSON(t, r, http.MethodGet, "/v0/admin/stats", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w = doJSON(t, r, http.MethodGet, "/v0/admin/stats", "bogus", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bogus token, got %d", w.Code)
	}

	if errCreate := conn.Create(&models.User{TelegramID: 42, FirstName: "Alice"}).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/stats", loginResp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats failed: %d %s", w.Code, w.Body.String())
	}
	var stats map[string]int64
	if errDecode := json.Unmarshal(w.Body.Bytes(), &stats); errDecode != nil {
		t.Fatalf("decode stats: %v", errDecode)
	}
	if stats["users"] != 1 {
		t.Fatalf("expected 1 user in stats, got %d", stats["users"])
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/users?page=1&limit=10", loginResp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list users failed: %d %s", w.Code, w.Body.String())
	}
}

func TestLoginWithTOTP(t *testing.T) {
	r, conn := newTestRouter(t)

	secret, _, errGenerate := security.GenerateTOTPSecret("creteebot", "mfa")
	if errGenerate != nil {
		t.Fatalf("generate totp: %v", errGenerate)
	}
	hashed, _ := security.HashPassword("pw")
	if errCreate := conn.Create(&models.Admin{Username: "mfa", Password: hashed, TOTPSecret: secret}).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}

	w := doJSON(t, r, http.MethodPost, "/v0/admin/login", "", gin.H{"username": "mfa", "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		TOTPRequired bool   `json:"totp_required"`
		Token        string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if !resp.TOTPRequired || resp.Token != "" {
		t.Fatalf("expected totp challenge without token, got %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/v0/admin/login", "", gin.H{"username": "mfa", "password": "pw", "totp_code": "000000"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong code, got %d", w.Code)
	}
}
