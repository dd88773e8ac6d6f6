package app

import (
	"errors"
	"fmt"

	"github.com/cretee/creteebot/internal/models"
	"github.com/cretee/creteebot/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HasAdminInitialized reports whether at least one operator is registered.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.Admin{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// EnsureAdmin registers the bootstrap operator once. An existing account with
// the same username is left untouched; registration is an explicit startup
// step, never a side effect of a later lookup.
func EnsureAdmin(conn *gorm.DB, username, password string) error {
	if conn == nil {
		return fmt.Errorf("nil db")
	}
	if username == "" {
		log.Info("app: no admin bootstrap configured, admin api has no operators")
		return nil
	}
	if password == "" {
		return fmt.Errorf("app: admin bootstrap requires a password")
	}

	var existing models.Admin
	errFind := conn.Where("username = ?", username).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("app: look up admin: %w", errFind)
	}

	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	if errCreate := conn.Create(&models.Admin{Username: username, Password: hashed}).Error; errCreate != nil {
		return fmt.Errorf("app: create admin: %w", errCreate)
	}
	log.WithField("username", username).Info("app: bootstrap admin registered")
	return nil
}
