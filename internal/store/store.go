// Package store persists the service's durable records. It is a plain CRUD
// layer; callers own all flow semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cretee/creteebot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound indicates the requested record does not exist. Callers must
// not confuse it with vault integrity failures.
var ErrNotFound = errors.New("store: not found")

// Store persists users, accounts, groups, and bulk run records via GORM.
type Store struct {
	db *gorm.DB
}

// New constructs a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// UpsertUser creates the user on first interaction or refreshes the display
// fields and quota on later ones.
func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if user == nil || user.TelegramID == 0 {
		return fmt.Errorf("store: missing telegram id")
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name", "username", "premium", "account_quota", "updated_at",
		}),
	}).Create(user).Error; errUpsert != nil {
		return fmt.Errorf("store: upsert user: %w", errUpsert)
	}
	return nil
}

// FindUser returns the user with the given chat identity.
func (s *Store) FindUser(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	errFind := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find user: %w", errFind)
	}
	return &user, nil
}

// CreateAccount persists a newly onboarded account.
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	if account == nil {
		return fmt.Errorf("store: account is nil")
	}
	if account.SessionEnc == "" {
		return fmt.Errorf("store: refusing to persist account without encrypted session")
	}
	account.CreatedAt = time.Now().UTC()
	account.Active = true
	if errCreate := s.db.WithContext(ctx).Create(account).Error; errCreate != nil {
		return fmt.Errorf("store: create account: %w", errCreate)
	}
	return nil
}

// FindAccount returns one account by primary key.
func (s *Store) FindAccount(ctx context.Context, id uint64) (*models.Account, error) {
	var account models.Account
	errFind := s.db.WithContext(ctx).First(&account, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find account: %w", errFind)
	}
	return &account, nil
}

// FindAccountsByOwner lists an owner's accounts, newest first.
func (s *Store) FindAccountsByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]models.Account, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rows []models.Account
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list accounts: %w", errFind)
	}
	return rows, nil
}

// CountActiveAccounts returns the owner's active account count for the
// quota guard.
func (s *Store) CountActiveAccounts(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("owner_id = ? AND active = ?", ownerID, true).
		Count(&count).Error
	if errCount != nil {
		return 0, fmt.Errorf("store: count accounts: %w", errCount)
	}
	return count, nil
}

// TouchAccount records that the account just performed remote work.
func (s *Store) TouchAccount(ctx context.Context, id uint64) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Update("last_used_at", now)
	if result.Error != nil {
		return fmt.Errorf("store: touch account: %w", result.Error)
	}
	return nil
}

// DeactivateAccount clears the active flag. Accounts are never hard-deleted.
func (s *Store) DeactivateAccount(ctx context.Context, id uint64, ownerID int64) error {
	result := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("store: deactivate account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateGroup records one successful remote creation.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group == nil {
		return fmt.Errorf("store: group is nil")
	}
	group.CreatedAt = time.Now().UTC()
	if errCreate := s.db.WithContext(ctx).Create(group).Error; errCreate != nil {
		return fmt.Errorf("store: create group: %w", errCreate)
	}
	return nil
}

// CountGroupsByOwner returns the number of groups created for an owner.
func (s *Store) CountGroupsByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.Group{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	if errCount != nil {
		return 0, fmt.Errorf("store: count groups: %w", errCount)
	}
	return count, nil
}

// CreateBulkRun records the reconciled outcome of a bulk run.
func (s *Store) CreateBulkRun(ctx context.Context, run *models.BulkRun) error {
	if run == nil {
		return fmt.Errorf("store: bulk run is nil")
	}
	if errCreate := s.db.WithContext(ctx).Create(run).Error; errCreate != nil {
		return fmt.Errorf("store: create bulk run: %w", errCreate)
	}
	return nil
}

// ListBulkRunsByOwner lists an owner's runs, newest first.
func (s *Store) ListBulkRunsByOwner(ctx context.Context, ownerID int64, limit int) ([]models.BulkRun, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.BulkRun
	if errFind := q.Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list bulk runs: %w", errFind)
	}
	return rows, nil
}

// Totals aggregates service-wide counters for the stats surfaces.
type Totals struct {
	Users    int64
	Accounts int64
	Groups   int64
}

// CountTotals returns service-wide record counts.
func (s *Store) CountTotals(ctx context.Context) (Totals, error) {
	var totals Totals
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).Count(&totals.Users).Error; errCount != nil {
		return Totals{}, fmt.Errorf("store: count users: %w", errCount)
	}
	if errCount := s.db.WithContext(ctx).Model(&models.Account{}).Count(&totals.Accounts).Error; errCount != nil {
		return Totals{}, fmt.Errorf("store: count accounts: %w", errCount)
	}
	if errCount := s.db.WithContext(ctx).Model(&models.Group{}).Count(&totals.Groups).Error; errCount != nil {
		return Totals{}, fmt.Errorf("store: count groups: %w", errCount)
	}
	return totals, nil
}
