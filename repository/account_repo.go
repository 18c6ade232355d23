package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fanzyb/roblox-mooncrest/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrConflict is returned when a write would give one Discord id to two accounts.
var ErrConflict = errors.New("platform id already linked to another account")

// SortColumn is a ledger column the leaderboard may order by.
type SortColumn string

const (
	SortByXP       SortColumn = "xp"
	SortByActivity SortColumn = "activity_count"
)

// Totals are the aggregate counters shown by /debug and /api/stats.
type Totals struct {
	Accounts      int64 `json:"accounts"`
	Linked        int64 `json:"linked"`
	XP            int64 `json:"total_xp"`
	ActivityCount int64 `json:"total_expeditions"`
}

// AccountRepository is the identity link store. Absence is reported with found=false, never as an error.
type AccountRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.LinkedAccount, bool, error)
	FindByPlatformID(ctx context.Context, platformID string) (*models.LinkedAccount, bool, error)
	Ensure(ctx context.Context, externalID, username string) (*models.LinkedAccount, bool, error)
	Upsert(ctx context.Context, acc *models.LinkedAccount) error
	LinkPlatform(ctx context.Context, externalID, platformID string) error
	ReassignPlatform(ctx context.Context, externalID, platformID string) (*models.LinkedAccount, error)
	UnlinkPlatform(ctx context.Context, externalID string) (bool, error)
	UpdateLedger(ctx context.Context, externalID string, mutate func(*models.LinkedAccount) error) (*models.LinkedAccount, error)
	Count(ctx context.Context) (int64, error)
	Page(ctx context.Context, sort SortColumn, offset, limit int) ([]models.LinkedAccount, error)
	Position(ctx context.Context, sort SortColumn, acc *models.LinkedAccount) (int64, error)
	WithAchievements(ctx context.Context) ([]models.LinkedAccount, error)
	All(ctx context.Context) ([]models.LinkedAccount, error)
	Totals(ctx context.Context) (*Totals, error)
	Ping(ctx context.Context) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) FindByExternalID(ctx context.Context, externalID string) (*models.LinkedAccount, bool, error) {
	return first(r.db.WithContext(ctx).Where("external_id = ?", externalID))
}

func (r *accountRepository) FindByPlatformID(ctx context.Context, platformID string) (*models.LinkedAccount, bool, error) {
	if platformID == "" {
		return nil, false, nil
	}
	return first(r.db.WithContext(ctx).Where("platform_id = ?", platformID))
}

func first(q *gorm.DB) (*models.LinkedAccount, bool, error) {
	var acc models.LinkedAccount
	if err := q.First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &acc, true, nil
}

// Ensure creates the record on first contact (idempotent) and refreshes the stored username on rename.
func (r *accountRepository) Ensure(ctx context.Context, externalID, username string) (*models.LinkedAccount, bool, error) {
	db := r.db.WithContext(ctx)
	fresh := models.LinkedAccount{ExternalID: externalID, ExternalUsername: username}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create account %s: %w", externalID, res.Error)
	}
	created := res.RowsAffected > 0

	acc, found, err := first(db.Where("external_id = ?", externalID))
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, fmt.Errorf("account %s vanished after create", externalID)
	}
	if username != "" && acc.ExternalUsername != username {
		if err := db.Model(&models.LinkedAccount{}).
			Where("external_id = ?", externalID).
			Update("external_username", username).Error; err != nil {
			return nil, false, fmt.Errorf("refresh username for %s: %w", externalID, err)
		}
		acc.ExternalUsername = username
	}
	return acc, created, nil
}

// Upsert creates the record or merges every field into the existing one.
// A non-null PlatformID owned by another record is rejected with ErrConflict.
func (r *accountRepository) Upsert(ctx context.Context, acc *models.LinkedAccount) error {
	acc.NormalizeAchievements()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if acc.IsLinked() {
			if err := checkOwner(tx, acc.ExternalID, *acc.PlatformID); err != nil {
				return err
			}
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"external_username", "platform_id", "xp", "activity_count", "achievements", "updated_at",
			}),
		}).Create(acc).Error
		return translate(err)
	})
}

// LinkPlatform sets the Discord id only if the record is unlinked or already linked to the same id.
func (r *accountRepository) LinkPlatform(ctx context.Context, externalID, platformID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkOwner(tx, externalID, platformID); err != nil {
			return err
		}
		res := tx.Model(&models.LinkedAccount{}).
			Where("external_id = ? AND (platform_id IS NULL OR platform_id = ?)", externalID, platformID).
			Update("platform_id", platformID)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %s is linked to someone else: %w", externalID, ErrConflict)
		}
		return nil
	})
}

// ReassignPlatform clears platformID from whichever record holds it, then sets it on externalID.
// It returns the previous owner, or nil when there was none (or it was externalID itself).
func (r *accountRepository) ReassignPlatform(ctx context.Context, externalID, platformID string) (*models.LinkedAccount, error) {
	var previous *models.LinkedAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, found, err := first(tx.Where("platform_id = ?", platformID))
		if err != nil {
			return err
		}
		if found && owner.ExternalID != externalID {
			if err := tx.Model(&models.LinkedAccount{}).
				Where("external_id = ?", owner.ExternalID).
				Update("platform_id", nil).Error; err != nil {
				return fmt.Errorf("clear previous owner %s: %w", owner.ExternalID, err)
			}
			previous = owner
		}
		res := tx.Model(&models.LinkedAccount{}).
			Where("external_id = ?", externalID).
			Update("platform_id", platformID)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %s: %w", externalID, gorm.ErrRecordNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func (r *accountRepository) UnlinkPlatform(ctx context.Context, externalID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.LinkedAccount{}).
		Where("external_id = ? AND platform_id IS NOT NULL", externalID).
		Update("platform_id", nil)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// saveLedger writes only the ledger columns so it never races link changes.
func saveLedger(db *gorm.DB, acc *models.LinkedAccount) error {
	acc.NormalizeAchievements()
	if acc.XP < 0 {
		acc.XP = 0
	}
	if acc.ActivityCount < 0 {
		acc.ActivityCount = 0
	}
	return db.Model(&models.LinkedAccount{}).
		Where("external_id = ?", acc.ExternalID).
		Select("xp", "activity_count", "achievements").
		Updates(map[string]interface{}{
			"xp":             acc.XP,
			"activity_count": acc.ActivityCount,
			"achievements":   acc.Achievements,
		}).Error
}

// UpdateLedger reads the record, lets mutate change ledger fields and writes them back in one transaction.
func (r *accountRepository) UpdateLedger(ctx context.Context, externalID string, mutate func(*models.LinkedAccount) error) (*models.LinkedAccount, error) {
	var out *models.LinkedAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, found, err := first(tx.Where("external_id = ?", externalID))
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("account %s: %w", externalID, gorm.ErrRecordNotFound)
		}
		if err := mutate(acc); err != nil {
			return err
		}
		if err := saveLedger(tx, acc); err != nil {
			return err
		}
		out = acc
		return nil
	})
	return out, err
}

func (r *accountRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.LinkedAccount{}).Count(&n).Error
	return n, err
}

func (r *accountRepository) Page(ctx context.Context, sort SortColumn, offset, limit int) ([]models.LinkedAccount, error) {
	col, err := sortColumn(sort)
	if err != nil {
		return nil, err
	}
	var rows []models.LinkedAccount
	err = r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: true}).
		Order("external_id ASC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Position returns the 1-based leaderboard position of acc under the same ordering as Page.
func (r *accountRepository) Position(ctx context.Context, sort SortColumn, acc *models.LinkedAccount) (int64, error) {
	col, err := sortColumn(sort)
	if err != nil {
		return 0, err
	}
	value := acc.XP
	if sort == SortByActivity {
		value = acc.ActivityCount
	}
	var ahead int64
	err = r.db.WithContext(ctx).Model(&models.LinkedAccount{}).
		Where(col+" > ? OR ("+col+" = ? AND external_id < ?)", value, value, acc.ExternalID).
		Count(&ahead).Error
	return ahead + 1, err
}

func sortColumn(sort SortColumn) (string, error) {
	switch sort {
	case SortByXP, SortByActivity:
		return string(sort), nil
	}
	return "", fmt.Errorf("unsupported sort column %q", sort)
}

// WithAchievements returns every record holding at least one achievement, highest XP first.
func (r *accountRepository) WithAchievements(ctx context.Context) ([]models.LinkedAccount, error) {
	var rows []models.LinkedAccount
	if err := r.db.WithContext(ctx).
		Where("achievements IS NOT NULL").
		Order("xp DESC").Order("external_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if len(row.Achievements) > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *accountRepository) All(ctx context.Context) ([]models.LinkedAccount, error) {
	var rows []models.LinkedAccount
	err := r.db.WithContext(ctx).Order("external_id ASC").Find(&rows).Error
	return rows, err
}

func (r *accountRepository) Totals(ctx context.Context) (*Totals, error) {
	var t Totals
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.LinkedAccount{}).
		Select("COUNT(*) AS accounts, COALESCE(SUM(xp), 0) AS xp, COALESCE(SUM(activity_count), 0) AS activity_count").
		Scan(&t).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.LinkedAccount{}).Where("platform_id IS NOT NULL").Count(&t.Linked).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *accountRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// checkOwner fails with ErrConflict when platformID already belongs to a record other than externalID.
func checkOwner(tx *gorm.DB, externalID, platformID string) error {
	owner, found, err := first(tx.Where("platform_id = ?", platformID))
	if err != nil {
		return err
	}
	if found && owner.ExternalID != externalID {
		return fmt.Errorf("platform id %s owned by %s: %w", platformID, owner.ExternalID, ErrConflict)
	}
	return nil
}

// translate maps unique-index violations from any of the supported drivers to ErrConflict.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%v: %w", err, ErrConflict)
	}
	msg := err.Error()
	for _, marker := range []string{"UNIQUE constraint failed", "duplicate key value", "Duplicate entry"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%v: %w", err, ErrConflict)
		}
	}
	return err
}
