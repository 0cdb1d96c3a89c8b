package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/IlyasAtabaev731/family-finance/internal/storage"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Address   string `gorm:"not null"`
	Phone     *string
	CreatedAt time.Time `gorm:"not null"`

	Ledger ledgerRow `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (userRow) TableName() string { return "users" }

type ledgerRow struct {
	UserID      int64     `gorm:"primaryKey;autoIncrement:false"`
	LastEntryID int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null"`

	Entries []entryRow `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE"`
}

func (ledgerRow) TableName() string { return "ledgers" }

// Amounts are stored as text so that no precision is lost to REAL affinity.
type entryRow struct {
	UserID    int64           `gorm:"primaryKey;autoIncrement:false"`
	EntryID   int64           `gorm:"primaryKey;autoIncrement:false"`
	Kind      string          `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:text;not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (entryRow) TableName() string { return "ledger_entries" }

type Storage struct {
	db *gorm.DB
}

// New opens (creating if needed) the database file at path and migrates the schema.
func New(path string, logMode bool) (*Storage, error) {
	const op = "storage.sqlite.New"

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%s: create db dir: %w", op, err)
		}
	}

	gormLogger := logger.Default
	if !logMode {
		gormLogger = gormLogger.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: open database: %w", op, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s: get sql db: %w", op, err)
	}

	// one session, one writer
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%s: enable wal: %w", op, err)
	}

	if err := db.AutoMigrate(&userRow{}, &ledgerRow{}, &entryRow{}); err != nil {
		return nil, fmt.Errorf("%s: auto migrate: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Stop() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Storage) SaveUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.sqlite.SaveUser"

	row := userRow{
		Name:      user.Name,
		Address:   user.Address,
		Phone:     nullable(user.Phone),
		CreatedAt: user.CreatedAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Ledger").Create(&row).Error; err != nil {
			return err
		}
		return tx.Create(&ledgerRow{UserID: row.ID, CreatedAt: user.CreatedAt}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return row.ID, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.sqlite.ListUsers"

	var rows []userRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.model())
	}
	return users, nil
}

func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.sqlite.GetUser"

	var row userRow
	err := s.db.WithContext(ctx).First(&row, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := row.model()
	return &user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, user models.User) error {
	const op = "storage.sqlite.UpdateUser"

	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", user.ID).Updates(map[string]any{
		"name":    user.Name,
		"address": user.Address,
		"phone":   nullable(user.Phone),
	})
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, userID int64) error {
	const op = "storage.sqlite.DeleteUser"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&entryRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&ledgerRow{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&userRow{}, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) AppendEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, decimal.Decimal, error) {
	const op = "storage.sqlite.AppendEntry"

	var balance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ledgerRow{}).Where("user_id = ?", entry.UserID).
			UpdateColumn("last_entry_id", gorm.Expr("last_entry_id + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}

		var ledger ledgerRow
		if err := tx.First(&ledger, "user_id = ?", entry.UserID).Error; err != nil {
			return err
		}
		entry.ID = ledger.LastEntryID

		current, err := sumEntries(tx, entry.UserID)
		if err != nil {
			return err
		}

		balance = current.Add(entry.Amount)
		if balance.IsNegative() {
			return storage.ErrInsufficientFunds
		}

		return tx.Create(&entryRow{
			UserID:    entry.UserID,
			EntryID:   entry.ID,
			Kind:      string(entry.Kind),
			Amount:    entry.Amount,
			CreatedAt: entry.CreatedAt,
		}).Error
	})
	if err != nil {
		return models.LedgerEntry{}, decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return entry, balance, nil
}

func (s *Storage) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	const op = "storage.sqlite.Balance"

	db := s.db.WithContext(ctx)
	if err := ledgerExists(db, userID); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	balance, err := sumEntries(db, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return balance, nil
}

func (s *Storage) Entries(ctx context.Context, userID int64) ([]models.LedgerEntry, error) {
	const op = "storage.sqlite.Entries"

	db := s.db.WithContext(ctx)
	if err := ledgerExists(db, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rows []entryRow
	if err := db.Where("user_id = ?", userID).Order("entry_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries := make([]models.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		kind, err := models.ParseEntryKind(row.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, models.LedgerEntry{
			ID:        row.EntryID,
			UserID:    row.UserID,
			Kind:      kind,
			Amount:    row.Amount,
			CreatedAt: row.CreatedAt,
		})
	}

	return entries, nil
}

func ledgerExists(db *gorm.DB, userID int64) error {
	var count int64
	if err := db.Model(&ledgerRow{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// sumEntries adds the amounts in Go; SQLite's SUM would go through floats.
func sumEntries(db *gorm.DB, userID int64) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := db.Model(&entryRow{}).Where("user_id = ?", userID).Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

func (r userRow) model() models.User {
	user := models.User{
		ID:        r.ID,
		Name:      r.Name,
		Address:   r.Address,
		CreatedAt: r.CreatedAt,
	}
	if r.Phone != nil {
		user.Phone = *r.Phone
	}
	return user
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
