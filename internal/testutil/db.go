// Package testutil gives each test its own migrated database and a few fixtures.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/config"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/database"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// NewDB opens a fresh sqlite database under t.TempDir and migrates it.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
		BusyTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("init test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// CreateUser inserts an active user.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		FirstName:    username,
		IsActive:     true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// AccountType looks up a seeded account type by code.
func AccountType(t testing.TB, db *gorm.DB, code string) *models.AccountType {
	t.Helper()
	var at models.AccountType
	if err := db.Where("code = ?", code).First(&at).Error; err != nil {
		t.Fatalf("account type %s: %v", code, err)
	}
	return &at
}

// CreateAccount inserts an empty active account. createdAt orders recipient resolution.
func CreateAccount(t testing.TB, db *gorm.DB, userID uint, typeCode, name string, createdAt time.Time) *models.Account {
	t.Helper()
	a := &models.Account{
		UserID:        userID,
		AccountTypeID: AccountType(t, db, typeCode).ID,
		Name:          name,
		IsActive:      true,
		CreatedAt:     createdAt,
	}
	if err := db.Omit("User", "AccountType").Create(a).Error; err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return a
}

// SystemCategory looks up a seeded system category by name.
func SystemCategory(t testing.TB, db *gorm.DB, name string) *models.Category {
	t.Helper()
	var c models.Category
	if err := db.Where("user_id IS NULL AND name = ?", name).First(&c).Error; err != nil {
		t.Fatalf("category %s: %v", name, err)
	}
	return &c
}

// Fund records an income row and the matching balance change, the same two writes the
// ledger performs, so fixtures keep balance == sum of history.
func Fund(t testing.TB, db *gorm.DB, accountID uint, amount money.Amount, on time.Time) {
	t.Helper()
	cat := SystemCategory(t, db, "Salary")
	err := db.Transaction(func(tx *gorm.DB) error {
		row := &models.Transaction{
			AccountID:       accountID,
			CategoryID:      cat.ID,
			Type:            models.TransactionIncome,
			Amount:          amount,
			Description:     fmt.Sprintf("fixture deposit %s", amount),
			TransactionDate: on,
		}
		if err := tx.Omit("Account", "Category").Create(row).Error; err != nil {
			return err
		}
		return tx.Model(&models.Account{}).Where("id = ?", accountID).
			Update("current_balance", gorm.Expr("current_balance + ?", int64(amount))).Error
	})
	if err != nil {
		t.Fatalf("fund account %d: %v", accountID, err)
	}
}

// Balance re-reads an account's persisted balance.
func Balance(t testing.TB, db *gorm.DB, accountID uint) money.Amount {
	t.Helper()
	var a models.Account
	if err := db.Select("current_balance").First(&a, accountID).Error; err != nil {
		t.Fatalf("read balance %d: %v", accountID, err)
	}
	return a.CurrentBalance
}

// Date builds a UTC midnight date.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
