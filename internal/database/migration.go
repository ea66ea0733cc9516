package database

import (
	"errors"
	"fmt"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models and seeds reference data.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.AccountType{},
		&models.Account{},
		&models.Category{},
		&models.Receipt{},
		&models.Transaction{},
		&models.Transfer{},
		&models.Budget{},
		&models.BudgetCategory{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := Seed(db); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

// OpeningBalanceCategory is the system income category used for opening balances.
const OpeningBalanceCategory = "Opening Balance"

var defaultAccountTypes = []models.AccountType{
	{Code: "checking", Name: "Checking", AllowsNegativeBalance: false, IsAsset: true},
	{Code: "savings", Name: "Savings", AllowsNegativeBalance: false, IsAsset: true},
	{Code: "cash", Name: "Cash", AllowsNegativeBalance: false, IsAsset: true},
	{Code: "investment", Name: "Investment", AllowsNegativeBalance: false, IsAsset: true},
	{Code: "credit_card", Name: "Credit Card", AllowsNegativeBalance: true, IsAsset: false},
	{Code: "loan", Name: "Loan", AllowsNegativeBalance: true, IsAsset: false},
}

var defaultCategories = []models.Category{
	{Name: "Salary", Type: models.CategoryIncome},
	{Name: "Freelance", Type: models.CategoryIncome},
	{Name: "Investments", Type: models.CategoryIncome},
	{Name: OpeningBalanceCategory, Type: models.CategoryIncome},
	{Name: "Other Income", Type: models.CategoryIncome},
	{Name: "Food & Dining", Type: models.CategoryExpense},
	{Name: "Groceries", Type: models.CategoryExpense},
	{Name: "Transportation", Type: models.CategoryExpense},
	{Name: "Shopping", Type: models.CategoryExpense},
	{Name: "Utilities", Type: models.CategoryExpense},
	{Name: "Housing", Type: models.CategoryExpense},
	{Name: "Entertainment", Type: models.CategoryExpense},
	{Name: "Healthcare", Type: models.CategoryExpense},
	{Name: "Other Expense", Type: models.CategoryExpense},
}

// Seed inserts account types and system categories that are missing. It is idempotent.
func Seed(db *gorm.DB) error {
	for _, at := range defaultAccountTypes {
		at := at
		var existing models.AccountType
		err := db.Where("code = ?", at.Code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&at).Error; err != nil {
				return fmt.Errorf("create account type %s: %w", at.Code, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("query account type %s: %w", at.Code, err)
		}
	}

	for _, c := range defaultCategories {
		c := c
		var count int64
		if err := db.Model(&models.Category{}).
			Where("user_id IS NULL AND name = ? AND type = ?", c.Name, c.Type).
			Count(&count).Error; err != nil {
			return fmt.Errorf("query category %s: %w", c.Name, err)
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&c).Error; err != nil {
			return fmt.Errorf("create category %s: %w", c.Name, err)
		}
	}
	return nil
}
