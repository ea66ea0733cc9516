package models

import (
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// Budget is a spending window with a total limit split across categories.
type Budget struct {
	ID         uint         `gorm:"primaryKey"`
	UserID     uint         `gorm:"index;not null"`
	Name       string       `gorm:"size:100;not null"`
	StartDate  time.Time    `gorm:"not null"`
	EndDate    time.Time    `gorm:"not null"`
	TotalLimit money.Amount `gorm:"not null"`
	IsActive   bool         `gorm:"not null;default:true;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	User       User             `gorm:"constraint:OnDelete:CASCADE"`
	Categories []BudgetCategory `gorm:"constraint:OnDelete:CASCADE"`
}

// BudgetCategory allocates part of a budget to one category.
type BudgetCategory struct {
	ID              uint         `gorm:"primaryKey"`
	BudgetID        uint         `gorm:"uniqueIndex:idx_budget_category;not null"`
	CategoryID      uint         `gorm:"uniqueIndex:idx_budget_category;not null"`
	AllocatedAmount money.Amount `gorm:"not null"`

	Category Category `gorm:"constraint:OnDelete:RESTRICT"`
}
