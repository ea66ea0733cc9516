package models

import (
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// AccountType carries the balance rules shared by all accounts of that kind.
type AccountType struct {
	ID                    uint   `gorm:"primaryKey"`
	Code                  string `gorm:"size:32;uniqueIndex;not null"`
	Name                  string `gorm:"size:64;not null"`
	AllowsNegativeBalance bool   `gorm:"not null;default:false"`
	IsAsset               bool   `gorm:"not null"`
}

// Account is a user-owned balance holder. CurrentBalance is written only by the ledger.
type Account struct {
	ID             uint         `gorm:"primaryKey"`
	UserID         uint         `gorm:"index;not null"`
	AccountTypeID  uint         `gorm:"index;not null"`
	Name           string       `gorm:"size:100;not null"`
	CurrentBalance money.Amount `gorm:"not null;default:0"`
	IsActive       bool         `gorm:"not null;default:true;index"`
	CreatedAt      time.Time    `gorm:"index"`
	UpdatedAt      time.Time

	User        User        `gorm:"constraint:OnDelete:CASCADE"`
	AccountType AccountType `gorm:"constraint:OnDelete:RESTRICT"`
}
