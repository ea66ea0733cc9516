package models

import (
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// TransactionType is the direction of a ledger row; Amount is always positive.
type TransactionType string

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionExpense TransactionType = "EXPENSE"
)

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Signed returns the balance effect of amount for this type.
func (t TransactionType) Signed(amount money.Amount) money.Amount {
	if t == TransactionExpense {
		return -amount
	}
	return amount
}

// Transaction is an immutable ledger row. ReceiptID is unique so a receipt links at most once.
type Transaction struct {
	ID              uint            `gorm:"primaryKey"`
	AccountID       uint            `gorm:"index;not null"`
	CategoryID      uint            `gorm:"index;not null"`
	Type            TransactionType `gorm:"size:16;index;not null"`
	Amount          money.Amount    `gorm:"not null"`
	Description     string          `gorm:"size:255;not null"`
	TransactionDate time.Time       `gorm:"index;not null"`
	Notes           string          `gorm:"type:text"`
	ReceiptID       *uint           `gorm:"uniqueIndex"`
	CreatedAt       time.Time

	Account  Account  `gorm:"constraint:OnDelete:CASCADE"`
	Category Category `gorm:"constraint:OnDelete:RESTRICT"`
}
