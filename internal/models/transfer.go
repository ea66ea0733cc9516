package models

import (
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// Transfer moves Amount from one account to another; FeeAmount leaves the system.
type Transfer struct {
	ID              uint         `gorm:"primaryKey"`
	FromAccountID   uint         `gorm:"index;not null"`
	ToAccountID     uint         `gorm:"index;not null"`
	Amount          money.Amount `gorm:"not null"`
	FeeAmount       money.Amount `gorm:"not null;default:0"`
	Description     string       `gorm:"size:255;not null"`
	TransferDate    time.Time    `gorm:"index;not null"`
	ReferenceNumber string       `gorm:"size:32;uniqueIndex;not null"`
	Notes           string       `gorm:"type:text"`
	CreatedAt       time.Time

	FromAccount Account `gorm:"foreignKey:FromAccountID;constraint:OnDelete:RESTRICT"`
	ToAccount   Account `gorm:"foreignKey:ToAccountID;constraint:OnDelete:RESTRICT"`
}
