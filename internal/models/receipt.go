package models

import (
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// Receipt is the result of one extraction; TransactionCreated mirrors the unique link on
// transactions.receipt_id.
type Receipt struct {
	ID                  uint         `gorm:"primaryKey"`
	UserID              uint         `gorm:"index;not null"`
	MerchantName        string       `gorm:"size:255"`
	Amount              money.Amount `gorm:"not null;default:0"`
	ReceiptDate         *time.Time
	SuggestedCategory   string  `gorm:"size:64"`
	SuggestedCategoryID *uint   `gorm:"index"`
	Confidence          float64 `gorm:"not null;default:0"`
	ImageKey            string  `gorm:"size:255;not null"`
	RawDataEnc          string  `gorm:"type:text"` // extraction payload, AES-GCM + base64
	TransactionCreated  bool    `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
