package models

import "time"

// AuditLog records mutating requests made by authenticated users.
type AuditLog struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      *uint  `gorm:"index"`
	Path        string `gorm:"size:255"`
	Method      string `gorm:"size:16"`
	Status      int
	IP          string    `gorm:"size:64"`
	UserAgent   string    `gorm:"size:255"`
	MetadataEnc string    `gorm:"size:4096"` // request body summary, AES-GCM + base64
	CreatedAt   time.Time `gorm:"index"`
}
