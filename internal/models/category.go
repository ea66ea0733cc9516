package models

import "time"

// CategoryType classifies a category and the transactions filed under it.
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

// Category is either system-global (UserID nil) or owned by one user.
type Category struct {
	ID        uint         `gorm:"primaryKey"`
	UserID    *uint        `gorm:"index"`
	Name      string       `gorm:"size:64;not null"`
	Type      CategoryType `gorm:"size:16;index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsSystem reports whether the category is shared by all users.
func (c *Category) IsSystem() bool { return c.UserID == nil }

// VisibleTo reports whether userID may file transactions under the category.
func (c *Category) VisibleTo(userID uint) bool {
	return c.UserID == nil || *c.UserID == userID
}
