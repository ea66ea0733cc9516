// Package budget derives spend-versus-allocation figures for budgets from the ledger.
// Nothing here is persisted besides the budget definition itself.
package budget

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Allocation assigns part of the limit to one category.
type Allocation struct {
	CategoryID      uint
	AllocatedAmount money.Amount
}

type Input struct {
	Name       string
	StartDate  time.Time
	EndDate    time.Time
	TotalLimit money.Amount
	Categories []Allocation
}

// Create checks the whole input before writing anything, then stores the budget and its
// non-zero allocations in one transaction. Overlapping budgets are allowed.
func (s *Service) Create(ctx context.Context, userID uint, in Input) (*models.Budget, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.StartDate = util.DateOnly(in.StartDate)
	in.EndDate = util.DateOnly(in.EndDate)

	var fields []apperr.FieldError
	if in.Name == "" || len(in.Name) > 100 {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "must be 1-100 characters"})
	}
	if !in.EndDate.After(in.StartDate) {
		fields = append(fields, apperr.FieldError{Field: "end_date", Message: "must be after start_date"})
	}
	if in.TotalLimit <= 0 {
		fields = append(fields, apperr.FieldError{Field: "total_limit", Message: "must be greater than 0"})
	}
	seen := make(map[uint]bool, len(in.Categories))
	var allocated money.Amount
	for _, a := range in.Categories {
		if a.AllocatedAmount < 0 {
			fields = append(fields, apperr.FieldError{Field: "categories", Message: "allocated_amount cannot be negative"})
			break
		}
		if seen[a.CategoryID] {
			fields = append(fields, apperr.FieldError{Field: "categories", Message: "category listed more than once"})
			break
		}
		seen[a.CategoryID] = true
		allocated += a.AllocatedAmount
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid budget", fields...)
	}
	if allocated > in.TotalLimit {
		return nil, apperr.Conflict("category allocations " + allocated.String() +
			" exceed the total limit " + in.TotalLimit.String())
	}

	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		var found int64
		err := s.db.WithContext(ctx).Model(&models.Category{}).
			Where("id IN ? AND (user_id IS NULL OR user_id = ?)", ids, userID).
			Count(&found).Error
		if err != nil {
			return nil, apperr.FromStore(err, "")
		}
		if int(found) != len(ids) {
			return nil, apperr.NotFound("category not found")
		}
	}

	b := models.Budget{
		UserID:     userID,
		Name:       in.Name,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		TotalLimit: in.TotalLimit,
		IsActive:   true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&b).Error; err != nil {
			return err
		}
		for _, a := range in.Categories {
			if a.AllocatedAmount == 0 {
				continue
			}
			bc := models.BudgetCategory{BudgetID: b.ID, CategoryID: a.CategoryID, AllocatedAmount: a.AllocatedAmount}
			if err := tx.Omit(clause.Associations).Create(&bc).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	s.log.Debug().Uint("user_id", userID).Uint("budget_id", b.ID).Msg("budget created")
	return s.load(ctx, userID, b.ID)
}

// List returns the user's budgets with their allocations, newest first.
func (s *Service) List(ctx context.Context, userID uint, activeOnly bool) ([]models.Budget, error) {
	q := s.db.WithContext(ctx).Preload("Categories.Category").Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []models.Budget
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return out, nil
}

func (s *Service) Deactivate(ctx context.Context, userID, id uint) (*models.Budget, error) {
	b, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Budget{}).Where("id = ?", b.ID).Update("is_active", false).Error; err != nil {
		return nil, apperr.FromStore(err, "budget not found")
	}
	b.IsActive = false
	return b, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Budget{})
		if res.Error != nil {
			return apperr.FromStore(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("budget not found")
		}
		if err := tx.Where("budget_id = ?", id).Delete(&models.BudgetCategory{}).Error; err != nil {
			return apperr.FromStore(err, "")
		}
		return nil
	})
}

func (s *Service) load(ctx context.Context, userID, id uint) (*models.Budget, error) {
	var b models.Budget
	err := s.db.WithContext(ctx).Preload("Categories", func(db *gorm.DB) *gorm.DB {
		return db.Order("category_id ASC")
	}).Preload("Categories.Category").
		Where("id = ? AND user_id = ?", id, userID).
		First(&b).Error
	if err != nil {
		return nil, apperr.FromStore(err, "budget not found")
	}
	return &b, nil
}

// categorySpend is one GROUP BY row of expense spend.
type categorySpend struct {
	CategoryID uint
	Total      money.Amount
	Count      int64
}

// spendQuery selects the owner's EXPENSE transactions in the budget's categories inside the
// inclusive [start, end] window.
func (s *Service) spendQuery(ctx context.Context, b *models.Budget) *gorm.DB {
	ids := make([]uint, 0, len(b.Categories))
	for _, c := range b.Categories {
		ids = append(ids, c.CategoryID)
	}
	return s.db.WithContext(ctx).Table("transactions").
		Joins("JOIN accounts ON accounts.id = transactions.account_id").
		Where("accounts.user_id = ?", b.UserID).
		Where("transactions.type = ?", models.TransactionExpense).
		Where("transactions.category_id IN ?", ids).
		Where("transactions.transaction_date >= ? AND transactions.transaction_date < ?",
			b.StartDate, b.EndDate.AddDate(0, 0, 1))
}

func (s *Service) spendByCategory(ctx context.Context, b *models.Budget) (map[uint]categorySpend, error) {
	out := make(map[uint]categorySpend)
	if len(b.Categories) == 0 {
		return out, nil
	}
	var rows []categorySpend
	err := s.spendQuery(ctx, b).
		Select("transactions.category_id AS category_id, SUM(transactions.amount) AS total, COUNT(*) AS count").
		Group("transactions.category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	for _, r := range rows {
		out[r.CategoryID] = r
	}
	return out, nil
}
