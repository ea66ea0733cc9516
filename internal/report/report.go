// Package report aggregates the ledger into summaries. It only reads.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type Service struct {
	db  *gorm.DB
	log zerolog.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock pins "now" for month windows.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type Summary struct {
	TotalBalance      money.Amount
	TotalIncome       money.Amount
	TotalExpenses     money.Amount
	NetWorth          money.Amount
	AccountCount      int64
	TransactionCount  int64
	ActiveBudgetCount int64
}

type typeTotal struct {
	Type  models.TransactionType
	Total money.Amount
	Count int64
}

// Summary runs its independent aggregates concurrently on the shared pool.
func (s *Service) Summary(ctx context.Context, userID uint) (*Summary, error) {
	var out Summary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bal, n, err := s.activeBalance(gctx, userID)
		out.TotalBalance, out.AccountCount = bal, n
		return err
	})
	g.Go(func() error {
		totals, err := s.totalsByType(gctx, userID, nil, nil)
		for _, t := range totals {
			switch t.Type {
			case models.TransactionIncome:
				out.TotalIncome = t.Total
			case models.TransactionExpense:
				out.TotalExpenses = t.Total
			}
			out.TransactionCount += t.Count
		}
		return err
	})
	g.Go(func() error {
		n, err := s.activeBudgets(gctx, userID)
		out.ActiveBudgetCount = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.FromStore(err, "")
	}
	out.NetWorth = out.TotalIncome - out.TotalExpenses
	return &out, nil
}

func (s *Service) activeBalance(ctx context.Context, userID uint) (money.Amount, int64, error) {
	var row struct {
		Total money.Amount
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Select("COALESCE(SUM(current_balance), 0) AS total, COUNT(*) AS count").
		Where("user_id = ? AND is_active = ?", userID, true).
		Scan(&row).Error
	return row.Total, row.Count, err
}

func (s *Service) activeBudgets(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Budget{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&n).Error
	return n, err
}

// totalsByType sums the user's transactions per type in [from, to).
func (s *Service) totalsByType(ctx context.Context, userID uint, from, to *time.Time) ([]typeTotal, error) {
	q := s.userTransactions(ctx, userID)
	if from != nil {
		q = q.Where("transactions.transaction_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("transactions.transaction_date < ?", *to)
	}
	var rows []typeTotal
	err := q.Select("transactions.type AS type, SUM(transactions.amount) AS total, COUNT(*) AS count").
		Group("transactions.type").
		Scan(&rows).Error
	return rows, err
}

func (s *Service) userTransactions(ctx context.Context, userID uint) *gorm.DB {
	return s.db.WithContext(ctx).Table("transactions").
		Joins("JOIN accounts ON accounts.id = transactions.account_id").
		Where("accounts.user_id = ?", userID)
}

// MonthTop is the category with the highest expense total in a month.
type MonthTop struct {
	CategoryID   uint
	CategoryName string
	Amount       money.Amount
}

type Month struct {
	Month              string // YYYY-MM
	Income             money.Amount
	Expenses           money.Amount
	Net                money.Amount
	TransactionCount   int64
	AverageTransaction money.Amount
	TopCategory        *MonthTop
}

// MonthlySpending reports the last n calendar months that have activity, newest first.
// n is clamped to 1-60.
func (s *Service) MonthlySpending(ctx context.Context, userID uint, n int) ([]Month, error) {
	if n <= 0 || n > 60 {
		n = 12
	}
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)

	var rows []struct {
		TransactionDate time.Time
		Type            models.TransactionType
		Amount          money.Amount
		CategoryID      uint
		CategoryName    string
	}
	err := s.userTransactions(ctx, userID).
		Joins("JOIN categories ON categories.id = transactions.category_id").
		Select("transactions.transaction_date, transactions.type, transactions.amount, "+
			"transactions.category_id, categories.name AS category_name").
		Where("transactions.transaction_date >= ?", start).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}

	type acc struct {
		m     Month
		spend map[uint]*MonthTop
	}
	months := make(map[string]*acc)
	for _, r := range rows {
		key := r.TransactionDate.UTC().Format("2006-01")
		a, ok := months[key]
		if !ok {
			a = &acc{m: Month{Month: key}, spend: make(map[uint]*MonthTop)}
			months[key] = a
		}
		a.m.TransactionCount++
		if r.Type == models.TransactionIncome {
			a.m.Income += r.Amount
			continue
		}
		a.m.Expenses += r.Amount
		top, ok := a.spend[r.CategoryID]
		if !ok {
			top = &MonthTop{CategoryID: r.CategoryID, CategoryName: r.CategoryName}
			a.spend[r.CategoryID] = top
		}
		top.Amount += r.Amount
	}

	out := make([]Month, 0, len(months))
	for _, a := range months {
		m := a.m
		m.Net = m.Income - m.Expenses
		m.AverageTransaction = (m.Income + m.Expenses).Div(m.TransactionCount)
		m.TopCategory = topCategory(a.spend)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out, nil
}

// topCategory breaks ties by the lower category id so repeated calls agree.
func topCategory(spend map[uint]*MonthTop) *MonthTop {
	var best *MonthTop
	for _, c := range spend {
		if best == nil || c.Amount > best.Amount || (c.Amount == best.Amount && c.CategoryID < best.CategoryID) {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

type CategoryRow struct {
	CategoryID   uint
	CategoryName string
	Total        money.Amount
	Count        int64
	Average      money.Amount
	Min          money.Amount
	Max          money.Amount
	Percentage   float64
}

// CategorySpending groups one transaction type by category inside the optional inclusive
// date range. Percentages share the same filter; an empty total divides by one.
func (s *Service) CategorySpending(ctx context.Context, userID uint, typ models.TransactionType, from, to *time.Time) ([]CategoryRow, error) {
	if !typ.Valid() {
		return nil, apperr.Validation("invalid type", apperr.FieldError{Field: "type", Message: "must be INCOME or EXPENSE"})
	}
	q := s.userTransactions(ctx, userID).
		Joins("JOIN categories ON categories.id = transactions.category_id").
		Where("transactions.type = ?", typ)
	if from != nil {
		q = q.Where("transactions.transaction_date >= ?", util.DateOnly(*from))
	}
	if to != nil {
		q = q.Where("transactions.transaction_date < ?", util.DateOnly(*to).AddDate(0, 0, 1))
	}

	var rows []CategoryRow
	err := q.Select("transactions.category_id AS category_id, categories.name AS category_name, " +
		"SUM(transactions.amount) AS total, COUNT(*) AS count, " +
		"MIN(transactions.amount) AS min, MAX(transactions.amount) AS max").
		Group("transactions.category_id, categories.name").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}

	var grand money.Amount
	for _, r := range rows {
		grand += r.Total
	}
	if grand == 0 {
		grand = 1
	}
	for i := range rows {
		rows[i].Average = rows[i].Total.Div(rows[i].Count)
		rows[i].Percentage, _ = money.Percent(rows[i].Total, grand)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].CategoryID < rows[j].CategoryID
	})
	return rows, nil
}
