package budget

import (
	"context"
	"sort"
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// CategoryProgress is spend against one allocation. Utilization is nil when nothing was
// allocated.
type CategoryProgress struct {
	CategoryID       uint
	CategoryName     string
	Allocated        money.Amount
	Spent            money.Amount
	Remaining        money.Amount
	Utilization      *float64
	TransactionCount int64
}

// Progress is a budget with its derived figures.
type Progress struct {
	Budget         models.Budget
	Categories     []CategoryProgress
	TotalAllocated money.Amount
	TotalSpent     money.Amount
	Remaining      money.Amount
	Utilization    *float64
}

// Get returns the budget and how much of each allocation has been spent.
func (s *Service) Get(ctx context.Context, userID, id uint) (*Progress, error) {
	b, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	spend, err := s.spendByCategory(ctx, b)
	if err != nil {
		return nil, err
	}

	p := &Progress{Budget: *b, Categories: make([]CategoryProgress, 0, len(b.Categories))}
	for _, bc := range b.Categories {
		sp := spend[bc.CategoryID]
		p.Categories = append(p.Categories, CategoryProgress{
			CategoryID:       bc.CategoryID,
			CategoryName:     bc.Category.Name,
			Allocated:        bc.AllocatedAmount,
			Spent:            sp.Total,
			Remaining:        bc.AllocatedAmount - sp.Total,
			Utilization:      utilization(sp.Total, bc.AllocatedAmount),
			TransactionCount: sp.Count,
		})
		p.TotalAllocated += bc.AllocatedAmount
		p.TotalSpent += sp.Total
	}
	p.Remaining = b.TotalLimit - p.TotalSpent
	p.Utilization = utilization(p.TotalSpent, b.TotalLimit)
	return p, nil
}

func utilization(spent, allocated money.Amount) *float64 {
	pct, ok := money.Percent(spent, allocated)
	if !ok {
		return nil
	}
	return &pct
}

// DailySpend is the expense total of one day inside the budget window.
type DailySpend struct {
	Date   time.Time
	Amount money.Amount
	Count  int64
}

// Distribution is one category's share of the budget's spend.
type Distribution struct {
	CategoryID       uint
	CategoryName     string
	Allocated        money.Amount
	Spent            money.Amount
	TransactionCount int64
}

type Analytics struct {
	BudgetID     uint
	Daily        []DailySpend
	Distribution []Distribution
}

// Analytics returns the day-by-day trend, oldest first, and the per-category distribution
// sorted by spend descending with ties broken by category id.
func (s *Service) Analytics(ctx context.Context, userID, id uint) (*Analytics, error) {
	b, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	out := &Analytics{BudgetID: b.ID, Daily: []DailySpend{}, Distribution: []Distribution{}}
	if len(b.Categories) == 0 {
		return out, nil
	}

	// grouped in Go: the stored date representation differs between drivers
	var rows []struct {
		TransactionDate time.Time
		Amount          money.Amount
	}
	err = s.spendQuery(ctx, b).
		Select("transactions.transaction_date, transactions.amount").
		Order("transactions.transaction_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	for _, r := range rows {
		day := util.DateOnly(r.TransactionDate.UTC())
		if n := len(out.Daily); n > 0 && out.Daily[n-1].Date.Equal(day) {
			out.Daily[n-1].Amount += r.Amount
			out.Daily[n-1].Count++
			continue
		}
		out.Daily = append(out.Daily, DailySpend{Date: day, Amount: r.Amount, Count: 1})
	}

	spend, err := s.spendByCategory(ctx, b)
	if err != nil {
		return nil, err
	}
	for _, bc := range b.Categories {
		sp := spend[bc.CategoryID]
		out.Distribution = append(out.Distribution, Distribution{
			CategoryID:       bc.CategoryID,
			CategoryName:     bc.Category.Name,
			Allocated:        bc.AllocatedAmount,
			Spent:            sp.Total,
			TransactionCount: sp.Count,
		})
	}
	sort.SliceStable(out.Distribution, func(i, j int) bool {
		x, y := out.Distribution[i], out.Distribution[j]
		if x.Spent != y.Spent {
			return x.Spent > y.Spent
		}
		return x.CategoryID < y.CategoryID
	})
	return out, nil
}
