package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// Insight tones.
const (
	InsightPositive = "positive"
	InsightNeutral  = "neutral"
	InsightWarning  = "warning"
	InsightNegative = "negative"
)

// Health levels.
const (
	LevelExcellent        = "Excellent"
	LevelGood             = "Good"
	LevelFair             = "Fair"
	LevelNeedsImprovement = "Needs Improvement"
)

// HealthInput is everything the score depends on.
type HealthInput struct {
	Balance         money.Amount
	MonthlyIncome   money.Amount
	MonthlyExpenses money.Amount
	ActiveBudgets   int64
	Accounts        int64
}

type Insight struct {
	Category string
	Type     string
	Message  string
}

// Band is the points one factor contributed.
type Band struct {
	Name   string
	Points int
	Max    int
}

type Health struct {
	Score    int
	Level    string
	Bands    []Band
	Insights []Insight
	Input    HealthInput
	// ExpenseRatio is nil when there was no income this month.
	ExpenseRatio *float64
}

var (
	balanceStrong  = money.FromCents(1_000_000) // 10000.00
	balanceHealthy = money.FromCents(500_000)
	balanceLow     = money.FromCents(100_000)

	ratioGreat = decimal.RequireFromString("0.5")
	ratioGood  = decimal.RequireFromString("0.7")
	ratioFair  = decimal.RequireFromString("0.9")
)

// ScoreHealth scores four independent bands worth 30, 30, 20 and 20 points.
func ScoreHealth(in HealthInput) Health {
	h := Health{Input: in}

	// balance
	var pts int
	var ins Insight
	switch {
	case in.Balance > balanceStrong:
		pts, ins = 30, Insight{"balance", InsightPositive, "Strong balance across your accounts"}
	case in.Balance > balanceHealthy:
		pts, ins = 20, Insight{"balance", InsightPositive, "Healthy balance, keep building your reserves"}
	case in.Balance > balanceLow:
		pts, ins = 10, Insight{"balance", InsightNeutral, "Consider building a larger emergency fund"}
	default:
		pts, ins = 0, Insight{"balance", InsightWarning, "Low balance, aim to build an emergency fund"}
	}
	h.add("balance", pts, 30, ins)

	// expense ratio, only when there is income to compare against
	pts = 0
	if ratio, ok := money.Ratio(in.MonthlyExpenses, in.MonthlyIncome); ok && in.MonthlyIncome > 0 {
		f, _ := ratio.Round(4).Float64()
		h.ExpenseRatio = &f
		switch {
		case ratio.LessThan(ratioGreat):
			pts, ins = 30, Insight{"spending", InsightPositive, "You spend less than half of your income"}
		case ratio.LessThan(ratioGood):
			pts, ins = 20, Insight{"spending", InsightPositive, "Spending is under control"}
		case ratio.LessThan(ratioFair):
			pts, ins = 10, Insight{"spending", InsightWarning, "Spending is close to your income"}
		default:
			pts, ins = 0, Insight{"spending", InsightNegative, "Expenses exceed 90% of your income"}
		}
	} else {
		ins = Insight{"spending", InsightNeutral, "No income recorded this month"}
	}
	h.add("expense_ratio", pts, 30, ins)

	if in.ActiveBudgets >= 1 {
		pts, ins = 20, Insight{"budgeting", InsightPositive, "You have an active budget"}
	} else {
		pts, ins = 0, Insight{"budgeting", InsightWarning, "Create a budget to track your spending"}
	}
	h.add("budgets", pts, 20, ins)

	switch {
	case in.Accounts >= 3:
		pts, ins = 20, Insight{"accounts", InsightPositive, "Your money is well diversified across accounts"}
	case in.Accounts >= 2:
		pts, ins = 10, Insight{"accounts", InsightNeutral, "Consider opening a savings account"}
	default:
		pts, ins = 0, Insight{"accounts", InsightWarning, "Add more accounts to separate spending and saving"}
	}
	h.add("accounts", pts, 20, ins)

	switch {
	case h.Score >= 80:
		h.Level = LevelExcellent
	case h.Score >= 60:
		h.Level = LevelGood
	case h.Score >= 40:
		h.Level = LevelFair
	default:
		h.Level = LevelNeedsImprovement
	}
	return h
}

func (h *Health) add(name string, points, outOf int, ins Insight) {
	h.Score += points
	h.Bands = append(h.Bands, Band{Name: name, Points: points, Max: outOf})
	h.Insights = append(h.Insights, ins)
}

// HealthScore gathers the inputs for the current calendar month and scores them.
func (s *Service) HealthScore(ctx context.Context, userID uint) (*Health, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var in HealthInput
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bal, n, err := s.activeBalance(gctx, userID)
		in.Balance, in.Accounts = bal, n
		return err
	})
	g.Go(func() error {
		totals, err := s.totalsByType(gctx, userID, &monthStart, &monthEnd)
		for _, t := range totals {
			switch t.Type {
			case models.TransactionIncome:
				in.MonthlyIncome = t.Total
			case models.TransactionExpense:
				in.MonthlyExpenses = t.Total
			}
		}
		return err
	})
	g.Go(func() error {
		n, err := s.activeBudgets(gctx, userID)
		in.ActiveBudgets = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.FromStore(err, "")
	}
	h := ScoreHealth(in)
	return &h, nil
}
