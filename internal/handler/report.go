package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/report"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type ReportHandler struct {
	Reports *report.Service
}

func NewReportHandler(svc *report.Service) *ReportHandler {
	return &ReportHandler{Reports: svc}
}

type summaryResp struct {
	TotalBalance      money.Amount `json:"total_balance"`
	TotalIncome       money.Amount `json:"total_income"`
	TotalExpenses     money.Amount `json:"total_expenses"`
	NetWorth          money.Amount `json:"net_worth"`
	AccountCount      int64        `json:"account_count"`
	TransactionCount  int64        `json:"transaction_count"`
	ActiveBudgetCount int64        `json:"active_budget_count"`
}

func (h *ReportHandler) Summary(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	s, err := h.Reports.Summary(c.Request.Context(), userID)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"summary": summaryResp(*s)})
}

type monthTopResp struct {
	CategoryID   uint         `json:"category_id"`
	CategoryName string       `json:"category_name"`
	Amount       money.Amount `json:"amount"`
}

type monthResp struct {
	Month              string        `json:"month"`
	Income             money.Amount  `json:"income"`
	Expenses           money.Amount  `json:"expenses"`
	Net                money.Amount  `json:"net"`
	TransactionCount   int64         `json:"transaction_count"`
	AverageTransaction money.Amount  `json:"average_transaction"`
	TopCategory        *monthTopResp `json:"top_category"`
}

// Monthly reads ?months (1-60, default 12).
func (h *ReportHandler) Monthly(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	n := 12
	if v := c.Query("months"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 60 {
			util.Error(c, apperr.Validation("invalid months", apperr.FieldError{Field: "months", Message: "must be between 1 and 60"}))
			return
		}
		n = parsed
	}
	months, err := h.Reports.MonthlySpending(c.Request.Context(), userID, n)
	if err != nil {
		util.Error(c, err)
		return
	}
	items := make([]monthResp, 0, len(months))
	for _, m := range months {
		r := monthResp{
			Month:              m.Month,
			Income:             m.Income,
			Expenses:           m.Expenses,
			Net:                m.Net,
			TransactionCount:   m.TransactionCount,
			AverageTransaction: m.AverageTransaction,
		}
		if m.TopCategory != nil {
			top := monthTopResp(*m.TopCategory)
			r.TopCategory = &top
		}
		items = append(items, r)
	}
	util.Success(c, util.Response{"months": items})
}

type categoryRowResp struct {
	CategoryID   uint         `json:"category_id"`
	CategoryName string       `json:"category_name"`
	Total        money.Amount `json:"total"`
	Count        int64        `json:"count"`
	Average      money.Amount `json:"average"`
	Min          money.Amount `json:"min"`
	Max          money.Amount `json:"max"`
	Percentage   float64      `json:"percentage"`
}

// Categories reads ?type (default EXPENSE), ?from and ?to.
func (h *ReportHandler) Categories(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	typ := models.TransactionExpense
	if v := c.Query("type"); v != "" {
		typ = models.TransactionType(strings.ToUpper(v))
	}
	from, err := optionalDate("from", c.Query("from"))
	if err != nil {
		util.Error(c, err)
		return
	}
	to, err := optionalDate("to", c.Query("to"))
	if err != nil {
		util.Error(c, err)
		return
	}
	rows, err := h.Reports.CategorySpending(c.Request.Context(), userID, typ, from, to)
	if err != nil {
		util.Error(c, err)
		return
	}
	items := make([]categoryRowResp, 0, len(rows))
	for _, r := range rows {
		items = append(items, categoryRowResp(r))
	}
	util.Success(c, util.Response{"type": typ, "categories": items})
}

type insightResp struct {
	Category string `json:"category"`
	Type     string `json:"type"`
	Message  string `json:"message"`
}

type bandResp struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Max    int    `json:"max"`
}

func (h *ReportHandler) Health(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	hs, err := h.Reports.HealthScore(c.Request.Context(), userID)
	if err != nil {
		util.Error(c, err)
		return
	}
	insights := make([]insightResp, 0, len(hs.Insights))
	for _, in := range hs.Insights {
		insights = append(insights, insightResp(in))
	}
	bands := make([]bandResp, 0, len(hs.Bands))
	for _, b := range hs.Bands {
		bands = append(bands, bandResp(b))
	}
	util.Success(c, util.Response{
		"score":    hs.Score,
		"level":    hs.Level,
		"bands":    bands,
		"insights": insights,
		"metrics": gin.H{
			"total_balance":    hs.Input.Balance,
			"monthly_income":   hs.Input.MonthlyIncome,
			"monthly_expenses": hs.Input.MonthlyExpenses,
			"expense_ratio":    hs.ExpenseRatio,
			"active_budgets":   hs.Input.ActiveBudgets,
			"account_count":    hs.Input.Accounts,
		},
	})
}
