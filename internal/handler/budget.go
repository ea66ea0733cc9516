package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/budget"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type BudgetHandler struct {
	Budgets *budget.Service
}

func NewBudgetHandler(svc *budget.Service) *BudgetHandler {
	return &BudgetHandler{Budgets: svc}
}

type allocationReq struct {
	CategoryID      uint         `json:"category_id" binding:"required"`
	AllocatedAmount money.Amount `json:"allocated_amount"`
}

// windowDate only takes plain calendar dates; budget windows have no time of day.
func windowDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if err := util.ValidateDate(s); err != nil {
		return time.Time{}, err
	}
	return util.ParseDate(s)
}

type createBudgetReq struct {
	Name       string          `json:"name" binding:"required,max=100"`
	StartDate  string          `json:"start_date" binding:"required"`
	EndDate    string          `json:"end_date" binding:"required"`
	TotalLimit money.Amount    `json:"total_limit"`
	Categories []allocationReq `json:"categories" binding:"dive"`
}

type allocationResp struct {
	CategoryID      uint         `json:"category_id"`
	CategoryName    string       `json:"category_name"`
	AllocatedAmount money.Amount `json:"allocated_amount"`
}

type budgetResp struct {
	ID         uint             `json:"id"`
	Name       string           `json:"name"`
	StartDate  string           `json:"start_date"`
	EndDate    string           `json:"end_date"`
	TotalLimit money.Amount     `json:"total_limit"`
	IsActive   bool             `json:"is_active"`
	Categories []allocationResp `json:"categories"`
	CreatedAt  time.Time        `json:"created_at"`
}

func toBudgetResp(b *models.Budget) budgetResp {
	out := budgetResp{
		ID:         b.ID,
		Name:       b.Name,
		StartDate:  b.StartDate.UTC().Format(util.DateLayout),
		EndDate:    b.EndDate.UTC().Format(util.DateLayout),
		TotalLimit: b.TotalLimit,
		IsActive:   b.IsActive,
		Categories: make([]allocationResp, 0, len(b.Categories)),
		CreatedAt:  b.CreatedAt,
	}
	for _, bc := range b.Categories {
		out.Categories = append(out.Categories, allocationResp{
			CategoryID:      bc.CategoryID,
			CategoryName:    bc.Category.Name,
			AllocatedAmount: bc.AllocatedAmount,
		})
	}
	return out
}

type categoryProgressResp struct {
	CategoryID       uint         `json:"category_id"`
	CategoryName     string       `json:"category_name"`
	Allocated        money.Amount `json:"allocated"`
	Spent            money.Amount `json:"spent"`
	Remaining        money.Amount `json:"remaining"`
	Utilization      *float64     `json:"utilization_percentage"`
	TransactionCount int64        `json:"transaction_count"`
}

func (h *BudgetHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createBudgetReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	in := budget.Input{Name: req.Name, TotalLimit: req.TotalLimit}
	var fields []apperr.FieldError
	var err error
	if in.StartDate, err = windowDate(req.StartDate); err != nil {
		fields = append(fields, apperr.FieldError{Field: "start_date", Message: "must be YYYY-MM-DD"})
	}
	if in.EndDate, err = windowDate(req.EndDate); err != nil {
		fields = append(fields, apperr.FieldError{Field: "end_date", Message: "must be YYYY-MM-DD"})
	}
	if len(fields) > 0 {
		util.Error(c, apperr.Validation("invalid budget", fields...))
		return
	}
	for _, a := range req.Categories {
		in.Categories = append(in.Categories, budget.Allocation{CategoryID: a.CategoryID, AllocatedAmount: a.AllocatedAmount})
	}

	b, err := h.Budgets.Create(c.Request.Context(), userID, in)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Created(c, util.Response{"budget": toBudgetResp(b)})
}

func (h *BudgetHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	rows, err := h.Budgets.List(c.Request.Context(), userID, c.Query("active") == "true")
	if err != nil {
		util.Error(c, err)
		return
	}
	items := make([]budgetResp, 0, len(rows))
	for i := range rows {
		items = append(items, toBudgetResp(&rows[i]))
	}
	util.Success(c, util.Response{"items": items})
}

// Get returns the budget with per-category progress.
func (h *BudgetHandler) Get(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	p, err := h.Budgets.Get(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	cats := make([]categoryProgressResp, 0, len(p.Categories))
	for _, cp := range p.Categories {
		cats = append(cats, categoryProgressResp(cp))
	}
	util.Success(c, util.Response{
		"budget":                 toBudgetResp(&p.Budget),
		"categories":             cats,
		"total_allocated":        p.TotalAllocated,
		"total_spent":            p.TotalSpent,
		"remaining":              p.Remaining,
		"utilization_percentage": p.Utilization,
	})
}

func (h *BudgetHandler) Deactivate(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	b, err := h.Budgets.Deactivate(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"budget": toBudgetResp(b)})
}

func (h *BudgetHandler) Delete(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	if err := h.Budgets.Delete(c.Request.Context(), userID, id); err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"message": "budget deleted"})
}

type dailySpendResp struct {
	Date   string       `json:"date"`
	Amount money.Amount `json:"amount"`
	Count  int64        `json:"count"`
}

type distributionResp struct {
	CategoryID       uint         `json:"category_id"`
	CategoryName     string       `json:"category_name"`
	Allocated        money.Amount `json:"allocated"`
	Spent            money.Amount `json:"spent"`
	TransactionCount int64        `json:"transaction_count"`
}

func (h *BudgetHandler) Analytics(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	a, err := h.Budgets.Analytics(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	daily := make([]dailySpendResp, 0, len(a.Daily))
	for _, d := range a.Daily {
		daily = append(daily, dailySpendResp{Date: d.Date.Format(util.DateLayout), Amount: d.Amount, Count: d.Count})
	}
	dist := make([]distributionResp, 0, len(a.Distribution))
	for _, d := range a.Distribution {
		dist = append(dist, distributionResp(d))
	}
	util.Success(c, util.Response{"budget_id": a.BudgetID, "daily": daily, "distribution": dist})
}
