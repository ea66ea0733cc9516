package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// TransactionHandler serves ledger entries (INCOME / EXPENSE rows).
type TransactionHandler struct {
	Engine   *ledger.Engine
	PageSize int
}

func NewTransactionHandler(engine *ledger.Engine, pageSize int) *TransactionHandler {
	return &TransactionHandler{Engine: engine, PageSize: pageSize}
}

type createTransactionReq struct {
	AccountID   uint         `json:"account_id" binding:"required"`
	CategoryID  uint         `json:"category_id" binding:"required"`
	Type        string       `json:"type" binding:"omitempty,oneof=INCOME EXPENSE income expense"`
	Amount      money.Amount `json:"amount"`
	Description string       `json:"description" binding:"max=255"`
	Date        string       `json:"date"`
	Notes       string       `json:"notes" binding:"max=2000"`
	ReceiptID   *uint        `json:"receipt_id"`
}

type entryResp struct {
	ID           uint         `json:"id"`
	AccountID    uint         `json:"account_id"`
	CategoryID   uint         `json:"category_id"`
	CategoryName string       `json:"category_name,omitempty"`
	Type         string       `json:"type"`
	Amount       money.Amount `json:"amount"`
	Description  string       `json:"description"`
	Date         string       `json:"date"`
	Notes        string       `json:"notes,omitempty"`
	ReceiptID    *uint        `json:"receipt_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func toEntryResp(t *models.Transaction) entryResp {
	return entryResp{
		ID:           t.ID,
		AccountID:    t.AccountID,
		CategoryID:   t.CategoryID,
		CategoryName: t.Category.Name,
		Type:         string(t.Type),
		Amount:       t.Amount,
		Description:  t.Description,
		Date:         t.TransactionDate.UTC().Format(util.DateLayout),
		Notes:        t.Notes,
		ReceiptID:    t.ReceiptID,
		CreatedAt:    t.CreatedAt,
	}
}

// signedInput turns the request into the engine's positive-amount form. Without a type the
// sign of the amount decides: negative is an EXPENSE. With a type the amount must be
// positive.
func signedInput(typ string, amount money.Amount) (models.TransactionType, money.Amount, error) {
	if typ == "" {
		if amount < 0 {
			return models.TransactionExpense, amount.Abs(), nil
		}
		return models.TransactionIncome, amount, nil
	}
	if amount < 0 {
		return "", 0, apperr.Validation("invalid transaction",
			apperr.FieldError{Field: "amount", Message: "must be positive when type is given"})
	}
	return models.TransactionType(strings.ToUpper(typ)), amount, nil
}

func (h *TransactionHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createTransactionReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	typ, amount, err := signedInput(req.Type, req.Amount)
	if err != nil {
		util.Error(c, err)
		return
	}
	in := ledger.TransactionInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Type:        typ,
		Amount:      amount,
		Description: req.Description,
		Notes:       req.Notes,
		ReceiptID:   req.ReceiptID,
	}
	if in.Date, err = optionalLocalDate("date", req.Date); err != nil {
		util.Error(c, err)
		return
	}

	tx, err := h.Engine.CreateTransaction(c.Request.Context(), userID, in)
	if err != nil {
		util.Error(c, err)
		return
	}
	acct, err := h.Engine.Accounts().Get(c.Request.Context(), userID, tx.AccountID)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Created(c, util.Response{
		"transaction":     toEntryResp(tx),
		"account_balance": acct.CurrentBalance,
	})
}

func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	f, err := transactionFilter(c, h.PageSize)
	if err != nil {
		util.Error(c, err)
		return
	}
	rows, total, err := h.Engine.ListTransactions(c.Request.Context(), userID, f)
	if err != nil {
		util.Error(c, err)
		return
	}
	items := make([]entryResp, 0, len(rows))
	for i := range rows {
		items = append(items, toEntryResp(&rows[i]))
	}
	util.Success(c, util.Response{
		"items": items,
		"total": total,
		"page":  f.Page,
		"size":  f.PageSize,
	})
}

func (h *TransactionHandler) Get(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	tx, err := h.Engine.GetTransaction(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"transaction": toEntryResp(tx)})
}

// transactionFilter reads account_id, category_id, type, from, to and paging.
func transactionFilter(c *gin.Context, defaultSize int) (ledger.TransactionFilter, error) {
	var f ledger.TransactionFilter
	f.Page, f.PageSize = util.Pagination(c, defaultSize)
	var fields []apperr.FieldError
	for _, p := range []struct {
		name string
		dst  *uint
	}{{"account_id", &f.AccountID}, {"category_id", &f.CategoryID}} {
		if v := c.Query(p.name); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil || n == 0 {
				fields = append(fields, apperr.FieldError{Field: p.name, Message: "must be a positive integer"})
				continue
			}
			*p.dst = uint(n)
		}
	}
	if t := strings.ToUpper(c.Query("type")); t != "" {
		f.Type = models.TransactionType(t)
		if !f.Type.Valid() {
			fields = append(fields, apperr.FieldError{Field: "type", Message: "must be INCOME or EXPENSE"})
		}
	}
	var err error
	if f.From, err = optionalDate("from", c.Query("from")); err != nil {
		return f, err
	}
	if f.To, err = optionalDate("to", c.Query("to")); err != nil {
		return f, err
	}
	if len(fields) > 0 {
		return f, apperr.Validation("invalid filter", fields...)
	}
	return f, nil
}

// optionalLocalDate parses the date of a new ledger row, keeping the client's offset.
func optionalLocalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := util.ParseLocalDate(s)
	if err != nil {
		return nil, apperr.Validation("invalid date", apperr.FieldError{Field: field, Message: "must be YYYY-MM-DD"})
	}
	return &d, nil
}

func optionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := util.ParseDate(s)
	if err != nil {
		return nil, apperr.Validation("invalid date", apperr.FieldError{Field: field, Message: "must be YYYY-MM-DD"})
	}
	return &d, nil
}
