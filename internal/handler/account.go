package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type AccountHandler struct {
	Engine *ledger.Engine
}

func NewAccountHandler(engine *ledger.Engine) *AccountHandler {
	return &AccountHandler{Engine: engine}
}

type accountTypeResp struct {
	ID                    uint   `json:"id"`
	Code                  string `json:"code"`
	Name                  string `json:"name"`
	AllowsNegativeBalance bool   `json:"allows_negative_balance"`
	IsAsset               bool   `json:"is_asset"`
}

func toAccountTypeResp(t *models.AccountType) accountTypeResp {
	return accountTypeResp{
		ID:                    t.ID,
		Code:                  t.Code,
		Name:                  t.Name,
		AllowsNegativeBalance: t.AllowsNegativeBalance,
		IsAsset:               t.IsAsset,
	}
}

type accountResp struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	AccountType    accountTypeResp `json:"account_type"`
	CurrentBalance money.Amount    `json:"current_balance"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toAccountResp(a *models.Account) accountResp {
	return accountResp{
		ID:             a.ID,
		Name:           a.Name,
		AccountType:    toAccountTypeResp(&a.AccountType),
		CurrentBalance: a.CurrentBalance,
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
	}
}

func (h *AccountHandler) ListTypes(c *gin.Context) {
	types, err := h.Engine.Accounts().ListTypes(c.Request.Context())
	if err != nil {
		util.Error(c, err)
		return
	}
	items := make([]accountTypeResp, 0, len(types))
	for i := range types {
		items = append(items, toAccountTypeResp(&types[i]))
	}
	util.Success(c, util.Response{"items": items})
}

func (h *AccountHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	accounts, err := h.Engine.Accounts().ListForUser(c.Request.Context(), userID, c.Query("active") == "true")
	if err != nil {
		util.Error(c, err)
		return
	}
	items := make([]accountResp, 0, len(accounts))
	var total money.Amount
	for i := range accounts {
		items = append(items, toAccountResp(&accounts[i]))
		if accounts[i].IsActive {
			total += accounts[i].CurrentBalance
		}
	}
	util.Success(c, util.Response{"items": items, "total_balance": total})
}

type createAccountReq struct {
	Name           string       `json:"name" binding:"required,max=100"`
	AccountType    string       `json:"account_type" binding:"required"`
	OpeningBalance money.Amount `json:"opening_balance"`
}

func (h *AccountHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createAccountReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	acct, err := h.Engine.OpenAccount(c.Request.Context(), userID, ledger.AccountInput{
		Name:           req.Name,
		TypeCode:       req.AccountType,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Created(c, util.Response{"account": toAccountResp(acct)})
}

func (h *AccountHandler) Get(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	acct, err := h.Engine.Accounts().Get(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"account": toAccountResp(acct)})
}

func (h *AccountHandler) Deactivate(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	acct, err := h.Engine.Accounts().Deactivate(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"account": toAccountResp(acct)})
}

func (h *AccountHandler) Delete(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	if err := h.Engine.Accounts().Delete(c.Request.Context(), userID, id); err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"message": "account deleted"})
}

type historyEntryResp struct {
	Kind        string       `json:"kind"`
	RefID       uint         `json:"ref_id"`
	Date        string       `json:"date"`
	Description string       `json:"description"`
	Delta       money.Amount `json:"delta"`
	Balance     money.Amount `json:"balance"`
}

// RunningBalance is the audit view; it never repairs a mismatch.
func (h *AccountHandler) RunningBalance(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	rb, err := h.Engine.RunningBalance(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	entries := make([]historyEntryResp, 0, len(rb.Entries))
	for _, e := range rb.Entries {
		entries = append(entries, historyEntryResp{
			Kind:        e.Kind,
			RefID:       e.RefID,
			Date:        e.Date.Format(util.DateLayout),
			Description: e.Description,
			Delta:       e.Delta,
			Balance:     e.Balance,
		})
	}
	util.Success(c, util.Response{
		"account":           toAccountResp(&rb.Account),
		"entries":           entries,
		"computed_balance":  rb.Computed,
		"persisted_balance": rb.Persisted,
		"consistent":        rb.Consistent,
	})
}

// userAndID reads the caller and the :id path parameter.
func userAndID(c *gin.Context) (uint, uint, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return 0, 0, false
	}
	id, ok := util.ParseID(c, "id")
	if !ok {
		util.Error(c, apperr.Validation("invalid id", apperr.FieldError{Field: "id", Message: "must be a positive integer"}))
		return 0, 0, false
	}
	return userID, id, true
}
