package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type TransferHandler struct {
	Engine   *ledger.Engine
	PageSize int
}

func NewTransferHandler(engine *ledger.Engine, pageSize int) *TransferHandler {
	return &TransferHandler{Engine: engine, PageSize: pageSize}
}

type createTransferReq struct {
	FromAccountID uint         `json:"from_account_id" binding:"required"`
	ToUserID      uint         `json:"to_user_id" binding:"required"`
	Amount        money.Amount `json:"amount"`
	FeeAmount     money.Amount `json:"fee_amount"`
	Description   string       `json:"description" binding:"max=255"`
	Date          string       `json:"date"`
	Notes         string       `json:"notes" binding:"max=2000"`
}

type transferResp struct {
	ID              uint         `json:"id"`
	FromAccountID   uint         `json:"from_account_id"`
	ToAccountID     uint         `json:"to_account_id"`
	Amount          money.Amount `json:"amount"`
	FeeAmount       money.Amount `json:"fee_amount"`
	Description     string       `json:"description"`
	Date            string       `json:"date"`
	ReferenceNumber string       `json:"reference_number"`
	Notes           string       `json:"notes,omitempty"`
	Direction       string       `json:"direction,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

func toTransferResp(v *ledger.TransferView) transferResp {
	return transferResp{
		ID:              v.ID,
		FromAccountID:   v.FromAccountID,
		ToAccountID:     v.ToAccountID,
		Amount:          v.Amount,
		FeeAmount:       v.FeeAmount,
		Description:     v.Description,
		Date:            v.TransferDate.UTC().Format(util.DateLayout),
		ReferenceNumber: v.ReferenceNumber,
		Notes:           v.Notes,
		Direction:       v.Direction,
		CreatedAt:       v.CreatedAt,
	}
}

func (h *TransferHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createTransferReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	in := ledger.TransferInput{
		FromAccountID: req.FromAccountID,
		ToUserID:      req.ToUserID,
		Amount:        req.Amount,
		FeeAmount:     req.FeeAmount,
		Description:   req.Description,
		Notes:         req.Notes,
	}
	var err error
	if in.Date, err = optionalLocalDate("date", req.Date); err != nil {
		util.Error(c, err)
		return
	}

	res, err := h.Engine.CreateTransfer(c.Request.Context(), userID, in)
	if err != nil {
		util.Error(c, err)
		return
	}
	view := ledger.TransferView{Transfer: res.Transfer, Direction: ledger.DirectionSent}
	util.Created(c, util.Response{
		"transfer":             toTransferResp(&view),
		"from_account_balance": res.FromAccountBalance,
		"to_account_balance":   res.ToAccountBalance,
	})
}

func (h *TransferHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	page, size := util.Pagination(c, h.PageSize)
	rows, total, err := h.Engine.ListTransfers(c.Request.Context(), userID, page, size)
	if err != nil {
		util.Error(c, err)
		return
	}
	items := make([]transferResp, 0, len(rows))
	for i := range rows {
		items = append(items, toTransferResp(&rows[i]))
	}
	util.Success(c, util.Response{"items": items, "total": total, "page": page, "size": size})
}

func (h *TransferHandler) Get(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	v, err := h.Engine.GetTransfer(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"transfer": toTransferResp(v)})
}
