package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/receipt"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type ReceiptHandler struct {
	Receipts       *receipt.Service
	MaxUploadBytes int64
	PageSize       int
}

func NewReceiptHandler(svc *receipt.Service, maxUploadMB, pageSize int) *ReceiptHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &ReceiptHandler{Receipts: svc, MaxUploadBytes: int64(maxUploadMB) << 20, PageSize: pageSize}
}

type receiptResp struct {
	ID                  uint                `json:"id"`
	MerchantName        string              `json:"merchant_name"`
	Amount              money.Amount        `json:"amount"`
	Date                *string             `json:"date"`
	SuggestedCategory   string              `json:"suggested_category"`
	SuggestedCategoryID *uint               `json:"suggested_category_id"`
	Confidence          float64             `json:"confidence"`
	ImageURL            string              `json:"image_url"`
	TransactionCreated  bool                `json:"transaction_created"`
	Extraction          *receipt.Extraction `json:"extraction,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
}

func toReceiptResp(r *models.Receipt, ex *receipt.Extraction) receiptResp {
	out := receiptResp{
		ID:                  r.ID,
		MerchantName:        r.MerchantName,
		Amount:              r.Amount,
		SuggestedCategory:   r.SuggestedCategory,
		SuggestedCategoryID: r.SuggestedCategoryID,
		Confidence:          r.Confidence,
		ImageURL:            fmt.Sprintf("/api/receipts/%d/image", r.ID),
		TransactionCreated:  r.TransactionCreated,
		Extraction:          ex,
		CreatedAt:           r.CreatedAt,
	}
	if r.ReceiptDate != nil {
		d := r.ReceiptDate.UTC().Format(util.DateLayout)
		out.Date = &d
	}
	return out
}

// Upload takes a multipart "image" field.
func (h *ReceiptHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		util.Error(c, apperr.Validation("image is required", apperr.FieldError{Field: "image", Message: "is required"}))
		return
	}
	if fh.Size > h.MaxUploadBytes {
		util.Error(c, apperr.Validation("image too large", apperr.FieldError{Field: "image", Message: "exceeds the upload limit"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		util.Error(c, apperr.Validation("unreadable image", apperr.FieldError{Field: "image", Message: "could not be read"}))
		return
	}
	defer f.Close()
	img, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
	if err != nil || int64(len(img)) > h.MaxUploadBytes {
		util.Error(c, apperr.Validation("unreadable image", apperr.FieldError{Field: "image", Message: "could not be read"}))
		return
	}

	d, err := h.Receipts.Ingest(c.Request.Context(), userID, img)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Created(c, util.Response{"receipt": toReceiptResp(&d.Receipt, d.Extraction)})
}

func (h *ReceiptHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	page, size := util.Pagination(c, h.PageSize)
	rows, total, err := h.Receipts.List(c.Request.Context(), userID, page, size)
	if err != nil {
		util.Error(c, err)
		return
	}
	items := make([]receiptResp, 0, len(rows))
	for i := range rows {
		items = append(items, toReceiptResp(&rows[i], nil))
	}
	util.Success(c, util.Response{"items": items, "total": total, "page": page, "size": size})
}

func (h *ReceiptHandler) Get(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	d, err := h.Receipts.Get(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"receipt": toReceiptResp(&d.Receipt, d.Extraction)})
}

// Image streams the receipt image to its owner.
func (h *ReceiptHandler) Image(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	b, contentType, err := h.Receipts.Image(c.Request.Context(), userID, id)
	if err != nil {
		util.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, contentType, b)
}

func (h *ReceiptHandler) Delete(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	if err := h.Receipts.Delete(c.Request.Context(), userID, id); err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, util.Response{"message": "receipt deleted"})
}

type commitReceiptReq struct {
	AccountID   uint          `json:"account_id" binding:"required"`
	CategoryID  *uint         `json:"category_id"`
	Amount      *money.Amount `json:"amount"`
	Description *string       `json:"description" binding:"omitempty,max=255"`
	Date        string        `json:"date"`
	Notes       string        `json:"notes" binding:"max=2000"`
}

// Commit turns the receipt into an EXPENSE transaction.
func (h *ReceiptHandler) Commit(c *gin.Context) {
	userID, id, ok := userAndID(c)
	if !ok {
		return
	}
	var req commitReceiptReq
	if err := util.BindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	in := receipt.CommitInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: req.Description,
		Notes:       req.Notes,
	}
	var err error
	if in.Date, err = optionalLocalDate("date", req.Date); err != nil {
		util.Error(c, err)
		return
	}
	tx, err := h.Receipts.Commit(c.Request.Context(), userID, id, in)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Created(c, util.Response{"transaction": toEntryResp(tx)})
}
