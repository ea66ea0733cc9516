package handler

import (
	"encoding/csv"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// ExportHandler writes the caller's transactions as CSV or XLSX. The same filters as the
// transaction list apply; paging does not.
type ExportHandler struct {
	Engine *ledger.Engine
}

func NewExportHandler(engine *ledger.Engine) *ExportHandler {
	return &ExportHandler{Engine: engine}
}

var exportHeader = []string{"Date", "Type", "Category", "Amount", "Description", "Notes", "Account ID"}

func exportRow(t *models.Transaction) []string {
	return []string{
		t.TransactionDate.UTC().Format(util.DateLayout),
		string(t.Type),
		t.Category.Name,
		t.Amount.String(),
		t.Description,
		t.Notes,
		fmt.Sprint(t.AccountID),
	}
}

func (h *ExportHandler) load(c *gin.Context) ([]models.Transaction, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	f, err := transactionFilter(c, 0)
	if err != nil {
		util.Error(c, err)
		return nil, false
	}
	f.Page, f.PageSize = 0, 0
	rows, _, err := h.Engine.ListTransactions(c.Request.Context(), userID, f)
	if err != nil {
		util.Error(c, err)
		return nil, false
	}
	return rows, true
}

func exportName(ext string) string {
	return fmt.Sprintf("attachment; filename=\"transactions_%s.%s\"", time.Now().UTC().Format("20060102"), ext)
}

func (h *ExportHandler) ExportCSV(c *gin.Context) {
	rows, ok := h.load(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", exportName("csv"))

	// UTF-8 BOM so spreadsheet apps pick the right encoding
	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})
	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for i := range rows {
		_ = w.Write(exportRow(&rows[i]))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		l := util.RequestLogger(c)
		l.Error().Err(err).Msg("write csv export")
	}
}

func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	rows, ok := h.load(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Transactions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		util.Error(c, apperr.Internal("create sheet", err))
		return
	}

	for i, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for r := range rows {
		t := &rows[r]
		values := []interface{}{
			t.TransactionDate.UTC().Format(util.DateLayout),
			string(t.Type),
			t.Category.Name,
			t.Amount.Decimal().InexactFloat64(),
			t.Description,
			t.Notes,
			t.AccountID,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "B", 12)
	_ = f.SetColWidth(sheet, "C", "C", 18)
	_ = f.SetColWidth(sheet, "D", "D", 12)
	_ = f.SetColWidth(sheet, "E", "F", 30)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", exportName("xlsx"))
	if err := f.Write(c.Writer); err != nil {
		l := util.RequestLogger(c)
		l.Error().Err(err).Msg("write xlsx export")
	}
}
