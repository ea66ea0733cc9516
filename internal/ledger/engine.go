// Package ledger records money movements. Every operation that changes a balance runs in a
// single database transaction: the ledger row and the balance update commit together or
// not at all.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/database"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/events"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// Engine validates and records transactions and transfers.
type Engine struct {
	db       *gorm.DB
	accounts *AccountStore
	events   events.Publisher
	log      zerolog.Logger
	now      func() time.Time
}

func NewEngine(db *gorm.DB, accounts *AccountStore, pub events.Publisher, log zerolog.Logger) *Engine {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Engine{
		db:       db,
		accounts: accounts,
		events:   pub,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock; tests pin "today" with it.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Accounts exposes the read side of the account store.
func (e *Engine) Accounts() *AccountStore { return e.accounts }

// TransactionInput is a normalized request: Amount is always positive, Type gives direction.
type TransactionInput struct {
	AccountID   uint
	CategoryID  uint
	Type        models.TransactionType
	Amount      money.Amount
	Description string
	Date        *time.Time
	Notes       string
	ReceiptID   *uint
}

func (in *TransactionInput) normalize(now time.Time) error {
	today := util.DateOnly(now)
	var fields []apperr.FieldError
	in.Type = models.TransactionType(strings.ToUpper(string(in.Type)))
	if !in.Type.Valid() {
		fields = append(fields, apperr.FieldError{Field: "type", Message: "must be INCOME or EXPENSE"})
	}
	if in.Amount <= 0 {
		fields = append(fields, apperr.FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	in.Description = strings.TrimSpace(in.Description)
	if err := util.ValidateDescription(in.Description); err != nil {
		fields = append(fields, apperr.FieldError{Field: "description", Message: err.Error()})
	}
	if in.AccountID == 0 {
		fields = append(fields, apperr.FieldError{Field: "account_id", Message: "is required"})
	}
	if in.CategoryID == 0 {
		fields = append(fields, apperr.FieldError{Field: "category_id", Message: "is required"})
	}
	d := today
	if in.Date != nil {
		if util.AfterToday(*in.Date, now) {
			fields = append(fields, apperr.FieldError{Field: "date", Message: "cannot be in the future"})
		}
		d = util.DateOnly(*in.Date)
	}
	in.Date = &d
	in.Notes = strings.TrimSpace(in.Notes)
	if len(fields) > 0 {
		return apperr.Validation("invalid transaction", fields...)
	}
	return nil
}

// CreateTransaction records one INCOME or EXPENSE row and applies it to the account balance.
func (e *Engine) CreateTransaction(ctx context.Context, userID uint, in TransactionInput) (*models.Transaction, error) {
	if err := in.normalize(e.now()); err != nil {
		return nil, err
	}

	var row models.Transaction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := e.insertTransaction(tx, userID, in)
		if err != nil {
			return err
		}
		row = *created
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "not found")
	}

	ev := events.New(events.TypeTransactionCreated, userID, row.ID, row.Amount)
	ev.AccountIDs = []uint{row.AccountID}
	e.publish(ctx, ev)
	return &row, nil
}

// insertTransaction does the checks and writes of CreateTransaction inside tx.
func (e *Engine) insertTransaction(tx *gorm.DB, userID uint, in TransactionInput) (*models.Transaction, error) {
	acct, err := ownedAccount(tx, userID, in.AccountID)
	if err != nil {
		return nil, err
	}
	if !acct.IsActive {
		return nil, apperr.Conflict("account is inactive")
	}
	if _, err := lockAccounts(tx, acct.ID); err != nil {
		return nil, err
	}

	cat, err := visibleCategory(tx, userID, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if !categoryMatches(cat.Type, in.Type) {
		return nil, apperr.Validation("category type does not match transaction type",
			apperr.FieldError{Field: "category_id", Message: "must be an " + strings.ToLower(string(in.Type)) + " category"})
	}

	if in.ReceiptID != nil {
		if err := linkReceipt(tx, userID, *in.ReceiptID); err != nil {
			return nil, err
		}
	}

	row := &models.Transaction{
		AccountID:       acct.ID,
		CategoryID:      cat.ID,
		Type:            in.Type,
		Amount:          in.Amount,
		Description:     in.Description,
		TransactionDate: *in.Date,
		Notes:           in.Notes,
		ReceiptID:       in.ReceiptID,
	}
	if err := tx.Omit(clause.Associations).Create(row).Error; err != nil {
		return nil, apperr.FromStore(err, "")
	}
	if err := e.accounts.adjustBalance(tx, acct.ID, in.Type.Signed(in.Amount)); err != nil {
		return nil, err
	}
	row.Category = *cat
	return row, nil
}

// AccountInput opens a new account.
type AccountInput struct {
	Name           string
	TypeCode       string
	OpeningBalance money.Amount
}

// OpenAccount creates an account. A positive opening balance is booked as an INCOME row in
// the system "Opening Balance" category so the balance always equals the sum of its history.
func (e *Engine) OpenAccount(ctx context.Context, userID uint, in AccountInput) (*models.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || len(in.Name) > 100 {
		return nil, apperr.Validation("invalid account", apperr.FieldError{Field: "name", Message: "must be 1-100 characters"})
	}
	if in.OpeningBalance < 0 {
		return nil, apperr.Validation("invalid account", apperr.FieldError{Field: "opening_balance", Message: "cannot be negative"})
	}
	at, err := e.accounts.TypeByCode(ctx, in.TypeCode)
	if err != nil {
		return nil, err
	}

	acct := models.Account{
		UserID:        userID,
		AccountTypeID: at.ID,
		Name:          in.Name,
		IsActive:      true,
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&acct).Error; err != nil {
			return apperr.FromStore(err, "")
		}
		if in.OpeningBalance == 0 {
			return nil
		}
		var cat models.Category
		if err := tx.Where("user_id IS NULL AND name = ? AND type = ?",
			database.OpeningBalanceCategory, models.CategoryIncome).First(&cat).Error; err != nil {
			return apperr.FromStore(err, "opening balance category missing")
		}
		_, err := e.insertTransaction(tx, userID, TransactionInput{
			AccountID:   acct.ID,
			CategoryID:  cat.ID,
			Type:        models.TransactionIncome,
			Amount:      in.OpeningBalance,
			Description: "Opening balance",
			Date:        ptrTime(util.DateOnly(e.now())),
		})
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(err, "not found")
	}
	return e.accounts.Get(ctx, userID, acct.ID)
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	AccountID  uint
	CategoryID uint
	Type       models.TransactionType
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// ListTransactions returns the caller's transactions, newest first, and the total count.
func (e *Engine) ListTransactions(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error) {
	base := e.db.WithContext(ctx).Model(&models.Transaction{}).
		Joins("JOIN accounts ON accounts.id = transactions.account_id").
		Where("accounts.user_id = ?", userID)
	if f.AccountID != 0 {
		base = base.Where("transactions.account_id = ?", f.AccountID)
	}
	if f.CategoryID != 0 {
		base = base.Where("transactions.category_id = ?", f.CategoryID)
	}
	if f.Type != "" {
		base = base.Where("transactions.type = ?", strings.ToUpper(string(f.Type)))
	}
	if f.From != nil {
		base = base.Where("transactions.transaction_date >= ?", util.DateOnly(*f.From))
	}
	if f.To != nil {
		base = base.Where("transactions.transaction_date < ?", util.DateOnly(*f.To).AddDate(0, 0, 1))
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "")
	}

	q := base.Session(&gorm.Session{}).Preload("Category").
		Order("transactions.transaction_date DESC, transactions.id DESC")
	if f.PageSize > 0 {
		page := f.Page
		if page <= 0 {
			page = 1
		}
		q = q.Limit(f.PageSize).Offset((page - 1) * f.PageSize)
	}
	var rows []models.Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "")
	}
	return rows, total, nil
}

// GetTransaction returns one of the caller's transactions.
func (e *Engine) GetTransaction(ctx context.Context, userID, id uint) (*models.Transaction, error) {
	var row models.Transaction
	err := e.db.WithContext(ctx).Preload("Category").
		Joins("JOIN accounts ON accounts.id = transactions.account_id").
		Where("transactions.id = ? AND accounts.user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		return nil, apperr.FromStore(err, "transaction not found")
	}
	return &row, nil
}

func visibleCategory(tx *gorm.DB, userID, categoryID uint) (*models.Category, error) {
	var cat models.Category
	err := tx.Where("id = ? AND (user_id IS NULL OR user_id = ?)", categoryID, userID).First(&cat).Error
	if err != nil {
		return nil, apperr.FromStore(err, "category not found")
	}
	return &cat, nil
}

func categoryMatches(ct models.CategoryType, tt models.TransactionType) bool {
	switch tt {
	case models.TransactionIncome:
		return ct == models.CategoryIncome
	case models.TransactionExpense:
		return ct == models.CategoryExpense
	}
	return false
}

// linkReceipt flips the receipt's flag inside tx. The unique index on
// transactions.receipt_id backs it at the database level.
func linkReceipt(tx *gorm.DB, userID, receiptID uint) error {
	res := tx.Model(&models.Receipt{}).
		Where("id = ? AND user_id = ? AND transaction_created = ?", receiptID, userID, false).
		Update("transaction_created", true)
	if res.Error != nil {
		return apperr.FromStore(res.Error, "receipt not found")
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Receipt{}).Where("id = ? AND user_id = ?", receiptID, userID).Count(&count).Error; err != nil {
		return apperr.FromStore(err, "")
	}
	if count == 0 {
		return apperr.NotFound("receipt not found")
	}
	return apperr.Conflict("a transaction has already been created from this receipt")
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	// the request context may be cancelled right after the response is written
	ctx = context.WithoutCancel(ctx)
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warn().Err(err).Str("event", ev.Type).Uint("resource_id", ev.ResourceID).Msg("publish ledger event failed")
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
