package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/events"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// TransferInput names the recipient user; the destination account is resolved, not chosen.
type TransferInput struct {
	FromAccountID uint
	ToUserID      uint
	Amount        money.Amount
	FeeAmount     money.Amount
	Description   string
	Date          *time.Time
	Notes         string
}

// TransferResult carries both balances as re-read after commit.
type TransferResult struct {
	Transfer           models.Transfer
	FromAccountBalance money.Amount
	ToAccountBalance   money.Amount
}

// Transfer directions relative to the caller.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// TransferView is a transfer as seen by one of its parties.
type TransferView struct {
	models.Transfer
	Direction string
}

func (in *TransferInput) normalize(now time.Time) error {
	today := util.DateOnly(now)
	var fields []apperr.FieldError
	if in.FromAccountID == 0 {
		fields = append(fields, apperr.FieldError{Field: "from_account_id", Message: "is required"})
	}
	if in.ToUserID == 0 {
		fields = append(fields, apperr.FieldError{Field: "to_user_id", Message: "is required"})
	}
	if in.Amount <= 0 {
		fields = append(fields, apperr.FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if in.FeeAmount < 0 {
		fields = append(fields, apperr.FieldError{Field: "fee_amount", Message: "cannot be negative"})
	}
	in.Description = strings.TrimSpace(in.Description)
	if err := util.ValidateDescription(in.Description); err != nil {
		fields = append(fields, apperr.FieldError{Field: "description", Message: err.Error()})
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
		return apperr.Validation("invalid transfer", fields...)
	}
	return nil
}

// CreateTransfer moves Amount from the caller's account to the recipient's earliest-created
// active account. The source is debited Amount+FeeAmount and the destination credited Amount
// in one database transaction.
func (e *Engine) CreateTransfer(ctx context.Context, userID uint, in TransferInput) (*TransferResult, error) {
	if in.ToUserID == userID {
		return nil, apperr.Validation("cannot transfer to yourself",
			apperr.FieldError{Field: "to_user_id", Message: "must be another user"})
	}
	if err := in.normalize(e.now()); err != nil {
		return nil, err
	}

	var t models.Transfer
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from, err := ownedAccount(tx, userID, in.FromAccountID)
		if err != nil {
			return err
		}
		if !from.IsActive {
			return apperr.Conflict("source account is inactive")
		}

		to, err := recipientAccount(tx, in.ToUserID)
		if err != nil {
			return err
		}
		if to.ID == from.ID {
			return apperr.Validation("source and destination accounts must differ")
		}

		locked, err := lockAccounts(tx, from.ID, to.ID)
		if err != nil {
			return err
		}
		debit := in.Amount + in.FeeAmount
		if !from.AccountType.AllowsNegativeBalance && locked[from.ID].CurrentBalance < debit {
			return apperr.Conflict("insufficient balance")
		}

		t = models.Transfer{
			FromAccountID:   from.ID,
			ToAccountID:     to.ID,
			Amount:          in.Amount,
			FeeAmount:       in.FeeAmount,
			Description:     in.Description,
			TransferDate:    *in.Date,
			ReferenceNumber: referenceNumber(e.now()),
			Notes:           in.Notes,
		}
		if err := tx.Omit(clause.Associations).Create(&t).Error; err != nil {
			return apperr.FromStore(err, "")
		}
		if err := e.accounts.adjustBalance(tx, from.ID, -debit); err != nil {
			return err
		}
		return e.accounts.adjustBalance(tx, to.ID, in.Amount)
	})
	if err != nil {
		return nil, apperr.FromStore(err, "not found")
	}

	res := &TransferResult{Transfer: t}
	balances, err := e.balances(ctx, t.FromAccountID, t.ToAccountID)
	if err != nil {
		return nil, err
	}
	res.FromAccountBalance = balances[t.FromAccountID]
	res.ToAccountBalance = balances[t.ToAccountID]

	ev := events.New(events.TypeTransferCreated, userID, t.ID, t.Amount)
	ev.AccountIDs = []uint{t.FromAccountID, t.ToAccountID}
	ev.Reference = t.ReferenceNumber
	e.publish(ctx, ev)
	return res, nil
}

// ListTransfers returns transfers the caller sent or received, newest first.
func (e *Engine) ListTransfers(ctx context.Context, userID uint, page, size int) ([]TransferView, int64, error) {
	owned := e.db.Model(&models.Account{}).Select("id").Where("user_id = ?", userID)
	base := e.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("from_account_id IN (?) OR to_account_id IN (?)", owned, owned)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "")
	}
	q := base.Session(&gorm.Session{}).Order("transfer_date DESC, id DESC")
	if size > 0 {
		if page <= 0 {
			page = 1
		}
		q = q.Limit(size).Offset((page - 1) * size)
	}
	var rows []models.Transfer
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "")
	}

	mine, err := e.ownedIDs(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	out := make([]TransferView, 0, len(rows))
	for _, t := range rows {
		dir := DirectionReceived
		if mine[t.FromAccountID] {
			dir = DirectionSent
		}
		out = append(out, TransferView{Transfer: t, Direction: dir})
	}
	return out, total, nil
}

// GetTransfer returns a transfer to either of its parties; anyone else gets Forbidden.
func (e *Engine) GetTransfer(ctx context.Context, userID, id uint) (*TransferView, error) {
	var t models.Transfer
	if err := e.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, apperr.FromStore(err, "transfer not found")
	}
	mine, err := e.ownedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch {
	case mine[t.FromAccountID]:
		return &TransferView{Transfer: t, Direction: DirectionSent}, nil
	case mine[t.ToAccountID]:
		return &TransferView{Transfer: t, Direction: DirectionReceived}, nil
	}
	return nil, apperr.Forbidden("you are not a party to this transfer")
}

// recipientAccount picks the recipient's earliest-created active account, ties broken by id.
func recipientAccount(tx *gorm.DB, recipientID uint) (*models.Account, error) {
	var user models.User
	if err := tx.Select("id", "is_active").First(&user, recipientID).Error; err != nil {
		return nil, apperr.FromStore(err, "recipient not found")
	}
	if !user.IsActive {
		return nil, apperr.NotFound("recipient not found")
	}
	var a models.Account
	err := tx.Where("user_id = ? AND is_active = ?", recipientID, true).
		Order("created_at ASC, id ASC").
		First(&a).Error
	if err != nil {
		return nil, apperr.FromStore(err, "recipient has no active account")
	}
	return &a, nil
}

func (e *Engine) balances(ctx context.Context, ids ...uint) (map[uint]money.Amount, error) {
	var rows []models.Account
	if err := e.db.WithContext(ctx).Select("id", "current_balance").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, apperr.FromStore(err, "")
	}
	out := make(map[uint]money.Amount, len(rows))
	for _, r := range rows {
		out[r.ID] = r.CurrentBalance
	}
	return out, nil
}

func (e *Engine) ownedIDs(ctx context.Context, userID uint) (map[uint]bool, error) {
	var ids []uint
	if err := e.db.WithContext(ctx).Model(&models.Account{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		return nil, apperr.FromStore(err, "")
	}
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// referenceNumber renders TRF-YYYYMMDD-XXXXXXXX.
func referenceNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRF-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(id[:8])
}
