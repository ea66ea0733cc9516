package ledger

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/database"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// AccountStore owns account rows. Reads are ownership scoped; the balance is changed only
// through adjustBalance, which the Engine calls inside its own transactions.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// Get returns the account if it exists and belongs to userID.
func (s *AccountStore) Get(ctx context.Context, userID, accountID uint) (*models.Account, error) {
	return ownedAccount(s.db.WithContext(ctx), userID, accountID)
}

// ListForUser returns the user's accounts, oldest first.
func (s *AccountStore) ListForUser(ctx context.Context, userID uint, activeOnly bool) ([]models.Account, error) {
	q := s.db.WithContext(ctx).Preload("AccountType").Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var accounts []models.Account
	if err := q.Order("created_at ASC, id ASC").Find(&accounts).Error; err != nil {
		return nil, apperr.FromStore(err, "accounts not found")
	}
	return accounts, nil
}

// ListTypes returns the available account types.
func (s *AccountStore) ListTypes(ctx context.Context) ([]models.AccountType, error) {
	var types []models.AccountType
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&types).Error; err != nil {
		return nil, apperr.FromStore(err, "account types not found")
	}
	return types, nil
}

// TypeByCode resolves an account type code such as "checking".
func (s *AccountStore) TypeByCode(ctx context.Context, code string) (*models.AccountType, error) {
	var at models.AccountType
	err := s.db.WithContext(ctx).Where("code = ?", strings.ToLower(strings.TrimSpace(code))).First(&at).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("unknown account type",
			apperr.FieldError{Field: "account_type", Message: "is not a known account type"})
	}
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return &at, nil
}

// Deactivate hides the account from transfers and new transactions; history stays.
func (s *AccountStore) Deactivate(ctx context.Context, userID, accountID uint) (*models.Account, error) {
	acct, err := s.Get(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(acct).Update("is_active", false).Error; err != nil {
		return nil, apperr.FromStore(err, "account not found")
	}
	acct.IsActive = false
	return acct, nil
}

// Delete removes the account and, with it, its transactions. Accounts that took part in a
// transfer cannot be deleted: dropping the transfer would break the other side's balance.
func (s *AccountStore) Delete(ctx context.Context, userID, accountID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := ownedAccount(tx, userID, accountID)
		if err != nil {
			return err
		}

		var transfers int64
		if err := tx.Model(&models.Transfer{}).
			Where("from_account_id = ? OR to_account_id = ?", acct.ID, acct.ID).
			Count(&transfers).Error; err != nil {
			return apperr.FromStore(err, "")
		}
		if transfers > 0 {
			return apperr.Conflict("account has transfers and can only be deactivated")
		}

		// receipts linked to the removed transactions become committable again
		if err := tx.Model(&models.Receipt{}).
			Where("id IN (?)", tx.Model(&models.Transaction{}).Select("receipt_id").
				Where("account_id = ? AND receipt_id IS NOT NULL", acct.ID)).
			Update("transaction_created", false).Error; err != nil {
			return apperr.FromStore(err, "")
		}
		if err := tx.Where("account_id = ?", acct.ID).Delete(&models.Transaction{}).Error; err != nil {
			return apperr.FromStore(err, "")
		}
		if err := tx.Delete(&models.Account{}, acct.ID).Error; err != nil {
			return apperr.FromStore(err, "account not found")
		}
		return nil
	})
}

// adjustBalance is the single writer of current_balance. The guard in the WHERE clause
// refuses to take an account whose type forbids it below zero, so a stale check made
// elsewhere can never produce a negative balance.
func (s *AccountStore) adjustBalance(tx *gorm.DB, accountID uint, delta money.Amount) error {
	if delta == 0 {
		return nil
	}
	q := tx.Model(&models.Account{}).Where("id = ?", accountID)
	if delta < 0 {
		q = q.Where("(current_balance + ? >= 0 OR account_type_id IN (?))",
			int64(delta),
			tx.Model(&models.AccountType{}).Select("id").Where("allows_negative_balance = ?", true))
	}
	res := q.Update("current_balance", gorm.Expr("current_balance + ?", int64(delta)))
	if res.Error != nil {
		return apperr.FromStore(res.Error, "account not found")
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("insufficient balance")
	}
	return nil
}

func ownedAccount(tx *gorm.DB, userID, accountID uint) (*models.Account, error) {
	var a models.Account
	err := tx.Preload("AccountType").
		Where("id = ? AND user_id = ?", accountID, userID).
		First(&a).Error
	if err != nil {
		return nil, apperr.FromStore(err, "account not found")
	}
	return &a, nil
}

// lockAccounts re-reads the given accounts in id order. On postgres the rows are locked
// FOR UPDATE so concurrent movements on the same accounts queue behind each other and never
// deadlock; sqlite transactions already hold the database write lock from BEGIN.
func lockAccounts(tx *gorm.DB, ids ...uint) (map[uint]models.Account, error) {
	q := tx.Where("id IN ?", ids).Order("id ASC")
	if database.IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []models.Account
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperr.FromStore(err, "account not found")
	}
	out := make(map[uint]models.Account, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, apperr.NotFound("account not found")
		}
	}
	return out, nil
}
