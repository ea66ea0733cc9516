package ledger

import (
	"context"
	"slices"
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

// History entry kinds.
const (
	EntryTransaction = "transaction"
	EntryTransferOut = "transfer_out"
	EntryTransferIn  = "transfer_in"
)

// HistoryEntry is one movement with the balance right after it.
type HistoryEntry struct {
	Kind        string
	RefID       uint
	Date        time.Time
	CreatedAt   time.Time
	Description string
	Delta       money.Amount
	Balance     money.Amount
}

// RunningBalance is the audit view of an account: its history summed in order, compared
// against the persisted balance. It never writes.
type RunningBalance struct {
	Account    models.Account
	Entries    []HistoryEntry
	Computed   money.Amount
	Persisted  money.Amount
	Consistent bool
}

// RunningBalance replays the account's transactions and transfers ordered by date, then
// insertion time.
func (e *Engine) RunningBalance(ctx context.Context, userID, accountID uint) (*RunningBalance, error) {
	db := e.db.WithContext(ctx)
	acct, err := ownedAccount(db, userID, accountID)
	if err != nil {
		return nil, err
	}

	var txs []models.Transaction
	if err := db.Where("account_id = ?", acct.ID).Find(&txs).Error; err != nil {
		return nil, apperr.FromStore(err, "")
	}
	var transfers []models.Transfer
	if err := db.Where("from_account_id = ? OR to_account_id = ?", acct.ID, acct.ID).Find(&transfers).Error; err != nil {
		return nil, apperr.FromStore(err, "")
	}

	entries := make([]HistoryEntry, 0, len(txs)+len(transfers))
	for _, t := range txs {
		entries = append(entries, HistoryEntry{
			Kind:        EntryTransaction,
			RefID:       t.ID,
			Date:        t.TransactionDate,
			CreatedAt:   t.CreatedAt,
			Description: t.Description,
			Delta:       t.Type.Signed(t.Amount),
		})
	}
	for _, t := range transfers {
		entry := HistoryEntry{
			RefID:       t.ID,
			Date:        t.TransferDate,
			CreatedAt:   t.CreatedAt,
			Description: t.Description,
		}
		if t.FromAccountID == acct.ID {
			entry.Kind = EntryTransferOut
			entry.Delta = -(t.Amount + t.FeeAmount)
		} else {
			entry.Kind = EntryTransferIn
			entry.Delta = t.Amount
		}
		entries = append(entries, entry)
	}

	slices.SortStableFunc(entries, func(a, b HistoryEntry) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.RefID != b.RefID {
			if a.RefID < b.RefID {
				return -1
			}
			return 1
		}
		return 0
	})

	var running money.Amount
	for i := range entries {
		running += entries[i].Delta
		entries[i].Balance = running
	}

	return &RunningBalance{
		Account:    *acct,
		Entries:    entries,
		Computed:   running,
		Persisted:  acct.CurrentBalance,
		Consistent: running == acct.CurrentBalance,
	}, nil
}
