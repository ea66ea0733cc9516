package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/events"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/testutil"
)

var today = testutil.Date(2026, time.March, 15)

func newEngine(t *testing.T) (*Engine, *gorm.DB, *events.Recorder) {
	t.Helper()
	db := testutil.NewDB(t)
	rec := &events.Recorder{}
	e := NewEngine(db, NewAccountStore(db), rec, zerolog.Nop())
	e.SetClock(func() time.Time { return today.Add(10 * time.Hour) })
	return e, db, rec
}

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return a
}

func TestCreateTransaction_AdjustsBalance(t *testing.T) {
	e, db, rec := newEngine(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "alice")
	acct := testutil.CreateAccount(t, db, u.ID, "checking", "Main", today)
	testutil.Fund(t, db, acct.ID, mustAmount(t, "100.00"), today)
	food := testutil.SystemCategory(t, db, "Food & Dining")

	row, err := e.CreateTransaction(ctx, u.ID, TransactionInput{
		AccountID:   acct.ID,
		CategoryID:  food.ID,
		Type:        "expense",
		Amount:      mustAmount(t, "12.50"),
		Description: "  lunch ",
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if row.Type != models.TransactionExpense || row.Description != "lunch" {
		t.Errorf("row = %+v", row)
	}
	if !row.TransactionDate.Equal(today) {
		t.Errorf("date = %v, want default today %v", row.TransactionDate, today)
	}
	if got := testutil.Balance(t, db, acct.ID); got != mustAmount(t, "87.50") {
		t.Errorf("balance = %s, want 87.50", got)
	}
	if evs := rec.Events(); len(evs) != 1 || evs[0].Type != events.TypeTransactionCreated {
		t.Errorf("events = %+v", evs)
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "alice")
	acct := testutil.CreateAccount(t, db, u.ID, "checking", "Main", today)
	food := testutil.SystemCategory(t, db, "Food & Dining")
	salary := testutil.SystemCategory(t, db, "Salary")
	tomorrow := today.AddDate(0, 0, 1)

	cases := []struct {
		name string
		in   TransactionInput
		kind apperr.Kind
	}{
		{"zero amount", TransactionInput{AccountID: acct.ID, CategoryID: food.ID, Type: "EXPENSE", Description: "x"}, apperr.KindValidation},
		{"empty description", TransactionInput{AccountID: acct.ID, CategoryID: food.ID, Type: "EXPENSE", Amount: 100, Description: "  "}, apperr.KindValidation},
		{"bad type", TransactionInput{AccountID: acct.ID, CategoryID: food.ID, Type: "REFUND", Amount: 100, Description: "x"}, apperr.KindValidation},
		{"future date", TransactionInput{AccountID: acct.ID, CategoryID: food.ID, Type: "EXPENSE", Amount: 100, Description: "x", Date: &tomorrow}, apperr.KindValidation},
		{"category type mismatch", TransactionInput{AccountID: acct.ID, CategoryID: salary.ID, Type: "EXPENSE", Amount: 100, Description: "x"}, apperr.KindValidation},
		{"missing account", TransactionInput{AccountID: 9999, CategoryID: food.ID, Type: "EXPENSE", Amount: 100, Description: "x"}, apperr.KindNotFound},
		{"missing category", TransactionInput{AccountID: acct.ID, CategoryID: 9999, Type: "EXPENSE", Amount: 100, Description: "x"}, apperr.KindNotFound},
		{"insufficient balance", TransactionInput{AccountID: acct.ID, CategoryID: food.ID, Type: "EXPENSE", Amount: 100, Description: "x"}, apperr.KindConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateTransaction(ctx, u.ID, tc.in)
			if got := apperr.KindOf(err); err == nil || got != tc.kind {
				t.Fatalf("error = %v (kind %s), want %s", err, got, tc.kind)
			}
		})
	}

	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	if count != 0 {
		t.Errorf("%d rows written by rejected requests", count)
	}
	if got := testutil.Balance(t, db, acct.ID); got != 0 {
		t.Errorf("balance = %s, want 0", got)
	}
}

func TestCreateTransaction_DateInClientOffset(t *testing.T) {
	e, db, _ := newEngine(t)
	// 20:00 UTC on the 15th is already the 16th in +08:00
	e.SetClock(func() time.Time { return today.Add(20 * time.Hour) })
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "alice")
	acct := testutil.CreateAccount(t, db, u.ID, "checking", "Main", today)
	salary := testutil.SystemCategory(t, db, "Salary")

	plus8 := time.FixedZone("+08:00", 8*3600)
	minus5 := time.FixedZone("-05:00", -5*3600)
	cases := []struct {
		name string
		date time.Time
		ok   bool
	}{
		{"local today ahead of utc", time.Date(2026, time.March, 16, 0, 0, 0, 0, plus8), true},
		{"utc today", time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), true},
		{"utc tomorrow", time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC), false},
		{"local tomorrow ahead of utc", time.Date(2026, time.March, 17, 0, 0, 0, 0, plus8), false},
		{"local tomorrow behind utc", time.Date(2026, time.March, 16, 0, 0, 0, 0, minus5), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := tc.date
			tx, err := e.CreateTransaction(ctx, u.ID, TransactionInput{
				AccountID: acct.ID, CategoryID: salary.ID, Type: "INCOME", Amount: 100, Description: "pay", Date: &d,
			})
			if !tc.ok {
				if !apperr.Is(err, apperr.KindValidation) {
					t.Fatalf("error = %v, want Validation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateTransaction() error = %v", err)
			}
			want := testutil.Date(d.Year(), d.Month(), d.Day())
			if !tx.TransactionDate.Equal(want) {
				t.Errorf("stored date = %s, want %s", tx.TransactionDate, want)
			}
		})
	}
}

func TestCreateTransaction_OwnershipScoped(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	acct := testutil.CreateAccount(t, db, alice.ID, "checking", "Main", today)
	salary := testutil.SystemCategory(t, db, "Salary")

	_, err := e.CreateTransaction(ctx, bob.ID, TransactionInput{
		AccountID: acct.ID, CategoryID: salary.ID, Type: "INCOME", Amount: 500, Description: "not mine",
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}

	// another user's private category is invisible too
	bobCat := models.Category{UserID: &bob.ID, Name: "Side gig", Type: models.CategoryIncome}
	if err := db.Create(&bobCat).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	_, err = e.CreateTransaction(ctx, alice.ID, TransactionInput{
		AccountID: acct.ID, CategoryID: bobCat.ID, Type: "INCOME", Amount: 500, Description: "x",
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestCreateTransaction_CreditCardMayGoNegative(t *testing.T) {
	e, db, _ := newEngine(t)
	u := testutil.CreateUser(t, db, "alice")
	card := testutil.CreateAccount(t, db, u.ID, "credit_card", "Visa", today)
	food := testutil.SystemCategory(t, db, "Food & Dining")

	_, err := e.CreateTransaction(context.Background(), u.ID, TransactionInput{
		AccountID: card.ID, CategoryID: food.ID, Type: models.TransactionExpense, Amount: 4200, Description: "dinner",
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if got := testutil.Balance(t, db, card.ID); got != -4200 {
		t.Errorf("balance = %s, want -42.00", got)
	}
}

func TestCreateTransaction_ReceiptLinksOnce(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "alice")
	acct := testutil.CreateAccount(t, db, u.ID, "checking", "Main", today)
	testutil.Fund(t, db, acct.ID, 10000, today)
	food := testutil.SystemCategory(t, db, "Food & Dining")
	r := models.Receipt{UserID: u.ID, MerchantName: "Cafe", Amount: 450, ImageKey: "k"}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("create receipt: %v", err)
	}

	in := TransactionInput{AccountID: acct.ID, CategoryID: food.ID, Type: "EXPENSE", Amount: 450, Description: "Cafe", ReceiptID: &r.ID}
	if _, err := e.CreateTransaction(ctx, u.ID, in); err != nil {
		t.Fatalf("first link: %v", err)
	}
	if _, err := e.CreateTransaction(ctx, u.ID, in); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second link error = %v, want conflict", err)
	}
	if got := testutil.Balance(t, db, acct.ID); got != 10000-450 {
		t.Errorf("balance = %s, want 95.50", got)
	}

	var linked models.Receipt
	db.First(&linked, r.ID)
	if !linked.TransactionCreated {
		t.Error("receipt flag not set")
	}
}

func TestOpenAccount_OpeningBalance(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "alice")

	acct, err := e.OpenAccount(ctx, u.ID, AccountInput{Name: "Savings", TypeCode: "SAVINGS", OpeningBalance: 25000})
	if err != nil {
		t.Fatalf("OpenAccount() error = %v", err)
	}
	if acct.CurrentBalance != 25000 || acct.AccountType.Code != "savings" {
		t.Errorf("account = %+v", acct)
	}
	rows, total, err := e.ListTransactions(ctx, u.ID, TransactionFilter{AccountID: acct.ID})
	if err != nil || total != 1 || len(rows) != 1 {
		t.Fatalf("history = %v, %d, %v", rows, total, err)
	}
	if rows[0].Category.Name != "Opening Balance" {
		t.Errorf("opening category = %q", rows[0].Category.Name)
	}

	if _, err := e.OpenAccount(ctx, u.ID, AccountInput{Name: "x", TypeCode: "gold"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("unknown type error = %v", err)
	}
	if _, err := e.OpenAccount(ctx, u.ID, AccountInput{Name: "x", TypeCode: "cash", OpeningBalance: -1}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("negative opening error = %v", err)
	}
}

func TestListTransactions_FiltersAndPages(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "alice")
	other := testutil.CreateUser(t, db, "bob")
	acct := testutil.CreateAccount(t, db, u.ID, "checking", "Main", today)
	otherAcct := testutil.CreateAccount(t, db, other.ID, "checking", "Main", today)
	testutil.Fund(t, db, acct.ID, 1000, testutil.Date(2026, time.January, 1))
	testutil.Fund(t, db, acct.ID, 2000, testutil.Date(2026, time.February, 1))
	testutil.Fund(t, db, acct.ID, 3000, testutil.Date(2026, time.March, 1))
	testutil.Fund(t, db, otherAcct.ID, 4000, testutil.Date(2026, time.March, 1))

	rows, total, err := e.ListTransactions(ctx, u.ID, TransactionFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if total != 3 || len(rows) != 2 {
		t.Fatalf("total=%d len=%d, want 3 and 2", total, len(rows))
	}
	if rows[0].Amount != 3000 {
		t.Errorf("first row amount = %s, want newest first", rows[0].Amount)
	}

	from := testutil.Date(2026, time.February, 1)
	to := testutil.Date(2026, time.February, 28)
	rows, total, _ = e.ListTransactions(ctx, u.ID, TransactionFilter{From: &from, To: &to})
	if total != 1 || rows[0].Amount != 2000 {
		t.Errorf("date filter: total=%d rows=%v", total, rows)
	}

	if _, err := e.GetTransaction(ctx, other.ID, rows[0].ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("GetTransaction by other user error = %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	plain := testutil.CreateAccount(t, db, alice.ID, "checking", "Plain", today)
	testutil.Fund(t, db, plain.ID, 500, today)
	linked := testutil.CreateAccount(t, db, alice.ID, "savings", "Linked", today.Add(time.Hour))
	testutil.Fund(t, db, linked.ID, 5000, today)
	testutil.CreateAccount(t, db, bob.ID, "checking", "Bob", today)

	if _, err := e.CreateTransfer(ctx, alice.ID, TransferInput{FromAccountID: linked.ID, ToUserID: bob.ID, Amount: 100, Description: "x"}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := e.Accounts().Delete(ctx, alice.ID, linked.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("delete account with transfers error = %v, want conflict", err)
	}
	if err := e.Accounts().Delete(ctx, bob.ID, plain.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("delete by other user error = %v, want not found", err)
	}
	if err := e.Accounts().Delete(ctx, alice.ID, plain.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	var count int64
	db.Model(&models.Transaction{}).Where("account_id = ?", plain.ID).Count(&count)
	if count != 0 {
		t.Errorf("%d transactions left for deleted account", count)
	}
}

func TestRunningBalance_MatchesPersisted(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	a := testutil.CreateAccount(t, db, alice.ID, "checking", "Main", today)
	b := testutil.CreateAccount(t, db, bob.ID, "checking", "Main", today)
	testutil.Fund(t, db, a.ID, 10000, testutil.Date(2026, time.January, 5))
	food := testutil.SystemCategory(t, db, "Food & Dining")
	jan10 := testutil.Date(2026, time.January, 10)

	if _, err := e.CreateTransaction(ctx, alice.ID, TransactionInput{AccountID: a.ID, CategoryID: food.ID, Type: "EXPENSE", Amount: 1500, Description: "food", Date: &jan10}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateTransfer(ctx, alice.ID, TransferInput{FromAccountID: a.ID, ToUserID: bob.ID, Amount: 2000, FeeAmount: 100, Description: "rent share"}); err != nil {
		t.Fatal(err)
	}

	rb, err := e.RunningBalance(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("RunningBalance() error = %v", err)
	}
	if len(rb.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(rb.Entries))
	}
	wantBalances := []money.Amount{10000, 8500, 6400}
	for i, want := range wantBalances {
		if rb.Entries[i].Balance != want {
			t.Errorf("entry %d balance = %s, want %s", i, rb.Entries[i].Balance, want)
		}
	}
	if !rb.Consistent || rb.Persisted != 6400 {
		t.Errorf("consistent=%v persisted=%s", rb.Consistent, rb.Persisted)
	}

	rbB, err := e.RunningBalance(ctx, bob.ID, b.ID)
	if err != nil || !rbB.Consistent || rbB.Computed != 2000 || rbB.Entries[0].Kind != EntryTransferIn {
		t.Errorf("recipient view = %+v, %v", rbB, err)
	}

	if _, err := e.RunningBalance(ctx, bob.ID, a.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("foreign account error = %v", err)
	}
}
