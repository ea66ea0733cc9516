package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/events"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/testutil"
)

const testKey = "receipt-test-key"

type fakeExtractor struct {
	out  *Extraction
	err  error
	seen []string
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, categories []string) (*Extraction, error) {
	f.seen = categories
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.out
	return &cp, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type env struct {
	db   *gorm.DB
	svc  *Service
	ext  *fakeExtractor
	dir  string
	rec  *events.Recorder
	user *models.User
	acct *models.Account
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	engine := ledger.NewEngine(db, ledger.NewAccountStore(db), nil, zerolog.Nop())
	engine.SetClock(func() time.Time { return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC) })

	dir := t.TempDir()
	blobs, err := NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	d := testutil.Date(2026, time.March, 10)
	ext := &fakeExtractor{out: &Extraction{
		MerchantName:      "Corner Grocery",
		Amount:            4_250,
		Date:              &d,
		SuggestedCategory: "food & dining",
		Confidence:        0.92,
		LineItems:         []LineItem{{Title: "Milk", Price: 250, Category: "Food & Dining"}},
	}}
	rec := &events.Recorder{}
	svc := NewService(db, engine, ext, blobs, Options{EncryptionKey: testKey, MaxConcurrent: 2, Events: rec}, zerolog.Nop())

	u := testutil.CreateUser(t, db, "alice")
	acct := testutil.CreateAccount(t, db, u.ID, "checking", "Main", time.Now())
	testutil.Fund(t, db, acct.ID, 100_000, testutil.Date(2026, time.March, 1))
	return &env{db: db, svc: svc, ext: ext, dir: dir, rec: rec, user: u, acct: acct}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestIngest_StoresReceiptAndEncryptsPayload(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d, err := e.svc.Ingest(ctx, e.user.ID, pngBytes(t))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	food := testutil.SystemCategory(t, e.db, "Food & Dining")
	if d.SuggestedCategoryID == nil || *d.SuggestedCategoryID != food.ID {
		t.Errorf("suggested category = %v, want %d", d.SuggestedCategoryID, food.ID)
	}
	if d.Amount != 4_250 || d.MerchantName != "Corner Grocery" || d.TransactionCreated {
		t.Errorf("receipt = %+v", d.Receipt)
	}
	if countFiles(t, e.dir) != 1 {
		t.Errorf("blob not written")
	}
	if len(e.ext.seen) == 0 {
		t.Error("extractor got no category names")
	}

	var stored models.Receipt
	e.db.First(&stored, d.ID)
	if bytes.Contains([]byte(stored.RawDataEnc), []byte("Corner Grocery")) {
		t.Error("raw extraction stored in plain text")
	}

	got, err := e.svc.Get(ctx, e.user.ID, d.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Extraction == nil || len(got.Extraction.LineItems) != 1 || got.Extraction.LineItems[0].Title != "Milk" {
		t.Errorf("decrypted extraction = %+v", got.Extraction)
	}

	evs := e.rec.Events()
	if len(evs) != 1 || evs[0].Type != events.TypeReceiptProcessed || evs[0].ResourceID != d.ID {
		t.Errorf("events = %+v", evs)
	}
}

func TestIngest_Rejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.svc.Ingest(ctx, e.user.ID, []byte("not an image")); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("bad image error = %v", err)
	}

	e.ext.err = errors.New("model offline")
	if _, err := e.svc.Ingest(ctx, e.user.ID, pngBytes(t)); !apperr.Is(err, apperr.KindStoreUnavailable) {
		t.Errorf("extractor failure error = %v", err)
	}
	if n := countFiles(t, e.dir); n != 0 {
		t.Errorf("blob left behind after failed extraction: %d files", n)
	}
	var count int64
	e.db.Model(&models.Receipt{}).Count(&count)
	if count != 0 {
		t.Errorf("receipt rows = %d, want 0", count)
	}
}

func TestCommit_CreatesExpenseOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d, err := e.svc.Ingest(ctx, e.user.ID, pngBytes(t))
	if err != nil {
		t.Fatal(err)
	}

	tx, err := e.svc.Commit(ctx, e.user.ID, d.ID, CommitInput{AccountID: e.acct.ID})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if tx.Type != models.TransactionExpense || tx.Amount != 4_250 || tx.Description != "Corner Grocery" {
		t.Errorf("transaction = %+v", tx)
	}
	if !tx.TransactionDate.Equal(testutil.Date(2026, time.March, 10)) {
		t.Errorf("date = %v", tx.TransactionDate)
	}
	if got := testutil.Balance(t, e.db, e.acct.ID); got != 95_750 {
		t.Errorf("balance = %s, want 957.50", got)
	}

	_, err = e.svc.Commit(ctx, e.user.ID, d.ID, CommitInput{AccountID: e.acct.ID})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("second commit error = %v, want conflict", err)
	}
	if got := testutil.Balance(t, e.db, e.acct.ID); got != 95_750 {
		t.Errorf("balance after rejected commit = %s", got)
	}

	if err := e.svc.Delete(ctx, e.user.ID, d.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("delete linked receipt error = %v", err)
	}
}

func TestCommit_Overrides(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.ext.out.SuggestedCategory = "unknown thing"
	d, err := e.svc.Ingest(ctx, e.user.ID, pngBytes(t))
	if err != nil {
		t.Fatal(err)
	}
	if d.SuggestedCategoryID != nil {
		t.Errorf("unexpected category match %v", *d.SuggestedCategoryID)
	}

	// no category anywhere
	if _, err := e.svc.Commit(ctx, e.user.ID, d.ID, CommitInput{AccountID: e.acct.ID}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing category error = %v", err)
	}

	shop := testutil.SystemCategory(t, e.db, "Shopping")
	amount := money.Amount(1_000)
	desc := "Edited"
	tx, err := e.svc.Commit(ctx, e.user.ID, d.ID, CommitInput{AccountID: e.acct.ID, CategoryID: &shop.ID, Amount: &amount, Description: &desc})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if tx.Amount != 1_000 || tx.CategoryID != shop.ID || tx.Description != "Edited" {
		t.Errorf("transaction = %+v", tx)
	}
}

func TestReceiptOwnership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d, err := e.svc.Ingest(ctx, e.user.ID, pngBytes(t))
	if err != nil {
		t.Fatal(err)
	}
	bob := testutil.CreateUser(t, e.db, "bob")
	if _, err := e.svc.Get(ctx, bob.ID, d.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("foreign Get error = %v", err)
	}
	if err := e.svc.Delete(ctx, bob.ID, d.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("foreign Delete error = %v", err)
	}
	rows, total, _ := e.svc.List(ctx, bob.ID, 1, 20)
	if total != 0 || len(rows) != 0 {
		t.Errorf("bob sees %d receipts", total)
	}

	if err := e.svc.Delete(ctx, e.user.ID, d.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if countFiles(t, e.dir) != 0 {
		t.Error("blob not removed")
	}
}

func TestImage_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	img := pngBytes(t)

	d, err := e.svc.Ingest(ctx, e.user.ID, img)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	got, contentType, err := e.svc.Image(ctx, e.user.ID, d.ID)
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if !bytes.Equal(got, img) || contentType != "image/png" {
		t.Errorf("Image() = %d bytes %q", len(got), contentType)
	}

	bob := testutil.CreateUser(t, e.db, "bob")
	if _, _, err := e.svc.Image(ctx, bob.ID, d.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("foreign Image() error = %v, want NotFound", err)
	}

	// blob gone from disk but row still present
	if err := os.RemoveAll(e.dir); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.svc.Image(ctx, e.user.ID, d.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("missing blob error = %v, want NotFound", err)
	}
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	for _, key := range []string{"", "../x", "a/../../b"} {
		if err := s.Put(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("Put(%q) accepted", key)
		}
	}
}

func TestHTTPExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageBase64 == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"merchant_name":" Cafe ","amount":12.5,"date":"2026-03-02",` +
			`"suggested_category":"Food & Dining","confidence":0.8,"line_items":[{"title":"Latte","price":4.75}]}`))
	}))
	defer srv.Close()

	x := NewHTTPExtractor(srv.URL, time.Second, zerolog.Nop())
	got, err := x.Extract(context.Background(), []byte{1, 2, 3}, []string{"Food & Dining"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.MerchantName != "Cafe" || got.Amount != 1_250 || got.Date == nil || got.LineItems[0].Price != 475 {
		t.Errorf("extraction = %+v", got)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()
	if _, err := NewHTTPExtractor(failing.URL, time.Second, zerolog.Nop()).Extract(context.Background(), nil, nil); err == nil {
		t.Error("expected error on 500")
	}
}
