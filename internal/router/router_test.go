package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/auth"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/budget"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/config"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/events"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/receipt"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/report"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/testutil"
)

const testSecret = "router-test-secret-0123456789"

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, []byte, []string) (*receipt.Extraction, error) {
	return &receipt.Extraction{MerchantName: "Bakery", Amount: 1_200, SuggestedCategory: "Food & Dining", Confidence: 0.9}, nil
}

type server struct {
	t  *testing.T
	db *gorm.DB
	r  *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		Server:   config.ServerConfig{Mode: gin.TestMode},
		JWT:      config.JWTConfig{Secret: testSecret, Issuer: "test"},
		Security: config.SecurityConfig{BcryptCost: 4, EncryptionKey: "audit-key"},
		Receipt:  config.ReceiptConfig{MaxUploadMB: 1, MaxConcurrent: 1},
		App:      config.AppSubConfig{PageSize: 20},
	}
	log := zerolog.Nop()
	engine := ledger.NewEngine(db, ledger.NewAccountStore(db), &events.Recorder{}, log)
	blobs, err := receipt.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := SetupRouter(cfg, Deps{
		DB:       db,
		Log:      log,
		Verifier: auth.NewJWTVerifier(testSecret, "test", db),
		Issuer:   auth.NewIssuer(testSecret, "test", time.Hour),
		Hasher:   auth.NewBcryptHasher(4),
		Engine:   engine,
		Budgets:  budget.NewService(db, log),
		Reports:  report.NewService(db, log),
		Receipts: receipt.NewService(db, engine, stubExtractor{}, blobs, receipt.Options{EncryptionKey: "k"}, log),
	})
	return &server{t: t, db: db, r: r}
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Errors  []map[string]string    `json:"errors"`
}

func (s *server) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

// signup registers and logs in, returning the token and user id.
func (s *server) signup(name string) (string, uint) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "Passw0rdX", "confirm_password": "Passw0rdX",
	})
	if code != http.StatusCreated {
		s.t.Fatalf("register %s: %d %+v", name, code, env)
	}
	code, env = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": name, "password": "Passw0rdX"})
	if code != http.StatusOK {
		s.t.Fatalf("login %s: %d %+v", name, code, env)
	}
	user := env.Data["user"].(map[string]interface{})
	return env.Data["token"].(string), uint(user["id"].(float64))
}

func (s *server) openAccount(token, typ string, opening string) uint {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/accounts", token, map[string]string{
		"name": typ + " account", "account_type": typ, "opening_balance": opening,
	})
	if code != http.StatusCreated {
		s.t.Fatalf("open account: %d %+v", code, env)
	}
	return uint(env.Data["account"].(map[string]interface{})["id"].(float64))
}

func (s *server) categoryID(name string) uint {
	return testutil.SystemCategory(s.t, s.db, name).ID
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newServer(t)
	if code, env := s.do(http.MethodGet, "/api/health", "", nil); code != http.StatusOK || !env.Success {
		t.Errorf("health = %d %+v", code, env)
	}
	if code, env := s.do(http.MethodGet, "/api/nope", "", nil); code != http.StatusNotFound || env.Success {
		t.Errorf("unknown route = %d %+v", code, env)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)
	cases := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := s.do(http.MethodGet, "/api/accounts", tc.token, nil)
			if code != http.StatusUnauthorized || env.Success || env.Message == "" {
				t.Errorf("got %d %+v", code, env)
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newServer(t)
	code, env := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "x", "email": "bad", "password": "weak",
	})
	if code != http.StatusBadRequest || len(env.Errors) == 0 {
		t.Errorf("register invalid = %d %+v", code, env)
	}

	s.signup("carol")
	code, _ = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "CAROL", "email": "other@example.com", "password": "Passw0rdX",
	})
	if code != http.StatusConflict {
		t.Errorf("duplicate username = %d, want 409", code)
	}
}

func TestLoginLockout(t *testing.T) {
	s := newServer(t)
	s.signup("dave")
	for i := 0; i < 5; i++ {
		if code, _ := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "dave", "password": "WrongPass1"}); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d = %d", i, code)
		}
	}
	// correct password is refused while locked
	code, env := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "dave", "password": "Passw0rdX"})
	if code != http.StatusUnauthorized || !strings.Contains(env.Message, "try again later") {
		t.Errorf("locked login = %d %+v", code, env)
	}
}

func TestDeactivatedUserIsForbidden(t *testing.T) {
	s := newServer(t)
	token, _ := s.signup("erin")
	if code, _ := s.do(http.MethodPost, "/api/profile/deactivate", token, nil); code != http.StatusOK {
		t.Fatalf("deactivate = %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/api/me", token, nil); code != http.StatusForbidden {
		t.Errorf("me after deactivate = %d, want 403", code)
	}
}

func TestLedgerFlow(t *testing.T) {
	s := newServer(t)
	alice, _ := s.signup("alice")
	bob, bobID := s.signup("bob")

	from := s.openAccount(alice, "checking", "100.00")
	bobAcct := s.openAccount(bob, "savings", "20")

	// signed amount without type is an expense
	code, env := s.do(http.MethodPost, "/api/transactions", alice, map[string]interface{}{
		"account_id": from, "category_id": s.categoryID("Food & Dining"), "amount": -12.5, "description": "Lunch",
	})
	if code != http.StatusCreated {
		t.Fatalf("create transaction = %d %+v", code, env)
	}
	if tx := env.Data["transaction"].(map[string]interface{}); tx["type"] != "EXPENSE" || tx["amount"].(float64) != 12.5 {
		t.Errorf("transaction = %+v", tx)
	}
	if env.Data["account_balance"].(float64) != 87.5 {
		t.Errorf("balance = %v", env.Data["account_balance"])
	}

	// explicit type with a negative amount is rejected
	code, _ = s.do(http.MethodPost, "/api/transactions", alice, map[string]interface{}{
		"account_id": from, "category_id": s.categoryID("Food & Dining"), "type": "EXPENSE", "amount": -1, "description": "x",
	})
	if code != http.StatusBadRequest {
		t.Errorf("typed negative = %d, want 400", code)
	}

	// sub-cent amounts are refused, not rounded
	for _, amt := range []interface{}{"10.005", 0.001} {
		code, env = s.do(http.MethodPost, "/api/transactions", alice, map[string]interface{}{
			"account_id": from, "category_id": s.categoryID("Food & Dining"), "amount": amt, "description": "x",
		})
		if code != http.StatusBadRequest || !strings.Contains(env.Message, "two decimal places") {
			t.Errorf("amount %v = %d %+v, want 400", amt, code, env)
		}
	}

	// bob cannot see alice's account
	if code, _ := s.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d", from), bob, nil); code != http.StatusNotFound {
		t.Errorf("foreign account = %d, want 404", code)
	}

	code, env = s.do(http.MethodPost, "/api/transfers", alice, map[string]interface{}{
		"from_account_id": from, "to_user_id": bobID, "amount": "50", "fee_amount": "2.5", "description": "rent share",
	})
	if code != http.StatusCreated {
		t.Fatalf("transfer = %d %+v", code, env)
	}
	if env.Data["from_account_balance"].(float64) != 35 || env.Data["to_account_balance"].(float64) != 70 {
		t.Errorf("balances = %v / %v", env.Data["from_account_balance"], env.Data["to_account_balance"])
	}
	tr := env.Data["transfer"].(map[string]interface{})
	if uint(tr["to_account_id"].(float64)) != bobAcct {
		t.Errorf("to_account_id = %v, want %d", tr["to_account_id"], bobAcct)
	}

	code, _ = s.do(http.MethodPost, "/api/transfers", alice, map[string]interface{}{
		"from_account_id": from, "to_user_id": bobID, "amount": "40", "description": "too much",
	})
	if code != http.StatusConflict {
		t.Errorf("overdraft transfer = %d, want 409", code)
	}

	code, env = s.do(http.MethodGet, "/api/transfers", bob, nil)
	if code != http.StatusOK || env.Data["total"].(float64) != 1 {
		t.Fatalf("bob transfers = %d %+v", code, env)
	}
	if d := env.Data["items"].([]interface{})[0].(map[string]interface{})["direction"]; d != "received" {
		t.Errorf("direction = %v", d)
	}

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d/running-balance", from), alice, nil)
	if code != http.StatusOK || env.Data["consistent"] != true {
		t.Errorf("running balance = %d %+v", code, env.Data)
	}

	code, env = s.do(http.MethodGet, "/api/reports/summary", alice, nil)
	if code != http.StatusOK {
		t.Fatalf("summary = %d", code)
	}
	if sum := env.Data["summary"].(map[string]interface{}); sum["total_balance"].(float64) != 35 {
		t.Errorf("summary = %+v", sum)
	}

	if code, _ := s.do(http.MethodGet, "/api/reports/monthly?months=0", alice, nil); code != http.StatusBadRequest {
		t.Errorf("months=0 = %d, want 400", code)
	}
	if code, _ := s.do(http.MethodGet, "/api/reports/health", alice, nil); code != http.StatusOK {
		t.Errorf("health = %d", code)
	}

	var logs int64
	s.db.Model(&models.AuditLog{}).Count(&logs)
	if logs == 0 {
		t.Error("no audit rows written")
	}
	code, env = s.do(http.MethodGet, "/api/audit-logs", alice, nil)
	if code != http.StatusOK || env.Data["total"].(float64) == 0 {
		t.Errorf("audit logs = %d %+v", code, env.Data)
	}
}

func TestBudgetOverAllocation(t *testing.T) {
	s := newServer(t)
	token, _ := s.signup("frank")
	body := map[string]interface{}{
		"name": "March", "start_date": "2026-03-01", "end_date": "2026-03-31", "total_limit": "500",
		"categories": []map[string]interface{}{
			{"category_id": s.categoryID("Food & Dining"), "allocated_amount": "300"},
			{"category_id": s.categoryID("Shopping"), "allocated_amount": "220"},
		},
	}
	if code, _ := s.do(http.MethodPost, "/api/budgets", token, body); code != http.StatusConflict {
		t.Errorf("over-allocated budget = %d, want 409", code)
	}
	body["total_limit"] = "600"
	code, env := s.do(http.MethodPost, "/api/budgets", token, body)
	if code != http.StatusCreated {
		t.Fatalf("budget = %d %+v", code, env)
	}
	id := env.Data["budget"].(map[string]interface{})["id"].(float64)
	if code, _ := s.do(http.MethodGet, fmt.Sprintf("/api/budgets/%d", int(id)), token, nil); code != http.StatusOK {
		t.Errorf("budget progress = %d", code)
	}
}

func TestExportCSV(t *testing.T) {
	s := newServer(t)
	token, _ := s.signup("gina")
	s.openAccount(token, "checking", "10")

	req := httptest.NewRequest(http.MethodGet, "/api/export/csv?token="+token, nil)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Date,Type,Category") || !strings.Contains(body, "Opening Balance") {
		t.Errorf("csv = %q", body)
	}
}

func TestReceiptUploadAndCommit(t *testing.T) {
	s := newServer(t)
	token, _ := s.signup("hana")
	acct := s.openAccount(token, "checking", "50")

	var img bytes.Buffer
	_ = png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2)))
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, _ := mw.CreateFormFile("image", "r.png")
	_, _ = fw.Write(img.Bytes())
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/receipts", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", w.Code, w.Body.String())
	}
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	rc := env.Data["receipt"].(map[string]interface{})
	id := int(rc["id"].(float64))
	imagePath := fmt.Sprintf("/api/receipts/%d/image", id)
	if rc["image_url"] != imagePath {
		t.Errorf("image_url = %v, want %s", rc["image_url"], imagePath)
	}

	other, _ := s.signup("ivan")
	for _, tc := range []struct {
		name   string
		token  string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"other user", other, http.StatusNotFound},
		{"owner", token, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, imagePath, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		s.r.ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Errorf("%s image = %d, want %d", tc.name, w.Code, tc.status)
			continue
		}
		if tc.status == http.StatusOK && (!bytes.Equal(w.Body.Bytes(), img.Bytes()) || w.Header().Get("Content-Type") != "image/png") {
			t.Errorf("owner image = %q, %d bytes", w.Header().Get("Content-Type"), w.Body.Len())
		}
	}

	path := fmt.Sprintf("/api/receipts/%d/transaction", id)
	code, env := s.do(http.MethodPost, path, token, map[string]interface{}{"account_id": acct})
	if code != http.StatusCreated {
		t.Fatalf("commit = %d %+v", code, env)
	}
	if code, _ := s.do(http.MethodPost, path, token, map[string]interface{}{"account_id": acct}); code != http.StatusConflict {
		t.Errorf("second commit = %d, want 409", code)
	}
}
