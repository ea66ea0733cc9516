package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gorm.io/gorm"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:       http.StatusBadRequest,
		KindNotFound:         http.StatusNotFound,
		KindForbidden:        http.StatusForbidden,
		KindConflict:         http.StatusConflict,
		KindUnauthenticated:  http.StatusUnauthorized,
		KindStoreUnavailable: http.StatusServiceUnavailable,
		KindInternal:         http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := HTTPStatus(k); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", k, got, want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("create transfer: %w", Conflict("insufficient balance"))
	if KindOf(err) != KindConflict {
		t.Fatalf("KindOf = %s", KindOf(err))
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("plain errors should be internal")
	}
	if Is(nil, KindInternal) {
		t.Fatal("nil error has no kind")
	}
}

func TestFromStore(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, KindNotFound},
		{"unique", errors.New("UNIQUE constraint failed: transactions.receipt_id"), KindConflict},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), KindStoreUnavailable},
		{"already classified", Forbidden("no"), KindForbidden},
		{"other", errors.New("syntax error near FROM"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(FromStore(tc.err, "missing")); got != tc.want {
				t.Errorf("FromStore(%v) kind = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
	if FromStore(nil, "x") != nil {
		t.Fatal("nil stays nil")
	}
}

func TestInternalMessageHidesCause(t *testing.T) {
	err := Internal("unexpected data store error", errors.New("SELECT * FROM secrets"))
	if err.Message != "unexpected data store error" {
		t.Fatalf("message = %q", err.Message)
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("cause should stay reachable through Unwrap")
	}
}
