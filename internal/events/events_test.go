package events

import (
	"context"
	"strings"
	"testing"
)

func TestEventJSON(t *testing.T) {
	e := New(TypeTransferCreated, 7, 42, 6000)
	e.Reference = "TRF-20240101-ABCDEF12"
	e.AccountIDs = []uint{1, 2}

	body, err := e.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if !strings.Contains(string(body), `"amount":60.00`) {
		t.Errorf("amount not serialized with two fraction digits: %s", body)
	}

	back, err := FromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if back.Type != TypeTransferCreated || back.ResourceID != 42 || back.Amount != 6000 || len(back.AccountIDs) != 2 {
		t.Errorf("unexpected event %+v", back)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), New(TypeTransactionCreated, 1, 2, 100))
	got := r.Events()
	if len(got) != 1 || got[0].Type != TypeTransactionCreated {
		t.Fatalf("recorder events = %+v", got)
	}
	if err := (Nop{}).Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}
