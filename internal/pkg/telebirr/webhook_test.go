package telebirr

import (
	"errors"
	"testing"
)

func TestParseNotification_ReferenceFallbacks(t *testing.T) {
	tests := []struct {
		body string
		ref  string
	}{
		{`{"reference":"DEP-1","status":"success"}`, "DEP-1"},
		{`{"orderId":"DEP-2","status":"completed"}`, "DEP-2"},
		{`{"merchantOrderId":"DEP-3","status":"SUCCESS"}`, "DEP-3"},
	}
	for _, tt := range tests {
		n, err := ParseNotification([]byte(tt.body))
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.body, err)
		}
		if n.Reference != tt.ref || !n.Succeeded() {
			t.Fatalf("unexpected notification for %s: %+v", tt.body, n)
		}
	}
}

func TestParseNotification_AmountAndFailure(t *testing.T) {
	n, err := ParseNotification([]byte(`{"reference":"DEP-1","status":"failed","amount":"25.5"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Succeeded() {
		t.Fatal("expected failed status")
	}
	if n.Amount == nil || n.Amount.StringFixed(2) != "25.50" {
		t.Fatalf("unexpected amount: %v", n.Amount)
	}

	if _, err := ParseNotification([]byte(`{"status":"success"}`)); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"reference":"DEP-1","status":"success"}`)
	sig := GenerateSignature(body, "tb-secret")
	if !VerifySignature(body, sig, "tb-secret") {
		t.Fatal("expected valid signature")
	}
	if VerifySignature(body, sig, "") || VerifySignature(body, "", "tb-secret") {
		t.Fatal("expected false when secret or signature missing")
	}
	if VerifySignature([]byte(`{}`), sig, "tb-secret") {
		t.Fatal("expected mismatch")
	}
}
