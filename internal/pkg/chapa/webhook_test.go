package chapa

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"tx_ref":"DEP-1","amount":"10"}}`)
	sig := GenerateSignature(body, "whsec")

	if !VerifySignature(body, sig, "whsec") {
		t.Fatal("expected valid signature")
	}
	if VerifySignature(body, sig, "other") {
		t.Fatal("expected mismatch for wrong secret")
	}
	if VerifySignature(append(body, ' '), sig, "whsec") {
		t.Fatal("expected mismatch for modified body")
	}
	if VerifySignature(body, "", "whsec") || VerifySignature(body, sig, "") {
		t.Fatal("expected false when secret or signature is missing")
	}
	if VerifySignature(body, "not-hex", "whsec") {
		t.Fatal("expected false for malformed signature")
	}
}

func TestParseWebhook(t *testing.T) {
	e, err := ParseWebhook([]byte(`{"event":"charge.success","data":{"id":"ch_1","status":"success","amount":120.25,"tx_ref":"DEP-9"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Succeeded() || e.Data.TxRef != "DEP-9" || e.Data.Amount.StringFixed(2) != "120.25" {
		t.Fatalf("unexpected event: %+v", e)
	}

	for _, body := range []string{`not json`, `{"event":"charge.success","data":{}}`, `{"data":{"tx_ref":"DEP-1"}}`} {
		if _, err := ParseWebhook([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload for %s, got %v", body, err)
		}
	}
}
