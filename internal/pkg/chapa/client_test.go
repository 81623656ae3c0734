package chapa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitialize_SendsBearerAndReturnsCheckoutURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("unexpected authorization: %q", got)
		}
		var req InitializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.TxRef != "DEP-ABC" || req.Currency != "ETB" || req.Amount != "50.00" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"message":"Hosted Link","status":"success","data":{"checkout_url":"https://checkout.chapa.co/x"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test"})
	resp, err := client.Initialize(context.Background(), InitializeRequest{Amount: "50.00", TxRef: "DEP-ABC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data.CheckoutURL != "https://checkout.chapa.co/x" {
		t.Fatalf("unexpected checkout url: %s", resp.Data.CheckoutURL)
	}
}

func TestInitialize_Non2xxIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream down`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test"})
	_, err := client.Initialize(context.Background(), InitializeRequest{Amount: "1", TxRef: "DEP-1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected APIError 502, got %v", err)
	}
}

func TestInitialize_NotConfigured(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Initialize(context.Background(), InitializeRequest{Amount: "1", TxRef: "DEP-1"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestVerify_ParsesStringAndNumberAmounts(t *testing.T) {
	for _, amount := range []string{`"75.50"`, `75.5`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/transaction/verify/DEP-XYZ" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			w.Write([]byte(`{"status":"success","data":{"status":"success","amount":` + amount + `,"tx_ref":"DEP-XYZ"}}`))
		}))

		client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test"})
		resp, err := client.Verify(context.Background(), "DEP-XYZ")
		srv.Close()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.Paid() {
			t.Fatalf("expected paid")
		}
		if resp.Data.Amount.StringFixed(2) != "75.50" {
			t.Fatalf("unexpected amount: %s", resp.Data.Amount)
		}
	}
}
