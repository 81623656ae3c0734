package telebirr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateOrder_HostedCheckoutWithoutBaseURL(t *testing.T) {
	client := NewClient(Config{CheckoutURL: "https://quizbirr.app/pay/"})
	resp, err := client.CreateOrder(context.Background(), OrderRequest{MerchantOrderID: "DEP-42", Amount: "10.00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data.ToPayURL != "https://quizbirr.app/pay/DEP-42" {
		t.Fatalf("unexpected url: %s", resp.Data.ToPayURL)
	}
}

func TestCreateOrder_CallsPreOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/v1/merchant/preOrder" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.MerchantCode != "M1" || req.AppID != "app" || req.Currency != "ETB" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"code":"0","msg":"ok","data":{"prepay_id":"p1","toPayUrl":"https://tb/pay/p1"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, AppID: "app", MerchantCode: "M1"})
	resp, err := client.CreateOrder(context.Background(), OrderRequest{MerchantOrderID: "DEP-1", Amount: "5.00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data.PrepayID != "p1" || resp.Data.ToPayURL != "https://tb/pay/p1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateOrder_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, AppID: "app", MerchantCode: "M1"})
	if _, err := client.CreateOrder(context.Background(), OrderRequest{MerchantOrderID: "DEP-1"}); err == nil {
		t.Fatal("expected error")
	}
}
