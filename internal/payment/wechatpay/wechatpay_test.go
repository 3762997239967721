package wechatpay

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dujiao-next/orderflow/internal/payment"
)

func buildTestConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	cfg, err := ParseConfig(map[string]interface{}{
		"mchid":                "1900000109",
		"merchant_serial_no":   "ABC123456789",
		"merchant_private_key": buildTestPrivateKey(),
		"api_v3_key":           "12345678901234567890123456789012",
		"notify_url":           "https://example.com/api/v1/refunds/callback",
		"base_url":             baseURL,
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	return cfg
}

func TestParseConfigFallbackBaseURL(t *testing.T) {
	cfg := buildTestConfig(t, "")
	if cfg.BaseURL != defaultBaseURL {
		t.Fatalf("base url should fallback to default, got: %s", cfg.BaseURL)
	}
	if _, err := NewGateway(cfg); err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
}

func TestNewGatewayInvalidAPIV3KeyLength(t *testing.T) {
	cfg := buildTestConfig(t, "")
	cfg.APIV3Key = "short"
	if _, err := NewGateway(cfg); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got: %v", err)
	}
}

func TestRefundAcceptedIsPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != refundCreatePath {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body failed: %v", err)
		}
		if body["transaction_id"] != "4200002001202602100000001" {
			t.Fatalf("unexpected transaction_id: %v", body["transaction_id"])
		}
		if body["out_refund_no"] != "RF01" {
			t.Fatalf("unexpected out_refund_no: %v", body["out_refund_no"])
		}
		amount, _ := body["amount"].(map[string]interface{})
		if amount["refund"] != float64(10000) || amount["total"] != float64(20000) {
			t.Fatalf("unexpected amount: %v", amount)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"refund_id":"50000000382019052709732678859","out_refund_no":"RF01","status":"PROCESSING"}`))
	}))
	defer server.Close()

	gateway, err := NewGateway(buildTestConfig(t, server.URL))
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	result, err := gateway.Refund(context.Background(), payment.RefundRequest{
		OrderNo:       "OF20260210100000123456",
		TransactionNo: "4200002001202602100000001",
		RefundNo:      "RF01",
		AmountMinor:   10000,
		TotalMinor:    20000,
		Currency:      "CNY",
		Reason:        "尺码不合适",
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if result.ProviderRefundID != "50000000382019052709732678859" {
		t.Fatalf("unexpected refund id: %s", result.ProviderRefundID)
	}
	if result.State != payment.RefundPending || result.ProviderStatus != RefundStatusProcessing {
		t.Fatalf("accepted refund must stay pending, got state=%s status=%s", result.State, result.ProviderStatus)
	}
}

func TestParseRefundResultStates(t *testing.T) {
	cases := []struct {
		raw   map[string]interface{}
		state payment.RefundState
	}{
		{raw: map[string]interface{}{"status": "SUCCESS", "refund_id": "50001"}, state: payment.RefundSucceeded},
		{raw: map[string]interface{}{"status": "PROCESSING", "refund_id": "50000"}, state: payment.RefundPending},
		{raw: map[string]interface{}{"status": "CLOSED", "refund_id": "50002"}, state: payment.RefundFailed},
		{raw: map[string]interface{}{"status": "ABNORMAL"}, state: payment.RefundFailed},
	}
	for _, tc := range cases {
		result, err := parseRefundResult(tc.raw, "RF01")
		if err != nil {
			t.Fatalf("parse %v failed: %v", tc.raw, err)
		}
		if result.State != tc.state {
			t.Fatalf("status %v want %s got %s", tc.raw["status"], tc.state, result.State)
		}
	}

	if _, err := parseRefundResult(map[string]interface{}{"status": "SUCCESS"}, "RF01"); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("missing refund_id should be invalid, got: %v", err)
	}
	if _, err := parseRefundResult(map[string]interface{}{"status": "UNKNOWN"}, "RF01"); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("unknown status should be invalid, got: %v", err)
	}
}

func TestQueryRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != refundQueryPath+"RF01" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"refund_id":"50000000382019052709732678859","out_refund_no":"RF01","status":"SUCCESS"}`))
	}))
	defer server.Close()

	gateway, err := NewGateway(buildTestConfig(t, server.URL))
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	result, err := gateway.QueryRefund(context.Background(), "RF01")
	if err != nil {
		t.Fatalf("query refund failed: %v", err)
	}
	if result.State != payment.RefundSucceeded || result.ProviderRefundID != "50000000382019052709732678859" {
		t.Fatalf("unexpected query result: %+v", result)
	}
	if _, err := gateway.QueryRefund(context.Background(), " "); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("blank refund no should be rejected, got: %v", err)
	}
}

func TestRefundRejectedByProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"refund_id":"5000","out_refund_no":"RF02","status":"ABNORMAL"}`))
	}))
	defer server.Close()

	gateway, err := NewGateway(buildTestConfig(t, server.URL))
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	_, err = gateway.Refund(context.Background(), payment.RefundRequest{
		OrderNo:     "OF1",
		RefundNo:    "RF02",
		AmountMinor: 100,
		TotalMinor:  100,
	})
	if !errors.Is(err, payment.ErrRefundRejected) {
		t.Fatalf("expected ErrRefundRejected, got: %v", err)
	}
}

func TestRefundHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"NOT_ENOUGH","message":"基本账户余额不足"}`))
	}))
	defer server.Close()

	gateway, err := NewGateway(buildTestConfig(t, server.URL))
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	_, err = gateway.Refund(context.Background(), payment.RefundRequest{
		OrderNo:     "OF1",
		RefundNo:    "RF03",
		AmountMinor: 100,
		TotalMinor:  100,
	})
	if err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
	if !errors.Is(err, ErrResponseInvalid) && !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("unexpected error type: %v", err)
	}
}

func TestBuildRefundPayloadValidation(t *testing.T) {
	cfg := buildTestConfig(t, "")
	cases := []payment.RefundRequest{
		{OrderNo: "OF1", AmountMinor: 100, TotalMinor: 100},
		{OrderNo: "OF1", RefundNo: "RF1", AmountMinor: 0, TotalMinor: 100},
		{OrderNo: "OF1", RefundNo: "RF1", AmountMinor: 200, TotalMinor: 100},
		{RefundNo: "RF1", AmountMinor: 100, TotalMinor: 100},
	}
	for i, req := range cases {
		if _, err := buildRefundPayload(cfg, req); !errors.Is(err, ErrConfigInvalid) {
			t.Fatalf("case %d: expected ErrConfigInvalid, got: %v", i, err)
		}
	}
}

func buildTestPrivateKey() string {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	privateKeyDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		panic(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateKeyDER}))
}
