package hasura

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type capturedRequest struct {
	header http.Header
	body   string
}

func newServer(t *testing.T, status int, response string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string            `json:"query"`
			Variables map[string]string `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if captured != nil {
			raw, _ := json.Marshal(body)
			captured.header = r.Header.Clone()
			captured.body = body.Query + "\n" + string(raw)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
}

func TestGetPaymentsByReference(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, http.StatusOK, `{"data":{"payments":[{
		"id":"tron-0x123-0","chain":"tron","tx_hash":"0x123abc","block_number":79238121,"timestamp":1738742584,
		"contract_address":"TCUDPYnS9dH3WvFEaE7wN7vnDa51J4R4fd","token_address":"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		"from_address":"TFromAddress123","to_address":"TToAddress456","amount":100000000,"fee_amount":"1000000",
		"fee_address":"TFeeAddress789","payment_reference":"0xabc123","energy_used":"65000","energy_fee":"26.3","net_fee":"0"}]}}`, &captured)
	defer srv.Close()

	client := NewClient(Options{
		URL:         srv.URL,
		AdminSecret: "test-secret",
		Headers:     map[string]string{"X-Custom-Header": "custom-value"},
	})
	payments, err := client.GetPaymentsByReference(context.Background(), PaymentsQuery{
		PaymentReference: "0xabc123",
		ToAddress:        "TToAddress456",
		Chain:            "tron",
		TokenAddress:     "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		ContractAddress:  "TCUDPYnS9dH3WvFEaE7wN7vnDa51J4R4fd",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(payments))
	}
	if payments[0].Amount != "100000000" || payments[0].FeeAmount != "1000000" || payments[0].EnergyFee != "26.3" {
		t.Fatalf("unexpected payment: %+v", payments[0])
	}

	if captured.header.Get("x-hasura-admin-secret") != "test-secret" {
		t.Fatalf("admin secret header missing")
	}
	if captured.header.Get("X-Custom-Header") != "custom-value" {
		t.Fatalf("custom header missing")
	}
	for _, want := range []string{"payment_reference", "chain: { _eq: $chain }", "token_address: { _ilike:", "contract_address: { _ilike:"} {
		if !strings.Contains(captured.body, want) {
			t.Fatalf("query missing %q: %s", want, captured.body)
		}
	}
}

func TestGetPaymentsByReferenceOmitsEmptyFilters(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, http.StatusOK, `{"data":{"payments":[]}}`, &captured)
	defer srv.Close()

	payments, err := NewClient(Options{URL: srv.URL}).GetPaymentsByReference(context.Background(), PaymentsQuery{
		PaymentReference: "0xnonexistent",
		ToAddress:        "TToAddress456",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if payments == nil || len(payments) != 0 {
		t.Fatalf("expected empty slice, got %v", payments)
	}
	if strings.Contains(captured.body, "token_address: {") || captured.header.Get("x-hasura-admin-secret") != "" {
		t.Fatalf("unexpected optional filter or header: %s", captured.body)
	}
}

func TestGetPaymentsByReferenceErrors(t *testing.T) {
	failing := newServer(t, http.StatusInternalServerError, ``, nil)
	defer failing.Close()
	_, err := NewClient(Options{URL: failing.URL}).GetPaymentsByReference(context.Background(), PaymentsQuery{PaymentReference: "0x1", ToAddress: "T"})
	if err == nil || err.Error() != "Hasura request failed: Internal Server Error" {
		t.Fatalf("unexpected error: %v", err)
	}

	invalid := newServer(t, http.StatusOK, `{"errors":[{"message":"Field not found"}]}`, nil)
	defer invalid.Close()
	_, err = NewClient(Options{URL: invalid.URL}).GetPaymentsByReference(context.Background(), PaymentsQuery{PaymentReference: "0x1", ToAddress: "T"})
	if err == nil || !strings.HasPrefix(err.Error(), "Hasura query error:") {
		t.Fatalf("unexpected error: %v", err)
	}
}
