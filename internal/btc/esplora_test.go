package btc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"paymentScope/internal/model"
	"paymentScope/internal/retry"
)

const watched = "mgPKDuVmuS9oeE2D9VPiCQriyU14wxWS1v"

func tx(id string, height, blockTime uint64, from string, outputs map[string]uint64) map[string]any {
	vout := make([]map[string]any, 0, len(outputs))
	for address, value := range outputs {
		vout = append(vout, map[string]any{"scriptpubkey_address": address, "value": value})
	}
	return map[string]any{
		"txid":   id,
		"status": map[string]any{"confirmed": true, "block_height": height, "block_time": blockTime},
		"vin":    []map[string]any{{"prevout": map[string]any{"scriptpubkey_address": from, "value": 1}}},
		"vout":   vout,
	}
}

func newTestProvider(url string) *EsploraProvider {
	return NewEsploraProvider("test", map[Network]string{Testnet: url + "/"}, EsploraOptions{
		Retry: retry.Fixed(3, time.Millisecond),
	})
}

func TestEsploraPaginatesAndParses(t *testing.T) {
	firstPage := make([]map[string]any, 0, TxsPerPage)
	for i := 0; i < TxsPerPage-1; i++ {
		firstPage = append(firstPage, tx(fmt.Sprintf("other%d", i), 100, 1000, "payer", map[string]uint64{"elsewhere": 7}))
	}
	firstPage = append(firstPage, tx("pay1", 101, 1100, "payer", map[string]uint64{watched: 1000, "change": 5}))
	secondPage := []map[string]any{
		tx("pay2", 102, 1200, "payer", map[string]uint64{watched: 500}),
		tx("self", 103, 1300, watched, map[string]uint64{watched: 9999}),
	}

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/address/" + watched + "/txs":
			_ = json.NewEncoder(w).Encode(firstPage)
		case "/address/" + watched + "/txs/chain/pay1":
			_ = json.NewEncoder(w).Encode(secondPage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	result := newTestProvider(srv.URL).GetAddressBalanceWithEvents(context.Background(), Testnet, watched, model.EventPayment)
	if len(paths) != 2 {
		t.Fatalf("expected two pages, got %v", paths)
	}
	if result.Balance != "1500" {
		t.Fatalf("unexpected balance %s", result.Balance)
	}
	want := []model.PaymentEvent{
		{Amount: "1000", Name: model.EventPayment, Timestamp: model.Timestamp(1100), Parameters: model.EventParameters{Block: 101, TxHash: "pay1"}},
		{Amount: "500", Name: model.EventPayment, Timestamp: model.Timestamp(1200), Parameters: model.EventParameters{Block: 102, TxHash: "pay2"}},
	}
	if !reflect.DeepEqual(result.Events, want) {
		t.Fatalf("unexpected events: %+v", result.Events)
	}
}

func TestEsploraBadStatusIsFailedBalance(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	result := newTestProvider(srv.URL).GetAddressBalanceWithEvents(context.Background(), Testnet, watched, model.EventRefund)
	if result.Balance != FailedBalance || len(result.Events) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("bad status must not be retried, got %d calls", hits)
	}
}

func TestEsploraRetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	url := srv.URL
	srv.Close()

	result := newTestProvider(url).GetAddressBalanceWithEvents(context.Background(), Testnet, watched, model.EventPayment)
	if result.Balance != FailedBalance {
		t.Fatalf("expected exhausted retries to fail, got %+v", result)
	}
}

type failingTransport struct{ calls int32 }

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, fmt.Errorf("connection refused")
}

func TestEsploraKeepsConfiguredRetriesWithoutDelay(t *testing.T) {
	transport := &failingTransport{}
	provider := NewEsploraProvider("test", map[Network]string{Testnet: "http://esplora.invalid"}, EsploraOptions{
		HTTPClient: &http.Client{Transport: transport},
		Retry:      retry.Policy{MaxRetries: 1},
	})
	result := provider.GetAddressBalanceWithEvents(context.Background(), Testnet, watched, model.EventPayment)
	if result.Balance != FailedBalance {
		t.Fatalf("expected failure, got %+v", result)
	}
	if calls := atomic.LoadInt32(&transport.calls); calls != 2 {
		t.Fatalf("expected 1 attempt + 1 retry, got %d calls", calls)
	}
}

func TestEsploraUnknownNetwork(t *testing.T) {
	result := newTestProvider("http://unused").GetAddressBalanceWithEvents(context.Background(), Mainnet, watched, model.EventPayment)
	if result.Balance != FailedBalance {
		t.Fatalf("expected missing endpoint to fail, got %+v", result)
	}
}

func TestDefaultProviderURLs(t *testing.T) {
	if !strings.HasPrefix(BlockstreamURLs[Mainnet], "https://blockstream.info/api") ||
		!strings.HasPrefix(BlockstreamURLs[Testnet], "https://blockstream.info/testnet/api") {
		t.Fatalf("unexpected blockstream urls: %v", BlockstreamURLs)
	}
	if NewMempoolProvider(EsploraOptions{}).Name() != "mempool" || NewBlockstreamProvider(EsploraOptions{}).Name() != "blockstream" {
		t.Fatalf("unexpected provider names")
	}
}
