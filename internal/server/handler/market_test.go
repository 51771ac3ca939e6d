package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/service"
)

func newMarketHandler(t *testing.T) *MarketHandler {
	t.Helper()

	instruments := &memInstrumentStore{instruments: map[string]domain.Instrument{
		"BTC-BRL": {Symbol: "BTC-BRL", Status: domain.InstrumentStatusActive},
		"ETH-BRL": {Symbol: "ETH-BRL", Status: domain.InstrumentStatusActive},
	}}
	snapshots := &memSnapshotCache{snapshots: map[string]domain.MarketSnapshot{
		"BTC-BRL": {
			Symbol:    "BTC-BRL",
			LastPrice: d("100"),
			BestBid:   d("99"),
			BestAsk:   d("101"),
			UpdatedAt: time.Now().UTC(),
		},
		"ETH-BRL": {
			Symbol:    "ETH-BRL",
			LastPrice: d("10"),
			BestBid:   d("9.9"),
			BestAsk:   d("10.1"),
			UpdatedAt: time.Now().UTC(),
		},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMarketHandler(service.NewMarketService(instruments, snapshots, logger), logger)
}

func getSnapshots(t *testing.T, h *MarketHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.GetSnapshots(rec, req)
	return rec
}

func TestGetSnapshotsBatch(t *testing.T) {
	h := newMarketHandler(t)

	rec := getSnapshots(t, h, "/api/markets/snapshots?symbols=BTC-BRL,ETH-BRL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var body struct {
		Snapshots map[string]domain.MarketSnapshot `json:"snapshots"`
		Count     int                              `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 2 || len(body.Snapshots) != 2 {
		t.Fatalf("count = %d with %d snapshots, want 2", body.Count, len(body.Snapshots))
	}
	if !body.Snapshots["BTC-BRL"].LastPrice.Equal(d("100")) {
		t.Errorf("BTC-BRL last price = %s, want 100", body.Snapshots["BTC-BRL"].LastPrice)
	}
}

func TestGetSnapshotsOmitsUnknownSymbols(t *testing.T) {
	h := newMarketHandler(t)

	// Whitespace around symbols is tolerated; unknown symbols are skipped
	// rather than failing the refresh.
	rec := getSnapshots(t, h, "/api/markets/snapshots?symbols=BTC-BRL,%20DOGE-BRL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var body struct {
		Snapshots map[string]domain.MarketSnapshot `json:"snapshots"`
		Count     int                              `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1; body %s", body.Count, rec.Body)
	}
	if _, ok := body.Snapshots["DOGE-BRL"]; ok {
		t.Error("unknown symbol should be absent from the result")
	}
}

func TestGetSnapshotsRequiresSymbols(t *testing.T) {
	h := newMarketHandler(t)

	for _, target := range []string{
		"/api/markets/snapshots",
		"/api/markets/snapshots?symbols=",
		"/api/markets/snapshots?symbols=%20,%20",
	} {
		if rec := getSnapshots(t, h, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}
