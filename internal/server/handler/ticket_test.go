package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/service"
	"github.com/rioporto/orderdesk/internal/ticket"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type memInstrumentStore struct {
	instruments map[string]domain.Instrument
}

func (m *memInstrumentStore) Upsert(_ context.Context, inst domain.Instrument) error {
	m.instruments[inst.Symbol] = inst
	return nil
}

func (m *memInstrumentStore) UpsertBatch(ctx context.Context, insts []domain.Instrument) error {
	for _, inst := range insts {
		m.instruments[inst.Symbol] = inst
	}
	return nil
}

func (m *memInstrumentStore) GetBySymbol(_ context.Context, symbol string) (domain.Instrument, error) {
	inst, ok := m.instruments[symbol]
	if !ok {
		return domain.Instrument{}, domain.ErrNotFound
	}
	return inst, nil
}

func (m *memInstrumentStore) ListActive(_ context.Context, _ domain.ListOpts) ([]domain.Instrument, error) {
	out := []domain.Instrument{}
	for _, inst := range m.instruments {
		if inst.Status == domain.InstrumentStatusActive {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *memInstrumentStore) Count(_ context.Context) (int64, error) {
	return int64(len(m.instruments)), nil
}

type memSnapshotCache struct {
	snapshots map[string]domain.MarketSnapshot
}

func (m *memSnapshotCache) Set(_ context.Context, snap domain.MarketSnapshot) error {
	m.snapshots[snap.Symbol] = snap
	return nil
}

func (m *memSnapshotCache) Get(_ context.Context, symbol string) (domain.MarketSnapshot, error) {
	snap, ok := m.snapshots[symbol]
	if !ok {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (m *memSnapshotCache) GetMany(ctx context.Context, symbols []string) (map[string]domain.MarketSnapshot, error) {
	out := make(map[string]domain.MarketSnapshot)
	for _, sym := range symbols {
		if snap, err := m.Get(ctx, sym); err == nil {
			out[sym] = snap
		}
	}
	return out, nil
}

type memBalanceCache struct {
	balances map[string]map[string]decimal.Decimal
}

func (m *memBalanceCache) SetBalance(_ context.Context, account, asset string, available decimal.Decimal) error {
	if m.balances[account] == nil {
		m.balances[account] = make(map[string]decimal.Decimal)
	}
	m.balances[account][asset] = available
	return nil
}

func (m *memBalanceCache) GetBalance(_ context.Context, account, asset string) (decimal.Decimal, error) {
	bal, ok := m.balances[account][asset]
	if !ok {
		return decimal.Decimal{}, domain.ErrNotFound
	}
	return bal, nil
}

func (m *memBalanceCache) GetBalances(_ context.Context, account string) (map[string]decimal.Decimal, error) {
	bal, ok := m.balances[account]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return bal, nil
}

type openLimiter struct{}

func (openLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	return true, nil
}

type nopBus struct{}

func (nopBus) Publish(_ context.Context, _ string, _ []byte) error { return nil }

func (nopBus) Subscribe(_ context.Context, _ ...string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage)
	close(ch)
	return ch, nil
}

type nopAudit struct{}

func (nopAudit) Log(_ context.Context, _ string, _ map[string]any) error { return nil }

func (nopAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type acceptGateway struct {
	cancelErr error
}

func (g *acceptGateway) PostOrder(_ context.Context, payload domain.OrderPayload) (domain.SubmitResult, error) {
	return domain.SubmitResult{
		Accepted:      true,
		VenueOrderID:  "V-42",
		ClientOrderID: payload.ClientOrderID,
		SubmittedAt:   time.Now().UTC(),
	}, nil
}

func (g *acceptGateway) CancelOrder(_ context.Context, _ string) error { return g.cancelErr }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

func newTicketHandler(t *testing.T) *TicketHandler {
	t.Helper()
	return newTicketHandlerWith(t, &acceptGateway{})
}

func newTicketHandlerWith(t *testing.T, gateway domain.OrderGateway) *TicketHandler {
	t.Helper()

	instruments := &memInstrumentStore{instruments: map[string]domain.Instrument{
		"BTC-BRL": {
			Symbol:      "BTC-BRL",
			BaseAsset:   "BTC",
			QuoteAsset:  "BRL",
			TickSize:    d("0.01"),
			StepSize:    d("0.00000001"),
			MinQuantity: d("0.0001"),
			Status:      domain.InstrumentStatusActive,
		},
	}}
	snapshots := &memSnapshotCache{snapshots: map[string]domain.MarketSnapshot{
		"BTC-BRL": {
			Symbol:    "BTC-BRL",
			LastPrice: d("100"),
			BestBid:   d("99"),
			BestAsk:   d("101"),
			UpdatedAt: time.Now().UTC(),
		},
	}}
	balances := &memBalanceCache{balances: map[string]map[string]decimal.Decimal{
		"acct-1": {"BTC": d("2"), "BRL": d("100000")},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fees := ticket.FeeSchedule{Maker: d("0.001"), Taker: d("0.005")}

	svc := service.NewTicketService(
		instruments, snapshots, balances,
		openLimiter{}, nopBus{}, nopAudit{}, fees, logger,
	)
	if gateway != nil {
		svc = svc.WithGateway(gateway)
	}

	return NewTicketHandler(svc, logger)
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestEvaluateEndpointSubmittable(t *testing.T) {
	h := newTicketHandler(t)

	rec := postJSON(t, h.Evaluate, `{
		"account": "acct-1",
		"symbol": "BTC-BRL",
		"ticket": {"side": "buy", "kind": "market", "quantity": "1"}
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var eval domain.EvaluatedTicket
	if err := json.Unmarshal(rec.Body.Bytes(), &eval); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(eval.Errors) != 0 {
		t.Errorf("errors = %v, want none", eval.Errors)
	}
	if !eval.NetTotal.Equal(d("101.505")) {
		t.Errorf("net total = %s, want 101.505", eval.NetTotal)
	}
}

func TestEvaluateEndpointReportsFailuresWith200(t *testing.T) {
	h := newTicketHandler(t)

	rec := postJSON(t, h.Evaluate, `{
		"account": "acct-1",
		"symbol": "BTC-BRL",
		"ticket": {"side": "buy", "kind": "limit"}
	}`)

	// Validation failures ride in the body, not the status code.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var eval domain.EvaluatedTicket
	if err := json.Unmarshal(rec.Body.Bytes(), &eval); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(eval.Errors) == 0 {
		t.Fatal("expected validation errors in body")
	}
}

func TestEvaluateEndpointBadRequests(t *testing.T) {
	h := newTicketHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing account", `{"symbol": "BTC-BRL", "ticket": {"side": "buy", "kind": "market"}}`},
		{"unknown symbol", `{"account": "acct-1", "symbol": "NOPE", "ticket": {"side": "buy", "kind": "market", "quantity": "1"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Evaluate, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestSubmitEndpointCreated(t *testing.T) {
	h := newTicketHandler(t)

	rec := postJSON(t, h.Submit, `{
		"account": "acct-1",
		"symbol": "BTC-BRL",
		"ticket": {"side": "sell", "kind": "limit", "quantity": "0.5", "limit_price": "99.50"}
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}

	var body struct {
		Result domain.SubmitResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Result.Accepted {
		t.Error("expected accepted result")
	}
	if body.Result.VenueOrderID != "V-42" {
		t.Errorf("venue order id = %q, want V-42", body.Result.VenueOrderID)
	}
}

func TestSubmitEndpointRefusesInvalidTicket(t *testing.T) {
	h := newTicketHandler(t)

	rec := postJSON(t, h.Submit, `{
		"account": "acct-1",
		"symbol": "BTC-BRL",
		"ticket": {"side": "buy", "kind": "limit"}
	}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body)
	}

	var body struct {
		Ticket domain.EvaluatedTicket `json:"ticket"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Ticket.Errors) == 0 {
		t.Error("expected validation errors in refusal body")
	}
}

func deleteOrder(t *testing.T, h *TicketHandler, target, orderID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodDelete, target, nil)
	req.SetPathValue("id", orderID)
	rec := httptest.NewRecorder()
	h.CancelOrder(rec, req)
	return rec
}

func TestCancelEndpointNoContent(t *testing.T) {
	h := newTicketHandler(t)

	rec := deleteOrder(t, h, "/api/orders/v-9?account=acct-1", "v-9")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204; body %s", rec.Code, rec.Body)
	}
}

func TestCancelEndpointRequiresAccount(t *testing.T) {
	h := newTicketHandler(t)

	rec := deleteOrder(t, h, "/api/orders/v-9", "v-9")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body)
	}
}

func TestCancelEndpointUnknownOrder(t *testing.T) {
	h := newTicketHandlerWith(t, &acceptGateway{
		cancelErr: fmt.Errorf("venue: cancel order v-9: %w", domain.ErrNotFound),
	})

	rec := deleteOrder(t, h, "/api/orders/v-9?account=acct-1", "v-9")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body %s", rec.Code, rec.Body)
	}
}

func TestCancelEndpointVenueRefusal(t *testing.T) {
	h := newTicketHandlerWith(t, &acceptGateway{
		cancelErr: fmt.Errorf("venue: %w: order already filled", domain.ErrVenueRejected),
	})

	rec := deleteOrder(t, h, "/api/orders/v-9?account=acct-1", "v-9")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body %s", rec.Code, rec.Body)
	}
}

func TestCancelEndpointLocalOnlyDesk(t *testing.T) {
	h := newTicketHandlerWith(t, nil)

	rec := deleteOrder(t, h, "/api/orders/v-9?account=acct-1", "v-9")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503; body %s", rec.Code, rec.Body)
	}
}
