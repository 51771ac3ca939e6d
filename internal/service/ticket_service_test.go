package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/ticket"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeInstrumentStore struct {
	instruments map[string]domain.Instrument
}

func (f *fakeInstrumentStore) Upsert(_ context.Context, inst domain.Instrument) error {
	f.instruments[inst.Symbol] = inst
	return nil
}

func (f *fakeInstrumentStore) UpsertBatch(ctx context.Context, insts []domain.Instrument) error {
	for _, inst := range insts {
		if err := f.Upsert(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeInstrumentStore) GetBySymbol(_ context.Context, symbol string) (domain.Instrument, error) {
	inst, ok := f.instruments[symbol]
	if !ok {
		return domain.Instrument{}, domain.ErrNotFound
	}
	return inst, nil
}

func (f *fakeInstrumentStore) ListActive(_ context.Context, _ domain.ListOpts) ([]domain.Instrument, error) {
	var out []domain.Instrument
	for _, inst := range f.instruments {
		if inst.Status == domain.InstrumentStatusActive {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeInstrumentStore) Count(_ context.Context) (int64, error) {
	return int64(len(f.instruments)), nil
}

type fakeSnapshotCache struct {
	snapshots map[string]domain.MarketSnapshot
}

func (f *fakeSnapshotCache) Set(_ context.Context, snap domain.MarketSnapshot) error {
	f.snapshots[snap.Symbol] = snap
	return nil
}

func (f *fakeSnapshotCache) Get(_ context.Context, symbol string) (domain.MarketSnapshot, error) {
	snap, ok := f.snapshots[symbol]
	if !ok {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeSnapshotCache) GetMany(ctx context.Context, symbols []string) (map[string]domain.MarketSnapshot, error) {
	out := make(map[string]domain.MarketSnapshot)
	for _, sym := range symbols {
		if snap, err := f.Get(ctx, sym); err == nil {
			out[sym] = snap
		}
	}
	return out, nil
}

type fakeBalanceCache struct {
	balances map[string]map[string]decimal.Decimal
}

func (f *fakeBalanceCache) SetBalance(_ context.Context, account, asset string, available decimal.Decimal) error {
	if f.balances[account] == nil {
		f.balances[account] = make(map[string]decimal.Decimal)
	}
	f.balances[account][asset] = available
	return nil
}

func (f *fakeBalanceCache) GetBalance(_ context.Context, account, asset string) (decimal.Decimal, error) {
	bal, ok := f.balances[account][asset]
	if !ok {
		return decimal.Decimal{}, domain.ErrNotFound
	}
	return bal, nil
}

func (f *fakeBalanceCache) GetBalances(_ context.Context, account string) (map[string]decimal.Decimal, error) {
	bal, ok := f.balances[account]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return bal, nil
}

type fakeRateLimiter struct {
	allowed bool
	calls   int
}

func (f *fakeRateLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	f.calls++
	return f.allowed, nil
}

type fakeSignalBus struct {
	published []domain.BusMessage
}

func (f *fakeSignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.published = append(f.published, domain.BusMessage{Channel: channel, Payload: payload})
	return nil
}

func (f *fakeSignalBus) Subscribe(_ context.Context, _ ...string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage)
	close(ch)
	return ch, nil
}

type fakeAuditStore struct {
	events []string
}

func (f *fakeAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeGateway struct {
	posted    []domain.OrderPayload
	cancelled []string
	reject    bool
	cancelErr error
}

func (f *fakeGateway) PostOrder(_ context.Context, payload domain.OrderPayload) (domain.SubmitResult, error) {
	f.posted = append(f.posted, payload)
	if f.reject {
		return domain.SubmitResult{
			Accepted:      false,
			ClientOrderID: payload.ClientOrderID,
			Message:       "price out of band",
		}, domain.ErrVenueRejected
	}
	return domain.SubmitResult{
		Accepted:      true,
		VenueOrderID:  "V-1",
		ClientOrderID: payload.ClientOrderID,
		SubmittedAt:   time.Now().UTC(),
	}, nil
}

func (f *fakeGateway) CancelOrder(_ context.Context, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return f.cancelErr
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc      *TicketService
	limiter  *fakeRateLimiter
	bus      *fakeSignalBus
	audit    *fakeAuditStore
	gateway  *fakeGateway
	balances *fakeBalanceCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	instruments := &fakeInstrumentStore{instruments: map[string]domain.Instrument{
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
	snapshots := &fakeSnapshotCache{snapshots: map[string]domain.MarketSnapshot{
		"BTC-BRL": {
			Symbol:    "BTC-BRL",
			LastPrice: d("100"),
			BestBid:   d("99"),
			BestAsk:   d("101"),
			UpdatedAt: time.Now().UTC(),
		},
	}}
	balances := &fakeBalanceCache{balances: map[string]map[string]decimal.Decimal{
		"acct-1": {
			"BTC": d("2"),
			"BRL": d("100000"),
		},
	}}

	limiter := &fakeRateLimiter{allowed: true}
	bus := &fakeSignalBus{}
	audit := &fakeAuditStore{}
	gateway := &fakeGateway{}

	fees := ticket.FeeSchedule{Maker: d("0.001"), Taker: d("0.005")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewTicketService(instruments, snapshots, balances, limiter, bus, audit, fees, logger).
		WithGateway(gateway)

	return &fixture{
		svc:      svc,
		limiter:  limiter,
		bus:      bus,
		audit:    audit,
		gateway:  gateway,
		balances: balances,
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestEvaluateResolvesFeeFromSchedule(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	eval, err := fx.svc.Evaluate(ctx, "acct-1", "BTC-BRL", domain.TicketRequest{
		Side:     domain.SideBuy,
		Kind:     domain.OrderKindMarket,
		Quantity: d("1"),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// Market orders take liquidity: fee = 101 * 0.005.
	if got, want := eval.Fee, d("0.505"); !got.Equal(want) {
		t.Errorf("fee = %s, want %s", got, want)
	}
	if !eval.Submittable() {
		t.Errorf("expected submittable ticket, got errors %v", eval.Errors)
	}
}

func TestEvaluateUnknownSymbol(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Evaluate(context.Background(), "acct-1", "DOGE-BRL", domain.TicketRequest{
		Side:     domain.SideBuy,
		Kind:     domain.OrderKindMarket,
		Quantity: d("1"),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEvaluateMissingSnapshotWarnsDegenerate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.svc.instruments.(*fakeInstrumentStore).instruments["ETH-BRL"] = domain.Instrument{
		Symbol:      "ETH-BRL",
		BaseAsset:   "ETH",
		QuoteAsset:  "BRL",
		TickSize:    d("0.01"),
		StepSize:    d("0.0001"),
		MinQuantity: d("0.001"),
		Status:      domain.InstrumentStatusActive,
	}

	eval, err := fx.svc.Evaluate(ctx, "acct-1", "ETH-BRL", domain.TicketRequest{
		Side:     domain.SideBuy,
		Kind:     domain.OrderKindMarket,
		Quantity: d("1"),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(eval.Warnings) == 0 {
		t.Fatal("expected degenerate price warning with no snapshot")
	}
	if !eval.MaxAllowed.IsZero() {
		t.Errorf("max allowed = %s, want 0", eval.MaxAllowed)
	}
}

func TestSubmitHappyPath(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	eval, result, err := fx.svc.Submit(ctx, "acct-1", "BTC-BRL", domain.TicketRequest{
		Side:       domain.SideBuy,
		Kind:       domain.OrderKindLimit,
		Quantity:   d("0.5"),
		LimitPrice: d("100.50"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !eval.Submittable() {
		t.Fatalf("expected submittable ticket, got errors %v", eval.Errors)
	}
	if !result.Accepted {
		t.Error("expected accepted result")
	}
	if result.ClientOrderID == "" {
		t.Error("expected a client order ID")
	}

	if len(fx.gateway.posted) != 1 {
		t.Fatalf("gateway received %d orders, want 1", len(fx.gateway.posted))
	}
	posted := fx.gateway.posted[0]
	if posted.TimeInForce != domain.TimeInForceGTC {
		t.Errorf("time in force = %s, want GTC default", posted.TimeInForce)
	}
	if !posted.LimitPrice.Equal(d("100.50")) {
		t.Errorf("limit price = %s, want 100.50", posted.LimitPrice)
	}

	if len(fx.audit.events) != 1 || fx.audit.events[0] != "ticket.submit" {
		t.Errorf("audit events = %v, want [ticket.submit]", fx.audit.events)
	}
	if len(fx.bus.published) != 1 || fx.bus.published[0].Channel != OrderChannel {
		t.Errorf("bus publishes = %d, want 1 on %q", len(fx.bus.published), OrderChannel)
	}
}

func TestSubmitRefusesInvalidTicket(t *testing.T) {
	fx := newFixture(t)

	eval, _, err := fx.svc.Submit(context.Background(), "acct-1", "BTC-BRL", domain.TicketRequest{
		Side: domain.SideBuy,
		Kind: domain.OrderKindLimit,
		// Quantity and limit price both missing.
	})
	if !errors.Is(err, domain.ErrNotSubmittable) {
		t.Fatalf("err = %v, want ErrNotSubmittable", err)
	}
	if len(eval.Errors) == 0 {
		t.Error("expected validation errors on refused ticket")
	}
	if len(fx.gateway.posted) != 0 {
		t.Errorf("gateway received %d orders, want 0", len(fx.gateway.posted))
	}
}

func TestSubmitRateLimited(t *testing.T) {
	fx := newFixture(t)
	fx.limiter.allowed = false

	_, _, err := fx.svc.Submit(context.Background(), "acct-1", "BTC-BRL", domain.TicketRequest{
		Side:     domain.SideBuy,
		Kind:     domain.OrderKindMarket,
		Quantity: d("0.5"),
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if len(fx.gateway.posted) != 0 {
		t.Errorf("gateway received %d orders, want 0", len(fx.gateway.posted))
	}
}

func TestSubmitVenueRejection(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.reject = true

	_, result, err := fx.svc.Submit(context.Background(), "acct-1", "BTC-BRL", domain.TicketRequest{
		Side:     domain.SideSell,
		Kind:     domain.OrderKindMarket,
		Quantity: d("0.5"),
	})
	if !errors.Is(err, domain.ErrVenueRejected) {
		t.Fatalf("err = %v, want ErrVenueRejected", err)
	}
	if result.Accepted {
		t.Error("expected rejected result")
	}
	// The rejected attempt is still audited.
	if len(fx.audit.events) != 1 {
		t.Errorf("audit events = %v, want one ticket.submit", fx.audit.events)
	}
}

func TestCancelForwardsAndAudits(t *testing.T) {
	fx := newFixture(t)

	if err := fx.svc.Cancel(context.Background(), "acct-1", "v-7"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(fx.gateway.cancelled) != 1 || fx.gateway.cancelled[0] != "v-7" {
		t.Errorf("gateway cancels = %v, want [v-7]", fx.gateway.cancelled)
	}
	if len(fx.audit.events) != 1 || fx.audit.events[0] != "ticket.cancel" {
		t.Errorf("audit events = %v, want [ticket.cancel]", fx.audit.events)
	}
}

func TestCancelVenueFailureStillAudited(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.cancelErr = fmt.Errorf("venue: %w: order already filled", domain.ErrVenueRejected)

	err := fx.svc.Cancel(context.Background(), "acct-1", "v-7")
	if !errors.Is(err, domain.ErrVenueRejected) {
		t.Fatalf("err = %v, want ErrVenueRejected", err)
	}
	if len(fx.audit.events) != 1 || fx.audit.events[0] != "ticket.cancel" {
		t.Errorf("audit events = %v, want [ticket.cancel]", fx.audit.events)
	}
}

func TestCancelRateLimited(t *testing.T) {
	fx := newFixture(t)
	fx.limiter.allowed = false

	err := fx.svc.Cancel(context.Background(), "acct-1", "v-7")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if len(fx.gateway.cancelled) != 0 {
		t.Errorf("gateway cancels = %v, want none", fx.gateway.cancelled)
	}
}

func TestCancelWithoutGateway(t *testing.T) {
	fx := newFixture(t)
	fx.svc.gateway = nil

	err := fx.svc.Cancel(context.Background(), "acct-1", "v-7")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
}
