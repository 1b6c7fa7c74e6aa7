package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LaoKpa/tai/internal/bus"
	"github.com/LaoKpa/tai/internal/orderstore"
	"github.com/LaoKpa/tai/internal/telemetry"
	"github.com/LaoKpa/tai/internal/venue"
	"github.com/LaoKpa/tai/pkg/types"
)

type fakeAdapter struct {
	createResult venue.CreateResult
	createErr    error
	amendResult  venue.AmendResult
	amendErr     error
	cancelResult venue.CancelResult
	cancelErr    error
}

func (f *fakeAdapter) CreateOrder(ctx context.Context, venueID, accountID string, order types.Order) (venue.CreateResult, error) {
	return f.createResult, f.createErr
}

func (f *fakeAdapter) AmendOrder(ctx context.Context, venueID, accountID, serverID string, attrs venue.AmendAttrs) (venue.AmendResult, error) {
	return f.amendResult, f.amendErr
}

func (f *fakeAdapter) CancelOrder(ctx context.Context, venueID, accountID, serverID string) (venue.CancelResult, error) {
	return f.cancelResult, f.cancelErr
}

func (f *fakeAdapter) CreateOrders(ctx context.Context, venueID, accountID string, orders []types.Order) ([]venue.Outcome[venue.CreateResult], error) {
	return nil, nil
}

func (f *fakeAdapter) CancelOrders(ctx context.Context, venueID, accountID string, serverIDs []string) ([]venue.Outcome[venue.CancelResult], error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func recvOrFail(t *testing.T, ch <-chan any) OrderUpdatedMessage {
	t.Helper()
	select {
	case v := <-ch:
		msg, ok := v.(OrderUpdatedMessage)
		if !ok {
			t.Fatalf("unexpected payload type %T", v)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for order_updated delivery")
		return OrderUpdatedMessage{}
	}
}

func TestBuyLimitEnqueueThenPendingOnSuccess(t *testing.T) {
	t.Parallel()
	b := bus.NewInProcess()
	store := orderstore.New()
	adapter := &fakeAdapter{createResult: venue.CreateResult{ServerID: "srv-1"}}
	p := New(store, adapter, b, telemetry.NopSink{}, testLogger())

	owner := "advisor_test_buy"
	sub := b.Subscribe(bus.OrderUpdated(owner))
	defer sub.Unsubscribe()

	order := p.BuyLimit(context.Background(), "exchange_a", "acct-1", "btc_usd",
		decimal.NewFromFloat(100), decimal.NewFromFloat(1), types.GTC, owner, nil)
	if order.Status != types.StatusEnqueued {
		t.Fatalf("Status = %v, want enqueued", order.Status)
	}

	enqueued := recvOrFail(t, sub.Ch)
	if enqueued.Old != nil {
		t.Error("first delivery should have nil Old")
	}
	if enqueued.New.Status != types.StatusEnqueued {
		t.Errorf("first delivery Status = %v, want enqueued", enqueued.New.Status)
	}

	pending := recvOrFail(t, sub.Ch)
	if pending.Old.Status != types.StatusEnqueued || pending.New.Status != types.StatusPending {
		t.Errorf("transition = %v -> %v, want enqueued -> pending", pending.Old.Status, pending.New.Status)
	}
	if pending.New.ServerID != "srv-1" {
		t.Errorf("ServerID = %q, want srv-1", pending.New.ServerID)
	}
}

func TestBuyLimitTransitionsToErrorOnAdapterFailure(t *testing.T) {
	t.Parallel()
	b := bus.NewInProcess()
	store := orderstore.New()
	adapter := &fakeAdapter{createErr: errors.New("unknown_error")}
	p := New(store, adapter, b, telemetry.NopSink{}, testLogger())

	owner := "advisor_test_buy_fail"
	sub := b.Subscribe(bus.OrderUpdated(owner))
	defer sub.Unsubscribe()

	p.BuyLimit(context.Background(), "exchange_a", "acct-1", "btc_usd",
		decimal.NewFromFloat(100), decimal.NewFromFloat(1), types.GTC, owner, nil)

	recvOrFail(t, sub.Ch) // enqueued

	errored := recvOrFail(t, sub.Ch)
	if errored.New.Status != types.StatusError {
		t.Fatalf("Status = %v, want error", errored.New.Status)
	}
	if errored.New.ErrorReason != "unknown_error" {
		t.Errorf("ErrorReason = %q, want unknown_error", errored.New.ErrorReason)
	}
}

func TestCancelNotFoundReturnsErrNotFound(t *testing.T) {
	t.Parallel()
	store := orderstore.New()
	p := New(store, &fakeAdapter{}, bus.NewInProcess(), telemetry.NopSink{}, testLogger())

	_, err := p.Cancel(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelWrongStatusReturnsErrStatusMustBePending(t *testing.T) {
	t.Parallel()
	store := orderstore.New()
	stored := store.Add(types.Order{VenueID: "exchange_a", AccountID: "acct-1", ProductSymbol: "btc_usd"})
	p := New(store, &fakeAdapter{}, bus.NewInProcess(), telemetry.NopSink{}, testLogger())

	_, err := p.Cancel(context.Background(), stored.ClientID)
	if !errors.Is(err, ErrStatusMustBePending) {
		t.Errorf("err = %v, want ErrStatusMustBePending", err)
	}
}

func TestCancelSuccessTransitionsToCanceled(t *testing.T) {
	t.Parallel()
	b := bus.NewInProcess()
	store := orderstore.New()
	owner := "advisor_test_cancel"
	stored := store.Add(types.Order{VenueID: "exchange_a", AccountID: "acct-1", ProductSymbol: "btc_usd", Owner: owner})
	store.FindAndUpdate(stored.ClientID, func(o *types.Order) bool { return true }, func(o *types.Order) {
		o.Status = types.StatusPending
		o.ServerID = "srv-1"
	})

	p := New(store, &fakeAdapter{}, b, telemetry.NopSink{}, testLogger())
	sub := b.Subscribe(bus.OrderUpdated(owner))
	defer sub.Unsubscribe()

	order, err := p.Cancel(context.Background(), stored.ClientID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if order.Status != types.StatusCanceling {
		t.Fatalf("Status = %v, want canceling", order.Status)
	}

	canceling := recvOrFail(t, sub.Ch)
	if canceling.New.Status != types.StatusCanceling {
		t.Fatalf("Status = %v, want canceling", canceling.New.Status)
	}

	canceled := recvOrFail(t, sub.Ch)
	if canceled.New.Status != types.StatusCanceled {
		t.Fatalf("Status = %v, want canceled", canceled.New.Status)
	}
}

func TestCancelFailureSurfacesWarningAndLeavesCanceling(t *testing.T) {
	t.Parallel()
	store := orderstore.New()
	stored := store.Add(types.Order{VenueID: "exchange_a", AccountID: "acct-1", ProductSymbol: "btc_usd"})
	store.FindAndUpdate(stored.ClientID, func(o *types.Order) bool { return true }, func(o *types.Order) {
		o.Status = types.StatusPending
		o.ServerID = "srv-1"
	})

	events := make(chan telemetry.Event, 1)
	sink := capturingSink{ch: events}
	p := New(store, &fakeAdapter{cancelErr: errors.New("timeout")}, bus.NewInProcess(), sink, testLogger())

	_, err := p.Cancel(context.Background(), stored.ClientID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	select {
	case evt := <-events:
		if evt.EventName() != "OrderCancelWarning" {
			t.Errorf("EventName() = %q, want OrderCancelWarning", evt.EventName())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for CancelWarning")
	}

	found, _ := store.Find(stored.ClientID)
	if found.Status != types.StatusCanceling {
		t.Errorf("Status = %v, want canceling (unchanged on failure)", found.Status)
	}
}

type capturingSink struct {
	ch chan telemetry.Event
}

func (s capturingSink) Emit(e telemetry.Event) { s.ch <- e }

func TestAmendSuccessUpdatesPriceAndSize(t *testing.T) {
	t.Parallel()
	store := orderstore.New()
	stored := store.Add(types.Order{VenueID: "exchange_a", AccountID: "acct-1", ProductSymbol: "btc_usd",
		Price: decimal.NewFromFloat(100), Size: decimal.NewFromFloat(1)})
	store.FindAndUpdate(stored.ClientID, func(o *types.Order) bool { return true }, func(o *types.Order) {
		o.Status = types.StatusPending
		o.ServerID = "srv-1"
	})

	p := New(store, &fakeAdapter{}, bus.NewInProcess(), telemetry.NopSink{}, testLogger())

	newPrice := decimal.NewFromFloat(105)
	order, err := p.Amend(context.Background(), stored.ClientID, venue.AmendAttrs{Price: &newPrice})
	if err != nil {
		t.Fatalf("Amend: %v", err)
	}
	if order.Status != types.StatusAmending {
		t.Fatalf("Status = %v, want amending", order.Status)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		found, _ := store.Find(stored.ClientID)
		if found.Status == types.StatusPending {
			if !found.Price.Equal(newPrice) {
				t.Errorf("Price = %v, want %v", found.Price, newPrice)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("amend never settled back to pending")
}

func TestAmendBatchReturnsPositionalOutcomes(t *testing.T) {
	t.Parallel()
	store := orderstore.New()
	a := store.Add(types.Order{VenueID: "exchange_a", ProductSymbol: "btc_usd"})
	store.FindAndUpdate(a.ClientID, func(o *types.Order) bool { return true }, func(o *types.Order) { o.Status = types.StatusPending })
	bOrder := store.Add(types.Order{VenueID: "exchange_a", ProductSymbol: "eth_usd"})
	// leave bOrder enqueued so its amend is rejected.

	p := New(store, &fakeAdapter{}, bus.NewInProcess(), telemetry.NopSink{}, testLogger())
	price := decimal.NewFromFloat(10)

	outcomes := p.AmendBatch(context.Background(), []AmendRequest{
		{ClientID: a.ClientID, Attrs: venue.AmendAttrs{Price: &price}},
		{ClientID: bOrder.ClientID, Attrs: venue.AmendAttrs{Price: &price}},
	})
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Errorf("outcomes[0].Err = %v, want nil", outcomes[0].Err)
	}
	if !errors.Is(outcomes[1].Err, ErrStatusMustBePending) {
		t.Errorf("outcomes[1].Err = %v, want ErrStatusMustBePending", outcomes[1].Err)
	}
}

func TestFormatOrderLogIncludesErrorReasonOnlyOnError(t *testing.T) {
	t.Parallel()
	o := &types.Order{
		ClientID: uuid.New(), Status: types.StatusPending, VenueID: "exchange_a", AccountID: "acct-1",
		ProductSymbol: "btc_usd", Side: types.Buy, Type: types.OrderTypeLimit, TimeInForce: types.GTC,
		Price: decimal.NewFromFloat(100), Size: decimal.NewFromFloat(1),
	}
	line := formatOrderLog(o)
	if len(line) == 0 || line[0] != '[' {
		t.Fatalf("expected bracketed log line, got %q", line)
	}

	o.Status = types.StatusError
	o.ErrorReason = "unknown_error"
	errLine := formatOrderLog(o)
	want := "unknown_error]"
	if got := errLine[len(errLine)-len(want):]; got != want {
		t.Errorf("error log line = %q, want suffix %q", errLine, want)
	}
}
