// Package pipeline implements the order pipeline: the buy/sell/amend/cancel
// operations that drive an Order through its status state machine,
// dispatch to a venue.Adapter off the caller's goroutine, and deliver
// update_callback notifications to the order's owner.
//
// Every read-modify-write against an order's status routes through
// OrderStore.FindAndUpdate, so concurrent callers racing on the same
// client_id serialize rather than racing on the in-memory order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LaoKpa/tai/internal/bus"
	"github.com/LaoKpa/tai/internal/orderstore"
	"github.com/LaoKpa/tai/internal/telemetry"
	"github.com/LaoKpa/tai/internal/venue"
	"github.com/LaoKpa/tai/pkg/types"
)

// ErrNotFound is returned by Cancel/Amend when client_id names no order at
// all, distinct from ErrStatusMustBePending.
var ErrNotFound = errors.New("pipeline: order not found")

// ErrStatusMustBePending is returned by Cancel/Amend when the order exists
// but is not in the status the requested transition requires.
var ErrStatusMustBePending = errors.New("pipeline: status must be pending")

// OrderUpdatedMessage is the payload delivered on an order's
// bus.OrderUpdated(owner) topic. The owning advisor's dispatch loop invokes
// New.UpdateCallback(Old, New) itself — the pipeline never calls it inline.
type OrderUpdatedMessage struct {
	Old *types.Order
	New *types.Order
}

// Pipeline drives orders through their status state machine. A Pipeline
// is safe for concurrent use.
type Pipeline struct {
	store   *orderstore.Store
	adapter venue.Adapter
	bus     bus.EventBus
	sink    telemetry.Sink
	logger  *slog.Logger
}

// New creates a Pipeline. sink may be telemetry.NopSink{} if the caller
// does not care about cancel-warning events.
func New(store *orderstore.Store, adapter venue.Adapter, eventBus bus.EventBus, sink telemetry.Sink, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		adapter: adapter,
		bus:     eventBus,
		sink:    sink,
		logger:  logger.With("component", "pipeline"),
	}
}

// BuyLimit enqueues a limit buy order and asynchronously submits it to the
// venue adapter.
func (p *Pipeline) BuyLimit(ctx context.Context, venueID, accountID, symbol string, price, size decimal.Decimal, tif types.TimeInForce, owner string, cb types.UpdateCallback) *types.Order {
	return p.enqueue(ctx, types.Buy, venueID, accountID, symbol, price, size, tif, owner, cb)
}

// SellLimit is the sell-side symmetric counterpart of BuyLimit.
func (p *Pipeline) SellLimit(ctx context.Context, venueID, accountID, symbol string, price, size decimal.Decimal, tif types.TimeInForce, owner string, cb types.UpdateCallback) *types.Order {
	return p.enqueue(ctx, types.Sell, venueID, accountID, symbol, price, size, tif, owner, cb)
}

func (p *Pipeline) enqueue(ctx context.Context, side types.Side, venueID, accountID, symbol string, price, size decimal.Decimal, tif types.TimeInForce, owner string, cb types.UpdateCallback) *types.Order {
	stored := p.store.Add(types.Order{
		VenueID:        venueID,
		AccountID:      accountID,
		ProductSymbol:  symbol,
		Side:           side,
		Type:           types.OrderTypeLimit,
		TimeInForce:    tif,
		Price:          price,
		Size:           size,
		Owner:          owner,
		UpdateCallback: cb,
	})

	p.deliverUpdate(nil, stored)
	go p.dispatchCreate(ctx, stored.ClientID)

	return stored
}

func (p *Pipeline) dispatchCreate(ctx context.Context, clientID uuid.UUID) {
	current, err := p.store.Find(clientID)
	if err != nil {
		return
	}

	result, err := p.adapter.CreateOrder(ctx, current.VenueID, current.AccountID, *current)
	if err != nil {
		old, new, uerr := p.store.FindAndUpdate(clientID,
			func(o *types.Order) bool { return o.Status == types.StatusEnqueued },
			func(o *types.Order) {
				o.Status = types.StatusError
				o.ErrorReason = err.Error()
			})
		if uerr == nil {
			p.deliverUpdate(old, new)
		}
		return
	}

	old, new, uerr := p.store.FindAndUpdate(clientID,
		func(o *types.Order) bool { return o.Status == types.StatusEnqueued },
		func(o *types.Order) {
			o.Status = types.StatusPending
			o.ServerID = result.ServerID
		})
	if uerr == nil {
		p.deliverUpdate(old, new)
	}
}

// Cancel transitions an order from pending to canceling and asynchronously
// requests cancellation at the venue.
func (p *Pipeline) Cancel(ctx context.Context, clientID uuid.UUID) (*types.Order, error) {
	old, new, err := p.store.FindAndUpdate(clientID,
		func(o *types.Order) bool { return o.Status == types.StatusPending },
		func(o *types.Order) { o.Status = types.StatusCanceling })
	if err != nil {
		if errors.Is(err, orderstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrStatusMustBePending
	}

	p.deliverUpdate(old, new)
	go p.dispatchCancel(ctx, new.Clone())

	return new, nil
}

func (p *Pipeline) dispatchCancel(ctx context.Context, order *types.Order) {
	_, err := p.adapter.CancelOrder(ctx, order.VenueID, order.AccountID, order.ServerID)
	if err != nil {
		// Not retried by the core; the order stays in canceling and the
		// strategy decides.
		p.sink.Emit(telemetry.NewCancelWarning(order.ClientID.String(), err.Error()))
		return
	}

	old, new, uerr := p.store.FindAndUpdate(order.ClientID,
		func(o *types.Order) bool { return o.Status == types.StatusCanceling },
		func(o *types.Order) { o.Status = types.StatusCanceled })
	if uerr == nil {
		p.deliverUpdate(old, new)
	}
}

// Amend requests a price/size change on a resting order: pending ->
// amending -> pending on success, amending -> error on failure.
func (p *Pipeline) Amend(ctx context.Context, clientID uuid.UUID, attrs venue.AmendAttrs) (*types.Order, error) {
	old, new, err := p.store.FindAndUpdate(clientID,
		func(o *types.Order) bool { return o.Status == types.StatusPending },
		func(o *types.Order) { o.Status = types.StatusAmending })
	if err != nil {
		if errors.Is(err, orderstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrStatusMustBePending
	}

	p.deliverUpdate(old, new)
	go p.dispatchAmend(ctx, new.Clone(), attrs)

	return new, nil
}

func (p *Pipeline) dispatchAmend(ctx context.Context, order *types.Order, attrs venue.AmendAttrs) {
	_, err := p.adapter.AmendOrder(ctx, order.VenueID, order.AccountID, order.ServerID, attrs)
	if err != nil {
		old, new, uerr := p.store.FindAndUpdate(order.ClientID,
			func(o *types.Order) bool { return o.Status == types.StatusAmending },
			func(o *types.Order) {
				o.Status = types.StatusError
				o.ErrorReason = err.Error()
			})
		if uerr == nil {
			p.deliverUpdate(old, new)
		}
		return
	}

	old, new, uerr := p.store.FindAndUpdate(order.ClientID,
		func(o *types.Order) bool { return o.Status == types.StatusAmending },
		func(o *types.Order) {
			o.Status = types.StatusPending
			if attrs.Price != nil {
				o.Price = *attrs.Price
			}
			if attrs.Size != nil {
				o.Size = *attrs.Size
			}
		})
	if uerr == nil {
		p.deliverUpdate(old, new)
	}
}

// AmendRequest is one entry of an AmendBatch call.
type AmendRequest struct {
	ClientID uuid.UUID
	Attrs    venue.AmendAttrs
}

// AmendOutcome is the per-order result of an AmendBatch call, positionally
// aligned with its AmendRequest.
type AmendOutcome struct {
	ClientID uuid.UUID
	Order    *types.Order
	Err      error
}

// AmendBatch applies Amend to each request concurrently and collects the
// per-order outcomes, positionally aligned with requests.
func (p *Pipeline) AmendBatch(ctx context.Context, requests []AmendRequest) []AmendOutcome {
	outcomes := make([]AmendOutcome, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req AmendRequest) {
			defer wg.Done()
			order, err := p.Amend(ctx, req.ClientID, req.Attrs)
			outcomes[i] = AmendOutcome{ClientID: req.ClientID, Order: order, Err: err}
		}(i, req)
	}
	wg.Wait()

	return outcomes
}

func (p *Pipeline) deliverUpdate(old, new *types.Order) {
	p.logger.Info(formatOrderLog(new))
	if p.bus == nil || new.Owner == "" {
		return
	}
	p.bus.Publish(bus.OrderUpdated(new.Owner), OrderUpdatedMessage{Old: old, New: new})
}

// formatOrderLog renders the canonical order log line:
// [order:{client_id},{status},{venue},{account},{symbol},{side},
// {type},{tif},{price},{size}{,error_reason}?]
func formatOrderLog(o *types.Order) string {
	fields := []string{
		o.ClientID.String(),
		string(o.Status),
		o.VenueID,
		o.AccountID,
		o.ProductSymbol,
		string(o.Side),
		string(o.Type),
		string(o.TimeInForce),
		o.Price.String(),
		o.Size.String(),
	}
	if o.Status == types.StatusError {
		fields = append(fields, o.ErrorReason)
	}
	return fmt.Sprintf("[order:%s]", strings.Join(fields, ","))
}
