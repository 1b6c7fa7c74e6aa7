// Package advisor implements the advisor runtime: a long-lived per-strategy
// actor that subscribes to order-book and quote topics, maintains a
// quotecache.Cache, and dispatches user callbacks under fault isolation.
//
// Runtime runs a select loop over an arbitrary set of subscribed
// bus.Topics fanned into one mailbox, for the lifetime of one advisor,
// exiting cleanly on ctx.Done(). Every dispatch callback (HandleInsideQuote,
// HandleEvent, an order's UpdateCallback) runs under a panic-recovery
// wrapper so one misbehaving strategy can never take down the runtime;
// AfterStart is called directly, without recovery.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/LaoKpa/tai/internal/bus"
	"github.com/LaoKpa/tai/internal/orderbook"
	"github.com/LaoKpa/tai/internal/pipeline"
	"github.com/LaoKpa/tai/internal/quotecache"
	"github.com/LaoKpa/tai/internal/telemetry"
	"github.com/LaoKpa/tai/pkg/types"
)

// Advisor is the user-strategy capability contract: after_start,
// handle_inside_quote, handle_event. Each returns (new_store, ok); ok=false
// preserves the pre-callback store. For HandleInsideQuote and HandleEvent,
// ok=false without a panic also emits an InvalidReturn warning event;
// AfterStart's ok=false emits no event.
type Advisor interface {
	AfterStart(state *AdvisorState) (newStore any, ok bool)
	HandleInsideQuote(venueID, symbol string, quote types.MarketQuote, state *AdvisorState) (newStore any, ok bool)
	HandleEvent(venueID, symbol string, quote types.MarketQuote, state *AdvisorState) (newStore any, ok bool)
}

// BaseAdvisor is the default no-op Advisor: AfterStart and the dispatch
// callbacks all report ok with the store left untouched. Embed it to
// override only the callbacks a strategy cares about.
type BaseAdvisor struct{}

func (BaseAdvisor) AfterStart(state *AdvisorState) (any, bool) { return state.Store, true }
func (BaseAdvisor) HandleInsideQuote(_, _ string, _ types.MarketQuote, state *AdvisorState) (any, bool) {
	return state.Store, true
}
func (BaseAdvisor) HandleEvent(_, _ string, _ types.MarketQuote, state *AdvisorState) (any, bool) {
	return state.Store, true
}

// AdvisorState is held privately by one advisor actor. Quotes is the
// per-advisor market quote cache; Store is opaque user state; Trades is
// the opaque handle a strategy uses to submit orders — a *pipeline.Pipeline
// in this runtime.
type AdvisorState struct {
	GroupID   string
	AdvisorID string
	Products  []types.Product
	Quotes    *quotecache.Cache
	Config    map[string]any
	Store     any
	Trades    any
}

// Address is the advisor's addressable name: advisor_{group_id}_{advisor_id}.
func (s *AdvisorState) Address() string {
	return fmt.Sprintf("advisor_%s_%s", s.GroupID, s.AdvisorID)
}

const mailboxBuffer = 256

type mailboxMsg struct {
	topic   bus.Topic
	payload any
}

// Runtime is the actor driving one Advisor. A Runtime processes exactly
// one message at a time; user callbacks never observe a concurrent
// mutation of AdvisorState.
type Runtime struct {
	advisor   Advisor
	state     *AdvisorState
	orderBook orderbook.Query
	bus       bus.EventBus
	sink      telemetry.Sink
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Runtime. config and trades populate the AdvisorState
// handed to every callback.
func New(adv Advisor, groupID, advisorID string, products []types.Product, orderBook orderbook.Query, eventBus bus.EventBus, sink telemetry.Sink, logger *slog.Logger, config map[string]any, trades any) *Runtime {
	state := &AdvisorState{
		GroupID:   groupID,
		AdvisorID: advisorID,
		Products:  products,
		Quotes:    quotecache.New(),
		Config:    config,
		Trades:    trades,
	}
	return &Runtime{
		advisor:   adv,
		state:     state,
		orderBook: orderBook,
		bus:       eventBus,
		sink:      sink,
		logger:    logger.With("component", "advisor", "address", state.Address()),
	}
}

// Address returns this advisor's addressable name.
func (r *Runtime) Address() string { return r.state.Address() }

// Start runs AfterStart, subscribes to every configured product's topics
// plus this advisor's order_updated topic, and begins the dispatch loop
// on its own goroutine. Start returns once those subscriptions are
// registered; the dispatch loop keeps running on its goroutine.
func (r *Runtime) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	ready := make(chan struct{})

	go r.run(ctx, ready)
	<-ready
}

// Stop cancels the dispatch loop and waits for it to exit. Safe to call
// once Start has returned.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

func (r *Runtime) run(ctx context.Context, ready chan<- struct{}) {
	defer close(r.done)

	newStore, ok := r.advisor.AfterStart(r.state)
	if ok {
		r.state.Store = newStore
	}

	mailbox := make(chan mailboxMsg, mailboxBuffer)

	var subs []*bus.Subscription
	subscribe := func(topic bus.Topic) {
		sub := r.bus.Subscribe(topic)
		subs = append(subs, sub)
		go func() {
			for payload := range sub.Ch {
				mailbox <- mailboxMsg{topic: topic, payload: payload}
			}
		}()
	}

	for _, p := range r.state.Products {
		subscribe(bus.OrderBookSnapshot(p.VenueID, p.Symbol))
		subscribe(bus.OrderBookChanges(p.VenueID, p.Symbol))
		subscribe(bus.MarketQuote(p.VenueID, p.Symbol))
	}
	subscribe(bus.OrderUpdated(r.Address()))
	close(ready)

	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-mailbox:
			r.handle(ctx, msg)
		}
	}
}

func (r *Runtime) handle(ctx context.Context, msg mailboxMsg) {
	switch msg.topic.Kind {
	case "order_book_snapshot":
		r.handleSnapshot(ctx, msg.topic.Venue, msg.topic.Symbol)
	case "order_book_changes":
		changes, ok := msg.payload.(types.OrderBookChanges)
		if !ok {
			return
		}
		r.handleChanges(ctx, msg.topic.Venue, msg.topic.Symbol, changes)
	case "market_quote":
		quote, ok := msg.payload.(types.MarketQuote)
		if !ok {
			return
		}
		r.state.Quotes.Put(msg.topic.Venue, msg.topic.Symbol, quote)
		r.invokeHandleEvent(msg.topic.Venue, msg.topic.Symbol, quote)
	case "order_updated":
		upd, ok := msg.payload.(pipeline.OrderUpdatedMessage)
		if !ok {
			return
		}
		r.invokeOrderUpdated(upd)
	}
}

func (r *Runtime) handleSnapshot(ctx context.Context, venueID, symbol string) {
	quote, err := r.orderBook.InsideQuote(ctx, venueID, symbol)
	if err != nil {
		r.logger.Warn("inside_quote failed", "venue", venueID, "symbol", symbol, "err", err)
		return
	}
	r.state.Quotes.Put(venueID, symbol, quote)
	r.invokeHandleInsideQuote(venueID, symbol, quote)
}

func (r *Runtime) handleChanges(ctx context.Context, venueID, symbol string, changes types.OrderBookChanges) {
	prev, hasPrev := r.state.Quotes.For(venueID, symbol)
	if hasPrev && !isStale(prev, changes) {
		return
	}

	quote, err := r.orderBook.InsideQuote(ctx, venueID, symbol)
	if err != nil {
		r.logger.Warn("inside_quote failed", "venue", venueID, "symbol", symbol, "err", err)
		return
	}

	if hasPrev && quoteEqual(prev, quote) {
		return
	}

	r.state.Quotes.Put(venueID, symbol, quote)
	r.invokeHandleInsideQuote(venueID, symbol, quote)
}

// isStale reports whether any bid delta is at or above the cached inside
// bid price, or any ask delta is at or below the cached inside ask price.
// A size-only change at an unchanged inside price is stale too, and still
// requires a fresh InsideQuote call.
func isStale(prev types.MarketQuote, changes types.OrderBookChanges) bool {
	bidStale := false
	for _, d := range changes.Bids {
		if d.Price.GreaterThanOrEqual(prev.Bid.Price) {
			bidStale = true
		}
		if d.Price.Equal(prev.Bid.Price) && !d.Size.Equal(prev.Bid.Size) {
			bidStale = true
		}
	}

	askStale := false
	for _, d := range changes.Asks {
		if d.Price.LessThanOrEqual(prev.Ask.Price) {
			askStale = true
		}
		if d.Price.Equal(prev.Ask.Price) && !d.Size.Equal(prev.Ask.Size) {
			askStale = true
		}
	}

	return bidStale || askStale
}

func quoteEqual(a, b types.MarketQuote) bool {
	return a.Bid.Price.Equal(b.Bid.Price) && a.Bid.Size.Equal(b.Bid.Size) &&
		a.Ask.Price.Equal(b.Ask.Price) && a.Ask.Size.Equal(b.Ask.Size)
}

func (r *Runtime) invokeHandleInsideQuote(venueID, symbol string, quote types.MarketQuote) {
	defer func() {
		if rec := recover(); rec != nil {
			r.sink.Emit(telemetry.NewHandleInsideQuoteError(r.Address(), venueID, symbol, rec, string(debug.Stack())))
		}
	}()

	newStore, ok := r.advisor.HandleInsideQuote(venueID, symbol, quote, r.state)
	if !ok {
		r.sink.Emit(telemetry.NewHandleInsideQuoteInvalidReturn(r.Address(), venueID, symbol, newStore))
		return
	}
	r.state.Store = newStore
}

func (r *Runtime) invokeHandleEvent(venueID, symbol string, quote types.MarketQuote) {
	defer func() {
		if rec := recover(); rec != nil {
			r.sink.Emit(telemetry.NewHandleEventError(r.Address(), venueID, symbol, rec, string(debug.Stack())))
		}
	}()

	newStore, ok := r.advisor.HandleEvent(venueID, symbol, quote, r.state)
	if !ok {
		r.sink.Emit(telemetry.NewHandleEventInvalidReturn(r.Address(), venueID, symbol, newStore))
		return
	}
	r.state.Store = newStore
}

func (r *Runtime) invokeOrderUpdated(msg pipeline.OrderUpdatedMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			clientID := ""
			if msg.New != nil {
				clientID = msg.New.ClientID.String()
			}
			r.sink.Emit(telemetry.NewOrderUpdatedError(r.Address(), clientID, rec, string(debug.Stack())))
		}
	}()

	if msg.New == nil || msg.New.UpdateCallback == nil {
		return
	}
	msg.New.UpdateCallback(msg.Old, msg.New)
}
