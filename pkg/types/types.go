// Package types defines the shared data model for the trading runtime.
//
// This is the common vocabulary used across the order pipeline, advisor
// runtime, and advisor registry — order/quote primitives with no
// dependency on any other internal package, so any layer can import it.
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is the direction of an order: buy or sell.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType enumerates the supported order kinds. Only limit orders are
// modeled; market orders are out of scope for this runtime.
type OrderType string

const (
	OrderTypeLimit OrderType = "limit"
)

// TimeInForce controls how long an order rests on the venue's book.
type TimeInForce string

const (
	FOK TimeInForce = "fok" // fill-or-kill
	GTC TimeInForce = "gtc" // good-til-cancelled
	IOC TimeInForce = "ioc" // immediate-or-cancel
)

// OrderStatus is the order lifecycle state machine:
//
//	enqueued ──► pending ──► canceling ──► canceled
//	     │          │              │
//	     └──► error └──► amending ─┘
//	                    │
//	                    └──► pending  (on successful amend)
//
// canceled and error are terminal. pending is the steady state of a live
// order.
type OrderStatus string

const (
	StatusEnqueued  OrderStatus = "enqueued"
	StatusPending   OrderStatus = "pending"
	StatusCanceling OrderStatus = "canceling"
	StatusCanceled  OrderStatus = "canceled"
	StatusAmending  OrderStatus = "amending"
	StatusError     OrderStatus = "error"
)

// IsTerminal reports whether status is a terminal state of the machine.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCanceled || s == StatusError
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is the core unit of the order pipeline. ClientID is generated at
// enqueue time and is the key the OrderStore indexes by; ServerID is
// populated by the venue adapter once the order is accepted.
//
// Price and Size are decimal.Decimal rather than float64 because venue
// price/size precision must round-trip exactly.
type Order struct {
	ClientID      uuid.UUID
	VenueID       string
	AccountID     string
	ProductSymbol string
	Side          Side
	Type          OrderType
	TimeInForce   TimeInForce
	Price         decimal.Decimal
	Size          decimal.Decimal
	Status        OrderStatus
	ServerID      string
	ErrorReason   string

	// Owner is the advisor address the order_updated message is delivered
	// to. The pipeline never invokes UpdateCallback itself — it publishes
	// to this address and the owning advisor's dispatch loop invokes the
	// callback on its own goroutine, so a panicking callback is isolated
	// by that advisor's own recover(). Empty for fire-and-forget orders.
	Owner string

	// UpdateCallback is invoked once per status transition this order goes
	// through. May be nil for fire-and-forget orders.
	UpdateCallback UpdateCallback
}

// Clone returns a deep-enough copy suitable for "old"/"new" snapshots
// handed to an update callback — mutating the clone never affects the
// copy stored in the OrderStore.
func (o Order) Clone() *Order {
	c := o
	return &c
}

// UpdateCallback is fired by the order pipeline once per status transition
// with the pre- and post-transition snapshots. Callers that need extra
// context capture it in the closure rather than widening this signature.
type UpdateCallback func(old, new *Order)

// ————————————————————————————————————————————————————————————————————————
// Market data
// ————————————————————————————————————————————————————————————————————————

// PriceLevel is a single book level or book delta: a price and the size
// resting (or, in a delta, the new size at that price — zero means the
// level was removed).
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// MarketQuote is the best bid/ask for one product on one venue. Immutable
// once constructed — callers that need to "update" a quote build a new one.
type MarketQuote struct {
	VenueID       string
	ProductSymbol string
	Bid           PriceLevel
	Ask           PriceLevel
	Timestamp     time.Time
}

// HasBid/HasAsk let callers distinguish an empty level (no resting size)
// from a priced one without a separate presence flag.
func (q MarketQuote) HasBid() bool { return !q.Bid.Size.IsZero() }
func (q MarketQuote) HasAsk() bool { return !q.Ask.Size.IsZero() }

// OrderBookChanges is an ordered set of incremental book deltas, as
// delivered by the {order_book_changes, venue, symbol} topic.
type OrderBookChanges struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// ————————————————————————————————————————————————————————————————————————
// Products
// ————————————————————————————————————————————————————————————————————————

// Product identifies one tradeable instrument on one venue. It is the unit
// the advisor-group selector grammar filters over.
type Product struct {
	VenueID string
	Symbol  string
}

func (p Product) String() string { return p.VenueID + "." + p.Symbol }
