// Package venue defines the venue adapter interface the order pipeline
// depends on and a reference HTTP implementation.
//
// The pipeline only ever talks to the Adapter interface below; it never
// assumes anything about how a venue's own API is shaped.
// httpadapter.Adapter exists so this module compiles and runs end to end
// against a demo venue; it is not a claim of production venue coverage.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/LaoKpa/tai/pkg/types"
)

// AmendAttrs carries the fields an amend may change. A nil pointer field
// means "leave unchanged".
type AmendAttrs struct {
	Price *decimal.Decimal
	Size  *decimal.Decimal
}

// CreateResult is returned by a successful CreateOrder call.
type CreateResult struct {
	ServerID string
}

// AmendResult is returned by a successful AmendOrder call.
type AmendResult struct {
	ServerID string
}

// CancelResult is returned by a successful CancelOrder call.
type CancelResult struct {
	ServerID string
}

// Outcome is one entry of a bulk operation's response sequence.
type Outcome[T any] struct {
	ClientID string
	Result   T
	Err      error
}

// Adapter is the venue adapter contract the order pipeline drives orders
// through. Implementations talk to one venue's REST/WS API; the pipeline
// never talks to a venue directly.
type Adapter interface {
	// CreateOrder submits a new order. ok→CreateResult, error→reason.
	CreateOrder(ctx context.Context, venueID, accountID string, order types.Order) (CreateResult, error)
	// AmendOrder changes a resting order's price/size.
	AmendOrder(ctx context.Context, venueID, accountID, serverID string, attrs AmendAttrs) (AmendResult, error)
	// CancelOrder cancels a resting order.
	CancelOrder(ctx context.Context, venueID, accountID, serverID string) (CancelResult, error)

	// CreateOrders/CancelOrders are the bulk variants; each outcome lines
	// up positionally with its input.
	CreateOrders(ctx context.Context, venueID, accountID string, orders []types.Order) ([]Outcome[CreateResult], error)
	CancelOrders(ctx context.Context, venueID, accountID string, serverIDs []string) ([]Outcome[CancelResult], error)
}
