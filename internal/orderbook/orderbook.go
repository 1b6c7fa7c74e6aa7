// Package orderbook defines the order-book query contract the advisor
// runtime consumes and a reference HTTP implementation in httpclient.
package orderbook

import (
	"context"

	"github.com/LaoKpa/tai/pkg/types"
)

// Query is the order-book snapshot/diff store's consumed surface. The
// core never maintains book state itself — it asks Query for the current
// inside quote whenever a snapshot or a stale change set arrives.
type Query interface {
	InsideQuote(ctx context.Context, venue, symbol string) (types.MarketQuote, error)
}
