package venue

import (
	"context"
	"fmt"

	"github.com/LaoKpa/tai/pkg/types"
)

// Router is an Adapter that dispatches each call to the underlying Adapter
// registered for the call's venueID. The order pipeline is wired against a
// single Adapter; Router exists so a runtime trading more than one venue
// can still hand the pipeline one Adapter value, the same way a single
// venue.Adapter's methods already take venueID as an explicit parameter
// rather than assuming one venue per Adapter instance.
type Router struct {
	byVenue map[string]Adapter
}

// NewRouter creates a Router dispatching to byVenue.
func NewRouter(byVenue map[string]Adapter) *Router {
	return &Router{byVenue: byVenue}
}

func (r *Router) adapterFor(venueID string) (Adapter, error) {
	a, ok := r.byVenue[venueID]
	if !ok {
		return nil, fmt.Errorf("venue: no adapter registered for venue_id %q", venueID)
	}
	return a, nil
}

func (r *Router) CreateOrder(ctx context.Context, venueID, accountID string, order types.Order) (CreateResult, error) {
	a, err := r.adapterFor(venueID)
	if err != nil {
		return CreateResult{}, err
	}
	return a.CreateOrder(ctx, venueID, accountID, order)
}

func (r *Router) AmendOrder(ctx context.Context, venueID, accountID, serverID string, attrs AmendAttrs) (AmendResult, error) {
	a, err := r.adapterFor(venueID)
	if err != nil {
		return AmendResult{}, err
	}
	return a.AmendOrder(ctx, venueID, accountID, serverID, attrs)
}

func (r *Router) CancelOrder(ctx context.Context, venueID, accountID, serverID string) (CancelResult, error) {
	a, err := r.adapterFor(venueID)
	if err != nil {
		return CancelResult{}, err
	}
	return a.CancelOrder(ctx, venueID, accountID, serverID)
}

func (r *Router) CreateOrders(ctx context.Context, venueID, accountID string, orders []types.Order) ([]Outcome[CreateResult], error) {
	a, err := r.adapterFor(venueID)
	if err != nil {
		return nil, err
	}
	return a.CreateOrders(ctx, venueID, accountID, orders)
}

func (r *Router) CancelOrders(ctx context.Context, venueID, accountID string, serverIDs []string) ([]Outcome[CancelResult], error) {
	a, err := r.adapterFor(venueID)
	if err != nil {
		return nil, err
	}
	return a.CancelOrders(ctx, venueID, accountID, serverIDs)
}

var _ Adapter = (*Router)(nil)
