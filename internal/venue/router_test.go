package venue

import (
	"context"
	"testing"

	"github.com/LaoKpa/tai/pkg/types"
)

type stubAdapter struct {
	serverID string
}

func (s *stubAdapter) CreateOrder(ctx context.Context, venueID, accountID string, order types.Order) (CreateResult, error) {
	return CreateResult{ServerID: s.serverID}, nil
}
func (s *stubAdapter) AmendOrder(ctx context.Context, venueID, accountID, serverID string, attrs AmendAttrs) (AmendResult, error) {
	return AmendResult{ServerID: serverID}, nil
}
func (s *stubAdapter) CancelOrder(ctx context.Context, venueID, accountID, serverID string) (CancelResult, error) {
	return CancelResult{ServerID: serverID}, nil
}
func (s *stubAdapter) CreateOrders(ctx context.Context, venueID, accountID string, orders []types.Order) ([]Outcome[CreateResult], error) {
	return nil, nil
}
func (s *stubAdapter) CancelOrders(ctx context.Context, venueID, accountID string, serverIDs []string) ([]Outcome[CancelResult], error) {
	return nil, nil
}

func TestRouterDispatchesToRegisteredVenue(t *testing.T) {
	t.Parallel()
	r := NewRouter(map[string]Adapter{"exchange_a": &stubAdapter{serverID: "srv-a"}})

	result, err := r.CreateOrder(context.Background(), "exchange_a", "acct-1", types.Order{})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if result.ServerID != "srv-a" {
		t.Errorf("ServerID = %q, want srv-a", result.ServerID)
	}
}

func TestRouterUnknownVenueReturnsError(t *testing.T) {
	t.Parallel()
	r := NewRouter(map[string]Adapter{"exchange_a": &stubAdapter{}})

	_, err := r.CreateOrder(context.Background(), "exchange_b", "acct-1", types.Order{})
	if err == nil {
		t.Error("expected an error for an unregistered venue")
	}
}
