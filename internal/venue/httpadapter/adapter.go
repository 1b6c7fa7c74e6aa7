// Package httpadapter is a reference venue.Adapter implementation talking
// to a generic REST trading API: a resty client carrying retry-on-5xx and
// a base URL, per-category rate limiting, and a dry-run mode that
// short-circuits mutating calls without making an HTTP request. It carries
// no wire/order signing of its own — that is venue-specific and left to
// whatever transport a concrete venue requires.
package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/LaoKpa/tai/internal/venue"
	"github.com/LaoKpa/tai/pkg/types"
)

// Config configures an Adapter.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	DryRun     bool
	RateLimits RateLimits
}

// Adapter is a resty-backed venue.Adapter against a single REST venue.
type Adapter struct {
	http   *resty.Client
	rl     *rateLimiter
	dryRun bool
	logger *slog.Logger
}

// New creates an Adapter. logger is scoped with component=venue_httpadapter;
// each dry-run log line also carries the call's venue.
func New(cfg Config, logger *slog.Logger) *Adapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Adapter{
		http:   httpClient,
		rl:     newRateLimiter(cfg.RateLimits),
		dryRun: cfg.DryRun,
		logger: logger.With("component", "venue_httpadapter"),
	}
}

type createOrderRequest struct {
	AccountID     string          `json:"account_id"`
	ProductSymbol string          `json:"product_symbol"`
	Side          types.Side      `json:"side"`
	Type          types.OrderType `json:"type"`
	TimeInForce   types.TimeInForce `json:"time_in_force"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	ClientID      string          `json:"client_id"`
}

type createOrderResponse struct {
	ServerID string `json:"server_id"`
}

// CreateOrder submits a single new order.
func (a *Adapter) CreateOrder(ctx context.Context, venueID, accountID string, order types.Order) (venue.CreateResult, error) {
	if a.dryRun {
		a.logger.Info("dry-run create order", "venue", venueID, "client_id", order.ClientID)
		return venue.CreateResult{ServerID: "dry-run-" + order.ClientID.String()}, nil
	}
	if err := a.rl.create.Wait(ctx); err != nil {
		return venue.CreateResult{}, err
	}

	req := createOrderRequest{
		AccountID:     accountID,
		ProductSymbol: order.ProductSymbol,
		Side:          order.Side,
		Type:          order.Type,
		TimeInForce:   order.TimeInForce,
		Price:         order.Price,
		Size:          order.Size,
		ClientID:      order.ClientID.String(),
	}

	var result createOrderResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(fmt.Sprintf("/venues/%s/orders", venueID))
	if err != nil {
		return venue.CreateResult{}, fmt.Errorf("create order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return venue.CreateResult{}, fmt.Errorf("create order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return venue.CreateResult{ServerID: result.ServerID}, nil
}

type amendOrderRequest struct {
	Price *decimal.Decimal `json:"price,omitempty"`
	Size  *decimal.Decimal `json:"size,omitempty"`
}

// AmendOrder changes a resting order's price and/or size.
func (a *Adapter) AmendOrder(ctx context.Context, venueID, accountID, serverID string, attrs venue.AmendAttrs) (venue.AmendResult, error) {
	if a.dryRun {
		a.logger.Info("dry-run amend order", "venue", venueID, "server_id", serverID)
		return venue.AmendResult{ServerID: serverID}, nil
	}
	if err := a.rl.create.Wait(ctx); err != nil {
		return venue.AmendResult{}, err
	}

	req := amendOrderRequest{Price: attrs.Price, Size: attrs.Size}
	var result createOrderResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Patch(fmt.Sprintf("/venues/%s/orders/%s", venueID, serverID))
	if err != nil {
		return venue.AmendResult{}, fmt.Errorf("amend order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return venue.AmendResult{}, fmt.Errorf("amend order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.ServerID == "" {
		result.ServerID = serverID
	}
	return venue.AmendResult{ServerID: result.ServerID}, nil
}

// CancelOrder cancels a single resting order.
func (a *Adapter) CancelOrder(ctx context.Context, venueID, accountID, serverID string) (venue.CancelResult, error) {
	if a.dryRun {
		a.logger.Info("dry-run cancel order", "venue", venueID, "server_id", serverID)
		return venue.CancelResult{ServerID: serverID}, nil
	}
	if err := a.rl.cancel.Wait(ctx); err != nil {
		return venue.CancelResult{}, err
	}

	resp, err := a.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/venues/%s/orders/%s", venueID, serverID))
	if err != nil {
		return venue.CancelResult{}, fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return venue.CancelResult{}, fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return venue.CancelResult{ServerID: serverID}, nil
}

// CreateOrders submits a batch of new orders, one outcome per input order
// in the same order.
func (a *Adapter) CreateOrders(ctx context.Context, venueID, accountID string, orders []types.Order) ([]venue.Outcome[venue.CreateResult], error) {
	outcomes := make([]venue.Outcome[venue.CreateResult], len(orders))
	for i, order := range orders {
		result, err := a.CreateOrder(ctx, venueID, accountID, order)
		outcomes[i] = venue.Outcome[venue.CreateResult]{
			ClientID: order.ClientID.String(),
			Result:   result,
			Err:      err,
		}
	}
	return outcomes, nil
}

// CancelOrders cancels a batch of resting orders by server_id.
func (a *Adapter) CancelOrders(ctx context.Context, venueID, accountID string, serverIDs []string) ([]venue.Outcome[venue.CancelResult], error) {
	if a.dryRun {
		a.logger.Info("dry-run cancel orders", "venue", venueID, "count", len(serverIDs))
	}
	if !a.dryRun {
		if err := a.rl.cancel.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(struct {
		ServerIDs []string `json:"server_ids"`
	}{ServerIDs: serverIDs})
	if err != nil {
		return nil, fmt.Errorf("marshal cancel batch: %w", err)
	}

	outcomes := make([]venue.Outcome[venue.CancelResult], len(serverIDs))
	if a.dryRun {
		for i, id := range serverIDs {
			outcomes[i] = venue.Outcome[venue.CancelResult]{ClientID: id, Result: venue.CancelResult{ServerID: id}}
		}
		return outcomes, nil
	}

	var result struct {
		Canceled []string `json:"canceled"`
		Failed   map[string]string `json:"failed"`
	}
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete(fmt.Sprintf("/venues/%s/orders", venueID))
	if err != nil {
		return nil, fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	canceled := make(map[string]bool, len(result.Canceled))
	for _, id := range result.Canceled {
		canceled[id] = true
	}
	for i, id := range serverIDs {
		if canceled[id] {
			outcomes[i] = venue.Outcome[venue.CancelResult]{ClientID: id, Result: venue.CancelResult{ServerID: id}}
			continue
		}
		reason := result.Failed[id]
		if reason == "" {
			reason = "not reported as canceled"
		}
		outcomes[i] = venue.Outcome[venue.CancelResult]{ClientID: id, Err: fmt.Errorf("cancel order %s: %s", id, reason)}
	}
	return outcomes, nil
}

var _ venue.Adapter = (*Adapter)(nil)
