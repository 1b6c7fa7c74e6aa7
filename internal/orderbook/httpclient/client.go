// Package httpclient is a reference orderbook.Query implementation: a
// resty GET against a configurable base URL, translated from the venue's
// wire format into a types.MarketQuote.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/LaoKpa/tai/internal/orderbook"
	"github.com/LaoKpa/tai/pkg/types"
)

// Client is a resty-backed orderbook.Query.
type Client struct {
	http *resty.Client
}

// New creates a Client against baseURL.
func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(5 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(200 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() >= 500
			}),
	}
}

type insideQuoteResponse struct {
	BidPrice decimal.Decimal `json:"bid_price"`
	BidSize  decimal.Decimal `json:"bid_size"`
	AskPrice decimal.Decimal `json:"ask_price"`
	AskSize  decimal.Decimal `json:"ask_size"`
}

// InsideQuote fetches the current best bid/ask for (venue, symbol).
func (c *Client) InsideQuote(ctx context.Context, venue, symbol string) (types.MarketQuote, error) {
	var result insideQuoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"venue": venue, "symbol": symbol}).
		SetResult(&result).
		Get("/inside_quote")
	if err != nil {
		return types.MarketQuote{}, fmt.Errorf("inside quote: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.MarketQuote{}, fmt.Errorf("inside quote: status %d: %s", resp.StatusCode(), resp.String())
	}

	return types.MarketQuote{
		VenueID:       venue,
		ProductSymbol: symbol,
		Bid:           types.PriceLevel{Price: result.BidPrice, Size: result.BidSize},
		Ask:           types.PriceLevel{Price: result.AskPrice, Size: result.AskSize},
		Timestamp:     time.Now(),
	}, nil
}

var _ orderbook.Query = (*Client)(nil)
