// Package busws bridges a venue's market-data WebSocket feed onto an
// internal/bus.EventBus, publishing order_book_snapshot, order_book_changes,
// and market_quote topics as venue messages arrive.
//
// Run maintains the connection with a reconnect loop that backs off
// exponentially, and dispatches each inbound message by its "event_type"
// discriminator field to the matching bus.Topic kind.
package busws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/LaoKpa/tai/internal/bus"
	"github.com/LaoKpa/tai/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Bridge connects to a single venue's market-data WebSocket endpoint and
// republishes every message with a recognized event_type onto an EventBus;
// other messages are logged and dropped.
type Bridge struct {
	venueID string
	url     string
	bus     bus.EventBus
	logger  *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.RWMutex
	subscribed   map[string]bool // product symbols
}

// New creates a Bridge for venueID's market-data feed at wsURL.
func New(venueID, wsURL string, eventBus bus.EventBus, logger *slog.Logger) *Bridge {
	return &Bridge{
		venueID:    venueID,
		url:        wsURL,
		bus:        eventBus,
		logger:     logger.With("component", "busws", "venue", venueID),
		subscribed: make(map[string]bool),
	}
}

// Subscribe adds product symbols to the feed's subscription, sending an
// update to the venue if currently connected, and re-sent on reconnect.
func (b *Bridge) Subscribe(symbols []string) error {
	b.subscribedMu.Lock()
	for _, s := range symbols {
		b.subscribed[s] = true
	}
	b.subscribedMu.Unlock()

	return b.writeJSON(subscribeMsg{Operation: "subscribe", Symbols: symbols})
}

// Run connects and maintains the WebSocket connection with auto-reconnect
// and exponential backoff. Blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := b.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Warn("market data websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (b *Bridge) Close() error {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func (b *Bridge) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()

	defer func() {
		b.connMu.Lock()
		conn.Close()
		b.conn = nil
		b.connMu.Unlock()
	}()

	if err := b.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	b.logger.Info("market data websocket connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go b.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		b.dispatchMessage(msg)
	}
}

func (b *Bridge) sendInitialSubscription() error {
	b.subscribedMu.RLock()
	symbols := make([]string, 0, len(b.subscribed))
	for s := range b.subscribed {
		symbols = append(symbols, s)
	}
	b.subscribedMu.RUnlock()

	return b.writeJSON(subscribeMsg{Operation: "subscribe", Symbols: symbols})
}

// wireLevel, snapshotMsg, changesMsg, and quoteMsg mirror the JSON shape a
// venue market-data feed emits; event_type is the discriminator dispatch
// switches on.
type wireLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

type snapshotMsg struct {
	EventType string `json:"event_type"`
	Symbol    string `json:"symbol"`
}

type changesMsg struct {
	EventType string      `json:"event_type"`
	Symbol    string      `json:"symbol"`
	Bids      []wireLevel `json:"bids"`
	Asks      []wireLevel `json:"asks"`
}

type quoteMsg struct {
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol"`
	Bid       wireLevel `json:"bid"`
	Ask       wireLevel `json:"ask"`
}

type subscribeMsg struct {
	Operation string   `json:"operation"`
	Symbols   []string `json:"symbols"`
}

func (b *Bridge) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
		Symbol    string `json:"symbol"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		b.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch envelope.EventType {
	case "order_book_snapshot":
		var msg snapshotMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Error("unmarshal order_book_snapshot", "error", err)
			return
		}
		b.bus.Publish(bus.OrderBookSnapshot(b.venueID, msg.Symbol), struct{}{})

	case "order_book_changes":
		var msg changesMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Error("unmarshal order_book_changes", "error", err)
			return
		}
		b.bus.Publish(bus.OrderBookChanges(b.venueID, msg.Symbol), toOrderBookChanges(msg))

	case "market_quote":
		var msg quoteMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Error("unmarshal market_quote", "error", err)
			return
		}
		b.bus.Publish(bus.MarketQuote(b.venueID, msg.Symbol), toMarketQuote(b.venueID, msg))

	default:
		b.logger.Debug("unknown ws event type", "type", envelope.EventType)
	}
}

func toOrderBookChanges(msg changesMsg) types.OrderBookChanges {
	changes := types.OrderBookChanges{
		Bids: make([]types.PriceLevel, len(msg.Bids)),
		Asks: make([]types.PriceLevel, len(msg.Asks)),
	}
	for i, l := range msg.Bids {
		changes.Bids[i] = types.PriceLevel{Price: l.Price, Size: l.Size}
	}
	for i, l := range msg.Asks {
		changes.Asks[i] = types.PriceLevel{Price: l.Price, Size: l.Size}
	}
	return changes
}

func toMarketQuote(venueID string, msg quoteMsg) types.MarketQuote {
	return types.MarketQuote{
		VenueID:       venueID,
		ProductSymbol: msg.Symbol,
		Bid:           types.PriceLevel{Price: msg.Bid.Price, Size: msg.Bid.Size},
		Ask:           types.PriceLevel{Price: msg.Ask.Price, Size: msg.Ask.Size},
		Timestamp:     time.Now(),
	}
}

func (b *Bridge) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.writeMessage(websocket.PingMessage, nil); err != nil {
				b.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (b *Bridge) writeJSON(v any) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn == nil {
		return nil // buffered; sent on connect via sendInitialSubscription
	}
	b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return b.conn.WriteJSON(v)
}

func (b *Bridge) writeMessage(msgType int, data []byte) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return b.conn.WriteMessage(msgType, data)
}
