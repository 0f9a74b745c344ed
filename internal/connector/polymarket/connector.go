// Package polymarket streams the Polymarket CLOB market channel and
// maintains one full order book per traded token id.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"

	"github.com/pmarketarb/pmproxy/internal/connector"
	"github.com/pmarketarb/pmproxy/internal/domain"
)

// pongFrame is the venue's keep-alive reply, sent as a bare text frame.
var pongFrame = []byte("PONG")

// Config holds the connector's endpoint. The market channel needs no
// handshake authentication.
type Config struct {
	WSURL string
}

// Connector maintains one resilient websocket connection to the Polymarket
// CLOB feed. Books are keyed by the canonical decimal token id; when the
// matching pipeline has supplied a token->instrument mapping each snapshot
// is additionally written under the instrument id.
type Connector struct {
	cfg    Config
	store  domain.BookStore
	logger *slog.Logger

	dial  connector.Dialer
	delay time.Duration

	reconnect connector.ReconnectTimer

	mu         sync.Mutex
	conn       connector.Conn
	connecting bool
	closed     bool
	tokenIDs   []string
	aliases    map[string]string // canonical token id -> instrument id
}

// New creates a Polymarket connector writing into store.
func New(cfg Config, store domain.BookStore, logger *slog.Logger) *Connector {
	return &Connector{
		cfg:     cfg,
		store:   store,
		logger:  logger.With(slog.String("component", "polymarket_connector")),
		dial:    connector.GorillaDialer(cfg.WSURL),
		delay:   connector.ReconnectDelay,
		aliases: make(map[string]string),
	}
}

// CanonicalTokenID converts a token id to its canonical decimal form. Hex
// ids go through big-integer arithmetic: token ids are 256-bit values, far
// past what float64 can hold losslessly.
func CanonicalTokenID(id string) (string, error) {
	if !strings.HasPrefix(id, "0x") && !strings.HasPrefix(id, "0X") {
		return id, nil
	}
	n, err := hexutil.DecodeBig(strings.ToLower(id))
	if err != nil {
		return "", fmt.Errorf("polymarket: canonicalize token id %q: %w", id, err)
	}
	return n.String(), nil
}

// SetSubscriptions replaces the desired token id set (ids are canonicalized
// here, so callers may pass hex or decimal). Behavior mirrors the shared
// connector contract: re-send while connected, store-and-dial otherwise.
func (c *Connector) SetSubscriptions(ids []string) {
	canonical := make([]string, 0, len(ids))
	for _, id := range ids {
		dec, err := CanonicalTokenID(id)
		if err != nil {
			c.logger.Warn("skipping unparseable token id", slog.String("id", id))
			continue
		}
		canonical = append(canonical, dec)
	}

	c.mu.Lock()
	c.tokenIDs = canonical
	conn := c.conn
	connecting := c.connecting
	closed := c.closed
	var frame []byte
	if conn != nil {
		frame = c.subscribeFrameLocked()
	}
	c.mu.Unlock()

	if closed {
		return
	}
	if conn != nil {
		c.writeFrame(conn, frame)
		c.logger.Info("re-sent subscriptions", slog.Int("tokens", len(canonical)))
		return
	}
	if !connecting {
		go c.connect()
	}
}

// SetInstrumentAliases installs the pipeline-supplied token->instrument
// mapping used for the secondary snapshot writes.
func (c *Connector) SetInstrumentAliases(mapping map[string]string) {
	canonical := make(map[string]string, len(mapping))
	for tokenID, instrumentID := range mapping {
		dec, err := CanonicalTokenID(tokenID)
		if err != nil {
			continue
		}
		canonical[dec] = instrumentID
	}

	c.mu.Lock()
	c.aliases = canonical
	c.mu.Unlock()
}

// Start triggers the initial connection attempt; idempotent while live.
func (c *Connector) Start() {
	c.mu.Lock()
	shouldDial := !c.closed && c.conn == nil && !c.connecting
	c.mu.Unlock()
	if shouldDial {
		go c.connect()
	}
}

// Recycle force-closes the live socket and schedules a prompt reconnect.
func (c *Connector) Recycle() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	closed := c.closed
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if closed {
		return
	}
	c.markDisconnected()
	c.reconnect.Schedule(connector.RecycleDelay, c.connect)
}

// Close tears down the socket and cancels any pending reconnect.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.reconnect.Stop()
	c.markDisconnected()
	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}

func (c *Connector) markDisconnected() {
	c.store.SetConnectorStatus(domain.VenuePolymarket, domain.StatusUpdate{Connected: domain.BoolPtr(false)})
}

func (c *Connector) connect() {
	c.mu.Lock()
	if c.closed || c.conn != nil || c.connecting {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	conn, err := c.dial(ctx, nil)
	cancel()
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		closed := c.closed
		c.mu.Unlock()

		c.logger.Warn("connect failed", slog.String("error", err.Error()))
		if closed {
			return
		}
		c.markDisconnected()
		c.reconnect.Schedule(c.delay, c.connect)
		return
	}

	conn.SetReadDeadline(time.Now().Add(connector.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(connector.PongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.connecting = false
	frame := c.subscribeFrameLocked()
	tokens := len(c.tokenIDs)
	c.mu.Unlock()

	c.store.SetConnectorStatus(domain.VenuePolymarket, domain.StatusUpdate{Connected: domain.BoolPtr(true)})
	if tokens > 0 {
		c.writeFrame(conn, frame)
	}
	c.logger.Info("connected", slog.Int("tokens", tokens))

	go c.readLoop(conn)
	go c.pingLoop(conn)
}

// subscribeFrameLocked builds the full-list market subscription. Caller holds c.mu.
func (c *Connector) subscribeFrameLocked() []byte {
	cmd := subscribeCmd{
		AssetIDs:    append([]string(nil), c.tokenIDs...),
		Type:        "market",
		InitialDump: true,
	}
	frame, _ := json.Marshal(cmd)
	return frame
}

func (c *Connector) writeFrame(conn connector.Conn, frame []byte) {
	conn.SetWriteDeadline(time.Now().Add(connector.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn("write subscribe failed", slog.String("error", err.Error()))
	}
}

func (c *Connector) readLoop(conn connector.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			c.mu.Lock()
			detached := c.conn != conn
			closed := c.closed
			if !detached {
				c.conn = nil
			}
			c.mu.Unlock()

			if closed || detached {
				return
			}
			c.markDisconnected()
			c.reconnect.Schedule(c.delay, c.connect)
			return
		}

		c.store.SetConnectorStatus(domain.VenuePolymarket, domain.StatusUpdate{
			LastMessageMs: domain.Int64Ptr(time.Now().UnixMilli()),
		})
		c.handleMessage(raw)
	}
}

func (c *Connector) pingLoop(conn connector.Conn) {
	ticker := time.NewTicker(connector.PingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		live := c.conn == conn
		c.mu.Unlock()
		if !live {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(connector.WriteWait))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}

// handleMessage routes one frame. The venue sends bare PONG text, single
// events, and event arrays on the same channel; anything unparseable is
// dropped without touching the connection.
func (c *Connector) handleMessage(raw []byte) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, pongFrame) {
		return
	}

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []json.RawMessage
		if err := json.Unmarshal(trimmed, &events); err != nil {
			c.logger.Debug("dropping malformed frame", slog.String("error", err.Error()))
			return
		}
		for _, ev := range events {
			c.handleEvent(ev)
		}
		return
	}

	c.handleEvent(trimmed)
}

func (c *Connector) handleEvent(raw []byte) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug("dropping malformed event", slog.String("error", err.Error()))
		return
	}

	switch env.EventType {
	case "book":
		var book bookMsg
		if err := json.Unmarshal(raw, &book); err != nil || book.AssetID == "" {
			c.logger.Debug("dropping malformed book event")
			return
		}
		c.applyBook(book)
	case "price_change":
		// Incremental updates are not applied; snapshots replace the book.
		c.logger.Debug("ignoring price_change")
	default:
		// tick_size_change and other channel traffic.
	}
}

// applyBook replaces the stored book for the canonical token id, plus the
// instrument alias when the pipeline has mapped this token.
func (c *Connector) applyBook(book bookMsg) {
	tokenID, err := CanonicalTokenID(book.AssetID)
	if err != nil {
		c.logger.Debug("dropping book with bad asset id", slog.String("asset_id", book.AssetID))
		return
	}

	up := domain.BookUpdate{
		Bids:          parseLevels(book.Bids),
		Asks:          parseLevels(book.Asks),
		LastUpdatedMs: time.Now().UnixMilli(),
	}
	c.store.Upsert(tokenID, up)

	c.mu.Lock()
	alias := c.aliases[tokenID]
	c.mu.Unlock()
	if alias != "" {
		c.store.Upsert(alias, up)
	}
}

func parseLevels(levels []wsLevel) map[float64]float64 {
	side := make(map[float64]float64, len(levels))
	for _, lvl := range levels {
		price, err := lvl.Price.Float64()
		if err != nil {
			continue
		}
		size, err := lvl.Size.Float64()
		if err != nil || size <= 0 {
			continue
		}
		side[price] += size
	}
	return side
}
