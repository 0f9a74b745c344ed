// Package kalshi streams the Kalshi orderbook channel and derives the two
// synthetic single-sided books per market ticker.
package kalshi

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pmarketarb/pmproxy/internal/connector"
	"github.com/pmarketarb/pmproxy/internal/domain"
)

// Config holds the connector's endpoint and credentials. PrivateKeyPEM is
// parsed on every connection attempt so a bad key behaves like any other
// pre-dial auth failure: logged and retried, never fatal.
type Config struct {
	WSURL         string
	APIKeyID      string
	PrivateKeyPEM []byte
}

// Connector maintains one resilient websocket connection to Kalshi. It owns
// the socket handle, the desired ticker set, and a single pending-reconnect
// timer; the socket and the timer are mutually exclusive states.
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
	tickers    []string
	cmdID      int64
}

// New creates a Kalshi connector writing into store. It does not dial until
// Start or the first SetSubscriptions call.
func New(cfg Config, store domain.BookStore, logger *slog.Logger) *Connector {
	return &Connector{
		cfg:    cfg,
		store:  store,
		logger: logger.With(slog.String("component", "kalshi_connector")),
		dial:   connector.GorillaDialer(cfg.WSURL),
		delay:  connector.ReconnectDelay,
	}
}

// SetSubscriptions replaces the desired ticker set. While connected the full
// new list is re-sent as one subscribe command; stored books for tickers
// that remain subscribed are untouched. While disconnected the set is kept
// and a connection attempt is triggered if none is in flight.
func (c *Connector) SetSubscriptions(ids []string) {
	c.mu.Lock()
	c.tickers = append([]string(nil), ids...)
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
		c.logger.Info("re-sent subscriptions", slog.Int("tickers", len(ids)))
		return
	}
	if !connecting {
		go c.connect()
	}
}

// Start triggers the initial connection attempt. Calling it again while a
// socket is live is a no-op.
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
	c.store.SetConnectorStatus(domain.VenueKalshi, domain.StatusUpdate{Connected: domain.BoolPtr(false)})
}

// connect performs one connection attempt: auth header construction, dial,
// subscribe with the full current ticker list. Any failure marks the venue
// disconnected and schedules exactly one retry.
func (c *Connector) connect() {
	c.mu.Lock()
	if c.closed || c.conn != nil || c.connecting {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.mu.Unlock()

	key, err := ParsePrivateKey(c.cfg.PrivateKeyPEM)
	if err != nil {
		c.failConnect("load private key", err)
		return
	}
	header, err := AuthHeaders(c.cfg.APIKeyID, key, time.Now())
	if err != nil {
		c.failConnect("build auth headers", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	conn, err := c.dial(ctx, header)
	cancel()
	if err != nil {
		c.failConnect("dial", err)
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
	tickers := len(c.tickers)
	c.mu.Unlock()

	c.store.SetConnectorStatus(domain.VenueKalshi, domain.StatusUpdate{Connected: domain.BoolPtr(true)})
	if tickers > 0 {
		c.writeFrame(conn, frame)
	}
	c.logger.Info("connected", slog.Int("tickers", tickers))

	go c.readLoop(conn)
	go c.pingLoop(conn)
}

func (c *Connector) failConnect(op string, err error) {
	c.mu.Lock()
	c.connecting = false
	closed := c.closed
	c.mu.Unlock()

	c.logger.Warn("connect failed", slog.String("op", op), slog.String("error", err.Error()))
	if closed {
		return
	}
	c.markDisconnected()
	c.reconnect.Schedule(c.delay, c.connect)
}

// subscribeFrameLocked builds the full-list subscribe command. Caller holds c.mu.
func (c *Connector) subscribeFrameLocked() []byte {
	c.cmdID++
	cmd := subscribeCmd{
		ID:  c.cmdID,
		Cmd: "subscribe",
		Params: subscribeParams{
			Channels: []string{"orderbook_snapshot", "orderbook_delta"},
			Tickers:  append([]string(nil), c.tickers...),
		},
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

// readLoop drives the single live socket: every inbound frame bumps
// liveness before any decoding, and a read error schedules one reconnect
// unless the socket was detached deliberately.
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

		c.store.SetConnectorStatus(domain.VenueKalshi, domain.StatusUpdate{
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

// handleMessage decodes one frame and routes it. Malformed payloads are
// dropped and logged; they never fault the connection.
func (c *Connector) handleMessage(raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug("dropping malformed frame", slog.String("error", err.Error()))
		return
	}

	switch env.Type {
	case "orderbook_snapshot":
		var snap snapshotMsg
		if err := json.Unmarshal(env.Msg, &snap); err != nil || snap.MarketTicker == "" {
			c.logger.Debug("dropping malformed snapshot")
			return
		}
		c.applySnapshot(snap)
	case "orderbook_delta":
		// Incremental semantics against the synthetic books are unconfirmed
		// upstream; snapshots are the only supported mutation path.
		var delta deltaMsg
		if err := json.Unmarshal(env.Msg, &delta); err != nil {
			c.logger.Debug("dropping malformed delta")
			return
		}
		c.logger.Debug("ignoring orderbook_delta", slog.String("ticker", delta.MarketTicker))
	default:
		// Subscription acks and other channel traffic.
	}
}

// applySnapshot writes the two synthetic ask-only books. The ladder labeled
// "no" holds resting NO sells, whose inversion is the implied YES ask, and
// vice versa: legs are swapped and inverted, never identity-mapped.
func (c *Connector) applySnapshot(snap snapshotMsg) {
	now := time.Now().UnixMilli()

	c.store.Upsert(snap.MarketTicker+"_yes", domain.BookUpdate{
		Bids:          map[float64]float64{},
		Asks:          invertLadder(snap.No),
		LastUpdatedMs: now,
	})
	c.store.Upsert(snap.MarketTicker+"_no", domain.BookUpdate{
		Bids:          map[float64]float64{},
		Asks:          invertLadder(snap.Yes),
		LastUpdatedMs: now,
	})
}

// invertLadder converts a cents ladder for one leg into the implied ask side
// of the opposite leg: price = 1 - cents/100, clamped to [0,1].
func invertLadder(ladder [][2]float64) map[float64]float64 {
	asks := make(map[float64]float64, len(ladder))
	for _, level := range ladder {
		price := 1 - level[0]/100
		if price < 0 {
			price = 0
		} else if price > 1 {
			price = 1
		}
		if level[1] <= 0 {
			continue
		}
		asks[price] += level[1]
	}
	return asks
}
