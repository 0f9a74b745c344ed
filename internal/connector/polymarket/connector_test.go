package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmarketarb/pmproxy/internal/connector"
	"github.com/pmarketarb/pmproxy/internal/domain"
	"github.com/pmarketarb/pmproxy/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConn struct {
	mu      sync.Mutex
	frames  chan []byte
	written [][]byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-f.frames
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, raw, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.frames)
	}
	return nil
}

func newTestConnector(t *testing.T, store domain.BookStore, dial connector.Dialer) *Connector {
	t.Helper()
	c := New(Config{WSURL: "wss://example.invalid/ws/market"}, store, testLogger())
	c.dial = dial
	c.delay = 10 * time.Millisecond
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func bookFrame(t *testing.T, assetID string, bids, asks [][2]string) []byte {
	t.Helper()
	toLevels := func(pairs [][2]string) []map[string]string {
		levels := make([]map[string]string, 0, len(pairs))
		for _, p := range pairs {
			levels = append(levels, map[string]string{"price": p[0], "size": p[1]})
		}
		return levels
	}
	frame, err := json.Marshal(map[string]any{
		"event_type": "book",
		"asset_id":   assetID,
		"market":     "0xmarket",
		"bids":       toLevels(bids),
		"asks":       toLevels(asks),
	})
	require.NoError(t, err)
	return frame
}

func TestCanonicalTokenID(t *testing.T) {
	got, err := CanonicalTokenID("0x2a")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	// Decimal ids pass through untouched.
	got, err = CanonicalTokenID("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", got)

	// 256-bit ids survive without precision loss.
	got, err = CanonicalTokenID("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", got)

	_, err = CanonicalTokenID("0xzz")
	assert.Error(t, err)
}

func TestBookEventStoredUnderCanonicalKey(t *testing.T) {
	store := memory.NewBookStore()
	c := newTestConnector(t, store, nil)

	c.handleMessage(bookFrame(t, "0x2a",
		[][2]string{{"0.30", "5"}},
		[][2]string{{"0.45", "20"}, {"0.40", "10"}},
	))

	view, err := store.Get("42", 0)
	require.NoError(t, err)
	require.Len(t, view.Asks, 2)
	assert.Equal(t, 0.40, view.Asks[0].Price)
	assert.Equal(t, 10.0, view.Asks[0].Size)
	require.Len(t, view.Bids, 1)
	assert.Equal(t, 0.30, view.Bids[0].Price)
}

func TestHexAndDecimalKeysCollapse(t *testing.T) {
	store := memory.NewBookStore()
	c := newTestConnector(t, store, nil)

	c.handleMessage(bookFrame(t, "0x2a", nil, [][2]string{{"0.40", "10"}}))
	c.handleMessage(bookFrame(t, "42", nil, [][2]string{{"0.50", "7"}}))

	view, err := store.Get("42", 0)
	require.NoError(t, err)
	require.Len(t, view.Asks, 1)
	assert.Equal(t, 0.50, view.Asks[0].Price)

	// Exactly one record exists for the token.
	assert.Len(t, store.ListIndex(), 1)
}

func TestInstrumentAliasWrite(t *testing.T) {
	store := memory.NewBookStore()
	c := newTestConnector(t, store, nil)

	c.SetInstrumentAliases(map[string]string{"0x2a": "mkt-1"})
	c.handleMessage(bookFrame(t, "42", nil, [][2]string{{"0.40", "10"}}))

	byToken, err := store.Get("42", 0)
	require.NoError(t, err)
	byAlias, err := store.Get("mkt-1", 0)
	require.NoError(t, err)
	assert.Equal(t, byToken.Asks, byAlias.Asks)
}

func TestNoAliasWriteWithoutMapping(t *testing.T) {
	store := memory.NewBookStore()
	c := newTestConnector(t, store, nil)

	c.handleMessage(bookFrame(t, "42", nil, [][2]string{{"0.40", "10"}}))

	assert.Len(t, store.ListIndex(), 1)
}

func TestPongAndMalformedFramesAreDropped(t *testing.T) {
	store := memory.NewBookStore()
	c := newTestConnector(t, store, nil)

	c.handleMessage([]byte("PONG"))
	c.handleMessage([]byte("  PONG  "))
	c.handleMessage([]byte("not json"))
	c.handleMessage([]byte(`{"event_type":"book"}`)) // no asset_id
	c.handleMessage([]byte(`[{"event_type":"book"},]`))

	assert.Empty(t, store.ListIndex())
}

func TestArrayFramesDispatchEachEvent(t *testing.T) {
	store := memory.NewBookStore()
	c := newTestConnector(t, store, nil)

	a := bookFrame(t, "42", nil, [][2]string{{"0.40", "10"}})
	b := bookFrame(t, "43", nil, [][2]string{{"0.60", "5"}})
	c.handleMessage([]byte("[" + string(a) + "," + string(b) + "]"))

	assert.Len(t, store.ListIndex(), 2)
}

func TestPriceChangeIsNotApplied(t *testing.T) {
	store := memory.NewBookStore()
	c := newTestConnector(t, store, nil)

	c.handleMessage(bookFrame(t, "42", nil, [][2]string{{"0.40", "10"}}))
	c.handleMessage([]byte(`{"event_type":"price_change","asset_id":"42","changes":[{"price":"0.40","size":"0","side":"SELL"}]}`))

	view, err := store.Get("42", 0)
	require.NoError(t, err)
	require.Len(t, view.Asks, 1)
	assert.Equal(t, 10.0, view.Asks[0].Size)
}

func TestParseLevelsSkipsBadEntries(t *testing.T) {
	side := parseLevels([]wsLevel{
		{Price: "0.40", Size: "10"},
		{Price: "0.45", Size: "0"},
		{Price: "bogus", Size: "5"},
		{Price: "0.40", Size: "2"},
	})
	require.Len(t, side, 1)
	assert.Equal(t, 12.0, side[0.40])
}

func TestConnectSendsCanonicalSubscription(t *testing.T) {
	store := memory.NewBookStore()
	fc := newFakeConn()
	c := newTestConnector(t, store, func(context.Context, http.Header) (connector.Conn, error) {
		return fc, nil
	})

	c.SetSubscriptions([]string{"0x2a", "99"})

	require.Eventually(t, func() bool { return len(fc.writes()) >= 1 }, time.Second, 5*time.Millisecond)

	var cmd subscribeCmd
	require.NoError(t, json.Unmarshal(fc.writes()[0], &cmd))
	assert.Equal(t, "market", cmd.Type)
	assert.True(t, cmd.InitialDump)
	assert.Equal(t, []string{"42", "99"}, cmd.AssetIDs)

	assert.True(t, store.GetStatus()[domain.VenuePolymarket].Connected)
}
