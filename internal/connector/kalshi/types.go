package kalshi

import "encoding/json"

// wsEnvelope is the outer frame of every Kalshi websocket message.
type wsEnvelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
	SID  int64           `json:"sid"`
}

// snapshotMsg is the orderbook_snapshot payload. Each ladder entry is a
// [priceCents, size] pair; the ladder labeled for one leg holds the resting
// sell orders whose inversion is the implied ask for the opposite leg.
type snapshotMsg struct {
	MarketTicker string       `json:"market_ticker"`
	Yes          [][2]float64 `json:"yes"`
	No           [][2]float64 `json:"no"`
}

// deltaMsg is the orderbook_delta payload. Its incremental semantics against
// the two synthetic books are unconfirmed upstream, so deltas are decoded
// for liveness but never applied.
type deltaMsg struct {
	MarketTicker string  `json:"market_ticker"`
	Price        float64 `json:"price"`
	Delta        float64 `json:"delta"`
	Side         string  `json:"side"`
}

// subscribeCmd is the outbound subscription envelope. The full current
// ticker list is sent every time; the venue treats it additively.
type subscribeCmd struct {
	ID     int64           `json:"id"`
	Cmd    string          `json:"cmd"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channels []string `json:"channels"`
	Tickers  []string `json:"market_tickers"`
}
