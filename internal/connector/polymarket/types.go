package polymarket

import "encoding/json"

// wsLevel is one bid/ask level. The venue sends price and size as strings on
// the book channel but numbers have been observed; json.Number takes both.
type wsLevel struct {
	Price json.Number `json:"price"`
	Size  json.Number `json:"size"`
}

// eventEnvelope carries just enough of any frame to route it.
type eventEnvelope struct {
	EventType string `json:"event_type"`
}

// bookMsg is a full orderbook snapshot for one token id.
type bookMsg struct {
	EventType string    `json:"event_type"`
	AssetID   string    `json:"asset_id"`
	Market    string    `json:"market"`
	Bids      []wsLevel `json:"bids"`
	Asks      []wsLevel `json:"asks"`
	Hash      string    `json:"hash"`
	Timestamp string    `json:"timestamp"`
}

// subscribeCmd is the outbound market-channel subscription carrying the full
// current token id list.
type subscribeCmd struct {
	AssetIDs    []string `json:"assets_ids"`
	Type        string   `json:"type"`
	InitialDump bool     `json:"initial_dump"`
}
