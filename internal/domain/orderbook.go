package domain

// PriceLevel is a single price+size entry in an orderbook view. Price is a
// probability-like value in (0,1): the cost of buying one unit of the outcome.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is the stored form of a single-outcome book. Bids and asks are
// unordered price->size maps with unique price keys; ordering is applied at
// read time, not storage time. No entry ever has size <= 0.
type OrderBook struct {
	Bids          map[float64]float64
	Asks          map[float64]float64
	LastUpdatedMs int64
}

// OrderBookView is the depth-limited, sorted read view of a stored book.
// Bids are sorted descending, asks ascending.
type OrderBookView struct {
	Bids          []PriceLevel `json:"bids"`
	Asks          []PriceLevel `json:"asks"`
	LastUpdatedMs int64        `json:"lastUpdatedMs"`
}

// BestAsk returns the lowest ask price, or 0 when the ask side is empty.
func (v OrderBookView) BestAsk() float64 {
	if len(v.Asks) == 0 {
		return 0
	}
	return v.Asks[0].Price
}

// BestBid returns the highest bid price, or 0 when the bid side is empty.
func (v OrderBookView) BestBid() float64 {
	if len(v.Bids) == 0 {
		return 0
	}
	return v.Bids[0].Price
}

// BookUpdate is a partial write against a stored book. A nil Bids or Asks map
// leaves that side untouched; a non-nil map replaces the side wholesale.
// Levels with size <= 0 are dropped on write. A zero LastUpdatedMs is filled
// with the store's current clock.
type BookUpdate struct {
	Bids          map[float64]float64
	Asks          map[float64]float64
	LastUpdatedMs int64
}

// IndexEntry is a lightweight listing of one stored book, used by liveness
// and population sampling. It never carries book contents.
type IndexEntry struct {
	Key           string `json:"key"`
	LastUpdatedMs int64  `json:"lastUpdatedMs"`
}
