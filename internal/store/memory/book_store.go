// Package memory implements the in-process book store shared by the venue
// connectors and every reader.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/pmarketarb/pmproxy/internal/domain"
)

// BookStore is a concurrency-safe keyed repository of order books plus
// per-venue connector liveness. Books for a key are replaced side-wholesale
// on each upsert and never evicted; staleness is surfaced through
// LastUpdatedMs rather than deletion, so a venue disconnect leaves the last
// known book readable.
type BookStore struct {
	mu     sync.RWMutex
	books  map[string]domain.OrderBook
	status map[string]domain.ConnectorStatus

	// now is swappable for tests.
	now func() int64
}

// NewBookStore creates an empty store with both venue status records
// initialized to disconnected, matching what callers see before either
// connector has dialed.
func NewBookStore() *BookStore {
	return &BookStore{
		books: make(map[string]domain.OrderBook),
		status: map[string]domain.ConnectorStatus{
			domain.VenueKalshi:     {},
			domain.VenuePolymarket: {},
		},
		now: func() int64 { return time.Now().UnixMilli() },
	}
}

// Upsert merges up into the record for key, creating it if absent. A non-nil
// Bids or Asks map fully replaces the stored side; levels with size <= 0 are
// dropped so zero-size entries are never stored.
func (s *BookStore) Upsert(key string, up domain.BookUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book := s.books[key]
	if up.Bids != nil {
		book.Bids = cloneLevels(up.Bids)
	}
	if up.Asks != nil {
		book.Asks = cloneLevels(up.Asks)
	}
	if up.LastUpdatedMs != 0 {
		book.LastUpdatedMs = up.LastUpdatedMs
	} else {
		book.LastUpdatedMs = s.now()
	}
	s.books[key] = book
}

// Get returns a sorted, depth-limited view of the book for key. Bids come
// back descending and asks ascending; depth counts levels per side, and
// values <= 0 mean no limit. Unknown keys return domain.ErrNotFound.
func (s *BookStore) Get(key string, depth int) (domain.OrderBookView, error) {
	s.mu.RLock()
	book, ok := s.books[key]
	if !ok {
		s.mu.RUnlock()
		return domain.OrderBookView{}, domain.ErrNotFound
	}
	view := domain.OrderBookView{
		Bids:          levelsOf(book.Bids),
		Asks:          levelsOf(book.Asks),
		LastUpdatedMs: book.LastUpdatedMs,
	}
	s.mu.RUnlock()

	sort.Slice(view.Bids, func(i, j int) bool { return view.Bids[i].Price > view.Bids[j].Price })
	sort.Slice(view.Asks, func(i, j int) bool { return view.Asks[i].Price < view.Asks[j].Price })

	if depth > 0 {
		if len(view.Bids) > depth {
			view.Bids = view.Bids[:depth]
		}
		if len(view.Asks) > depth {
			view.Asks = view.Asks[:depth]
		}
	}
	return view, nil
}

// ListIndex enumerates every stored key with its last update time. Book
// contents are deliberately excluded; health checks sample this to judge
// population rate without copying ladders.
func (s *BookStore) ListIndex() []domain.IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make([]domain.IndexEntry, 0, len(s.books))
	for key, book := range s.books {
		index = append(index, domain.IndexEntry{Key: key, LastUpdatedMs: book.LastUpdatedMs})
	}
	return index
}

// SetConnectorStatus merges up field-wise into the status record for venue,
// creating the record for unknown venue names.
func (s *BookStore) SetConnectorStatus(venue string, up domain.StatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status[venue]
	if up.Connected != nil {
		st.Connected = *up.Connected
	}
	if up.LastMessageMs != nil {
		st.LastMessageMs = up.LastMessageMs
	}
	s.status[venue] = st
}

// GetStatus returns a copy of all connector status records.
func (s *BookStore) GetStatus() map[string]domain.ConnectorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.ConnectorStatus, len(s.status))
	for venue, st := range s.status {
		out[venue] = st
	}
	return out
}

func cloneLevels(side map[float64]float64) map[float64]float64 {
	out := make(map[float64]float64, len(side))
	for price, size := range side {
		if size <= 0 {
			continue
		}
		out[price] = size
	}
	return out
}

func levelsOf(side map[float64]float64) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(side))
	for price, size := range side {
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels
}
